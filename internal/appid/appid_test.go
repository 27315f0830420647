package appid

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("IconKey", func() {
	It("is the first 16 hex chars of the md5 digest", func() {
		Expect(IconKey("abc")).To(Equal("900150983cd24fb0.png"))
		Expect(IconKey("")).To(Equal("d41d8cd98f00b204.png"))
	})

	It("is deterministic", func() {
		id := `C:\Program Files\Mozilla Firefox\firefox.exe`
		Expect(IconKey(id)).To(Equal(IconKey(id)))
		Expect(IconKey(id)).NotTo(Equal(IconKey(strings.ToUpper(id))))
	})

	It("joins the key onto the icon directory", func() {
		Expect(IconPath("/cache/icons", "abc")).To(Equal(filepath.Join("/cache/icons", "900150983cd24fb0.png")))
	})
})

var _ = Describe("FromPath", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "ade-appid-test-*")
		Expect(err).NotTo(HaveOccurred())
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns the same identity for a file and a link to it", func() {
		target := filepath.Join(tmpDir, "tool.exe")
		Expect(os.WriteFile(target, []byte("x"), 0o755)).To(Succeed())
		link := filepath.Join(tmpDir, "link.exe")
		Expect(os.Symlink(target, link)).To(Succeed())

		Expect(FromPath(link)).To(Equal(target))
		Expect(FromPath(target)).To(Equal(target))
	})

	It("cleans paths that do not exist", func() {
		missing := filepath.Join(tmpDir, "a", "..", "gone.exe")
		Expect(FromPath(missing)).To(Equal(filepath.Join(tmpDir, "gone.exe")))
	})
})
