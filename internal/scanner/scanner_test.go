package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/0xADE/ade-launchd/internal/apps"
	"github.com/0xADE/ade-launchd/internal/helper"
	"github.com/0xADE/ade-launchd/internal/logx"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubRunner struct {
	stdout string
	err    error
	calls  int
}

func (r *stubRunner) Run(_ context.Context, _ string, _ []string, _ helper.RunOptions) (helper.RunResult, error) {
	r.calls++
	return helper.RunResult{Stdout: []byte(r.stdout)}, r.err
}

func names(list []apps.Application) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Name)
	}
	return out
}

var _ = Describe("ParseSource", func() {
	It("recognizes the registry sentinels", func() {
		Expect(ParseSource("PackageRegistry").Kind).To(Equal(KindRegistry))
		Expect(ParseSource("WindowsStoreApp").Kind).To(Equal(KindRegistry))
		Expect(ParseSource(" windowsstoreapp ").Kind).To(Equal(KindRegistry))
	})

	It("treats anything else as a directory", func() {
		src := ParseSource("/opt/apps")
		Expect(src).To(Equal(Source{Kind: KindFilesystem, Root: "/opt/apps"}))
	})

	It("expands the home directory", func() {
		home, err := os.UserHomeDir()
		Expect(err).NotTo(HaveOccurred())
		Expect(ParseSource("~/Applications").Root).To(Equal(filepath.Join(home, "Applications")))
	})

	It("drops blank entries from a list", func() {
		sources := ParseSources([]string{"/a", "", "  ", "PackageRegistry"})
		Expect(sources).To(HaveLen(2))
		Expect(sources[1].Kind).To(Equal(KindRegistry))
	})
})

var _ = Describe("Scanner", func() {
	var (
		tmpDir string
		runner *stubRunner
		s      *Scanner
		ctx    context.Context
	)

	touch := func(rel, content string) string {
		path := filepath.Join(tmpDir, rel)
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(content), 0o755)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		dir, err := os.MkdirTemp("", "ade-scanner-test-*")
		Expect(err).NotTo(HaveOccurred())
		tmpDir, err = filepath.EvalSymlinks(dir)
		Expect(err).NotTo(HaveOccurred())

		runner = &stubRunner{}
		h := helper.New("pwsh -File", logx.Discard())
		h.Runner = runner
		s = New(h, logx.Discard())
		s.Locale = ""
		ctx = context.Background()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("filesystem sources", func() {
		It("collects allow-listed files case-insensitively", func() {
			exe := touch("Tools/Editor.EXE", "")
			touch("Tools/readme.txt", "")
			touch("Tools/nested/deep/Player.lnk", "")
			Expect(os.MkdirAll(filepath.Join(tmpDir, "Folder.exe"), 0o755)).To(Succeed())

			found, err := s.Scan(ctx, Source{Kind: KindFilesystem, Root: tmpDir})
			Expect(err).NotTo(HaveOccurred())
			Expect(names(found)).To(ConsistOf("Editor", "Player"))

			for _, app := range found {
				if app.Name == "Editor" {
					Expect(app.AppID).To(Equal(exe))
					Expect(app.Path).To(Equal(exe))
					Expect(app.UsageCount).To(BeZero())
				}
			}
		})

		It("resolves symlinked files to their target", func() {
			target := touch("real/tool.exe", "")
			Expect(os.MkdirAll(filepath.Join(tmpDir, "links"), 0o755)).To(Succeed())
			Expect(os.Symlink(target, filepath.Join(tmpDir, "links", "alias.exe"))).To(Succeed())

			found, err := s.Scan(ctx, Source{Kind: KindFilesystem, Root: filepath.Join(tmpDir, "links")})
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(1))
			Expect(found[0].Name).To(Equal("alias"))
			Expect(found[0].AppID).To(Equal(target))
		})

		It("reads desktop entries", func() {
			touch("firefox.desktop", "[Desktop Entry]\nName=Firefox\nName[de]=Firefox Browser\nExec=firefox %u\n")
			touch("hidden.desktop", "[Desktop Entry]\nName=Hidden\nExec=hidden\nNoDisplay=true\n")
			touch("broken.desktop", "[Desktop Entry]\nType=Application\n")

			found, err := s.Scan(ctx, Source{Kind: KindFilesystem, Root: tmpDir})
			Expect(err).NotTo(HaveOccurred())
			Expect(names(found)).To(Equal([]string{"Firefox"}))

			s.Locale = "de_DE.UTF-8"
			found, err = s.Scan(ctx, Source{Kind: KindFilesystem, Root: tmpDir})
			Expect(err).NotTo(HaveOccurred())
			Expect(names(found)).To(Equal([]string{"Firefox Browser"}))
		})

		It("honors a custom allow-list", func() {
			touch("a.sh", "")
			touch("b.exe", "")
			s.Extensions = []string{"SH"}

			found, err := s.Scan(ctx, Source{Kind: KindFilesystem, Root: tmpDir})
			Expect(err).NotTo(HaveOccurred())
			Expect(names(found)).To(Equal([]string{"a"}))
		})

		It("picks up plain executables when enabled", func() {
			htop := touch("bin/htop", "")
			data := touch("bin/data", "")
			Expect(os.Chmod(data, 0o644)).To(Succeed())
			touch("bin/.hidden", "")

			found, err := s.Scan(ctx, Source{Kind: KindFilesystem, Root: tmpDir})
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeEmpty())

			s.Executables = true
			found, err = s.Scan(ctx, Source{Kind: KindFilesystem, Root: tmpDir})
			Expect(err).NotTo(HaveOccurred())
			Expect(names(found)).To(Equal([]string{"htop"}))
			Expect(found[0].Path).To(Equal(htop))
		})

		It("keeps walking past unreadable subtrees", func() {
			touch("ok/app.exe", "")
			locked := filepath.Join(tmpDir, "locked")
			Expect(os.MkdirAll(locked, 0o755)).To(Succeed())
			touch("locked/secret.exe", "")
			Expect(os.Chmod(locked, 0o000)).To(Succeed())
			defer os.Chmod(locked, 0o755)

			found, err := s.Scan(ctx, Source{Kind: KindFilesystem, Root: tmpDir})
			Expect(err).NotTo(HaveOccurred())
			Expect(names(found)).To(ContainElement("app"))
		})

		It("reports a missing root as a ScanError", func() {
			_, err := s.Scan(ctx, Source{Kind: KindFilesystem, Root: filepath.Join(tmpDir, "missing")})
			var scanErr *ScanError
			Expect(errors.As(err, &scanErr)).To(BeTrue())
			Expect(scanErr.Source.Root).To(HaveSuffix("missing"))
		})

		It("stops when the context is cancelled", func() {
			touch("app.exe", "")
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := s.Scan(cancelled, Source{Kind: KindFilesystem, Root: tmpDir})
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})

	Describe("registry sources", func() {
		It("maps helper output to applications", func() {
			runner.stdout = `[{"name":"Calculator","app_id":"Microsoft.WindowsCalculator_8wekyb3d8bbwe!App","package_fullname":"Microsoft.WindowsCalculator_11.2210.0.0_x64__8wekyb3d8bbwe"},{"name":"Broken","app_id":"","package_fullname":"x"}]`

			found, err := s.Scan(ctx, Source{Kind: KindRegistry})
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(1))
			Expect(found[0].Name).To(Equal("Calculator"))
			Expect(found[0].AppID).To(Equal("Microsoft.WindowsCalculator_8wekyb3d8bbwe!App"))
			Expect(found[0].Path).To(Equal("Microsoft.WindowsCalculator_11.2210.0.0_x64__8wekyb3d8bbwe"))
		})

		It("fails the source on malformed output", func() {
			runner.stdout = "not json"
			_, err := s.Scan(ctx, Source{Kind: KindRegistry})
			var perr *helper.ProcessError
			Expect(errors.As(err, &perr)).To(BeTrue())
		})

		It("fails the source on a non-zero exit", func() {
			runner.err = errors.New("exit status 1")
			_, err := s.Scan(ctx, Source{Kind: KindRegistry})
			var scanErr *ScanError
			Expect(errors.As(err, &scanErr)).To(BeTrue())
			Expect(scanErr.Source.Kind).To(Equal(KindRegistry))
		})

		It("fails without a helper", func() {
			s.Helper = nil
			_, err := s.Scan(ctx, Source{Kind: KindRegistry})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ScanAll", func() {
		It("merges in source order and degrades failed sources to nothing", func() {
			touch("one/first.exe", "")
			touch("two/second.exe", "")
			runner.err = errors.New("exit status 1")

			found, errs := s.ScanAll(ctx, []Source{
				{Kind: KindFilesystem, Root: filepath.Join(tmpDir, "two")},
				{Kind: KindRegistry},
				{Kind: KindFilesystem, Root: filepath.Join(tmpDir, "one")},
				{Kind: KindFilesystem, Root: filepath.Join(tmpDir, "none")},
			})
			Expect(names(found)).To(Equal([]string{"second", "first"}))
			Expect(errs).To(HaveLen(2))
			Expect(runner.calls).To(Equal(1))
		})

		It("returns nothing for no sources", func() {
			found, errs := s.ScanAll(ctx, nil)
			Expect(found).To(BeEmpty())
			Expect(errs).To(BeEmpty())
		})
	})
})
