package helper

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/0xADE/ade-launchd/internal/logx"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeRunner struct {
	command string
	args    []string
	script  string
	opts    RunOptions
	result  RunResult
	err     error
}

func (f *fakeRunner) Run(_ context.Context, command string, args []string, opts RunOptions) (RunResult, error) {
	f.command = command
	f.opts = opts
	f.args = args
	if len(args) > 0 {
		data, _ := os.ReadFile(args[len(args)-1])
		f.script = string(data)
	}
	return f.result, f.err
}

type storeApp struct {
	Name            string `json:"name"`
	AppID           string `json:"app_id"`
	PackageFullname string `json:"package_fullname"`
}

var _ = Describe("Helper", func() {
	var (
		runner *fakeRunner
		h      *Helper
		ctx    context.Context
	)

	BeforeEach(func() {
		runner = &fakeRunner{}
		h = New("pwsh -NoProfile -File", logx.Discard())
		h.Runner = runner
		ctx = context.Background()
	})

	It("passes the script as a temporary file after the configured args", func() {
		runner.result = RunResult{Stdout: []byte("ok\n")}

		result, err := h.Run(ctx, "Get-StartApps | ConvertTo-Json")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Stdout).To(Equal("ok\n"))

		Expect(runner.command).To(Equal("pwsh"))
		Expect(runner.args).To(HaveLen(3))
		Expect(runner.args[:2]).To(Equal([]string{"-NoProfile", "-File"}))
		Expect(runner.args[2]).To(HaveSuffix(".ps1"))
		Expect(runner.script).To(Equal("Get-StartApps | ConvertTo-Json"))
	})

	It("forwards run options", func() {
		_, err := h.RunWith(ctx, "exit 0", RunOptions{Dir: "/tmp", Env: []string{"A=1"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(runner.opts).To(Equal(RunOptions{Dir: "/tmp", Env: []string{"A=1"}}))
	})

	It("removes the script file afterwards", func() {
		_, err := h.Run(ctx, "exit 0")
		Expect(err).NotTo(HaveOccurred())
		Expect(runner.args[len(runner.args)-1]).NotTo(BeAnExistingFile())
	})

	It("reports a failed run as a ProcessError", func() {
		runner.result = RunResult{Stderr: []byte("access denied")}
		runner.err = errors.New("exit status 1")

		_, err := h.Run(ctx, "throw")
		var perr *ProcessError
		Expect(errors.As(err, &perr)).To(BeTrue())
		Expect(perr.Stderr).To(Equal("access denied"))
		Expect(err.Error()).To(ContainSubstring("exit status 1"))
	})

	It("falls back to the default command line when empty", func() {
		def := New("  ", nil)
		Expect(def.Command).To(Equal("pwsh"))
		Expect(def.Args).To(Equal([]string{"-NoProfile", "-NonInteractive", "-File"}))
	})

	Context("with a real shell", func() {
		BeforeEach(func() {
			if _, err := exec.LookPath("sh"); err != nil {
				Skip("sh not available")
			}
			h = New("sh", logx.Discard())
			h.ScriptExt = ".sh"
		})

		It("returns the script output", func() {
			result, err := h.Run(ctx, "echo hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Stdout).To(Equal("hello\n"))
		})

		It("applies the working directory and environment", func() {
			dir, err := os.MkdirTemp("", "ade-helper-dir-*")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(os.RemoveAll, dir)
			dir, err = filepath.EvalSymlinks(dir)
			Expect(err).NotTo(HaveOccurred())

			result, err := h.RunWith(ctx, `pwd; echo "$ADE_TEST_VALUE"`, RunOptions{Dir: dir, Env: []string{"ADE_TEST_VALUE=42"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Stdout).To(Equal(dir + "\n42\n"))
		})

		It("fails on a non-zero exit", func() {
			_, err := h.Run(ctx, "echo broken >&2; exit 3")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("broken"))
		})
	})
})

var _ = Describe("DecodeList", func() {
	It("decodes an array", func() {
		items, err := DecodeList[storeApp]("pwsh", Result{Stdout: `[{"name":"Calculator","app_id":"Microsoft.WindowsCalculator_8wekyb3d8bbwe!App","package_fullname":"Microsoft.WindowsCalculator_11.2210.0.0_x64__8wekyb3d8bbwe"}]`})
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(HaveLen(1))
		Expect(items[0].Name).To(Equal("Calculator"))
		Expect(items[0].PackageFullname).To(HavePrefix("Microsoft.WindowsCalculator_"))
	})

	It("accepts a single object", func() {
		items, err := DecodeList[storeApp]("pwsh", Result{Stdout: "\ufeff" + `{"name":"Photos","app_id":"p!App","package_fullname":"p_1"}` + "\r\n"})
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(HaveLen(1))
		Expect(items[0].AppID).To(Equal("p!App"))
	})

	It("rejects empty output", func() {
		_, err := DecodeList[storeApp]("pwsh", Result{Stdout: "  \n"})
		var perr *ProcessError
		Expect(errors.As(err, &perr)).To(BeTrue())
		Expect(perr.Reason).To(Equal("empty output"))
	})

	It("rejects malformed output", func() {
		_, err := DecodeList[storeApp]("pwsh", Result{Stdout: "Get-StartApps : not recognized"})
		var perr *ProcessError
		Expect(errors.As(err, &perr)).To(BeTrue())
		Expect(perr.Reason).To(ContainSubstring("malformed output"))
	})
})
