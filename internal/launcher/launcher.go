package launcher

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/0xADE/ade-launchd/internal/apps"
	"github.com/0xADE/ade-launchd/internal/helper"
	"github.com/0xADE/ade-launchd/internal/logx"
	"github.com/0xADE/ade-launchd/internal/scanner/desktop"
)

// ErrEmptyCommand is returned for desktop entries without an Exec line.
var ErrEmptyCommand = errors.New("empty exec command")

// Plan is how an application gets started: either a process (Args) or a
// helper script (Script).
type Plan struct {
	Args   []string
	Script string
}

// Launcher starts applications from the working set.
type Launcher struct {
	Helper   *helper.Helper
	Terminal string
	OS       string
	Logger   *logx.Logger

	// Start starts cmd without waiting for it. Defaults to cmd.Start.
	Start func(cmd *exec.Cmd) error
}

// New creates a launcher for the current OS.
func New(h *helper.Helper, terminal string, logger *logx.Logger) *Launcher {
	return &Launcher{Helper: h, Terminal: terminal, OS: runtime.GOOS, Logger: logger}
}

// Resolve decides how app is started.
func (l *Launcher) Resolve(app apps.Application) (Plan, error) {
	if isPackage(app) {
		return Plan{Script: fmt.Sprintf(`Start-Process "shell:AppsFolder\%s"`, app.AppID)}, nil
	}

	switch strings.ToLower(filepath.Ext(app.Path)) {
	case desktop.Ext:
		entry, err := desktop.ParseFile(app.Path)
		if err != nil {
			return Plan{}, err
		}
		command := entry.Command()
		if command == "" {
			return Plan{}, ErrEmptyCommand
		}
		if entry.Terminal {
			return Plan{Args: []string{l.terminal(), "-e", command}}, nil
		}
		return Plan{Args: strings.Fields(command)}, nil
	case ".lnk":
		if l.OS == "windows" {
			return Plan{Script: fmt.Sprintf("Start-Process -FilePath '%s'", strings.ReplaceAll(app.Path, "'", "''"))}, nil
		}
		return Plan{Args: []string{"xdg-open", app.Path}}, nil
	default:
		return Plan{Args: []string{app.Path}}, nil
	}
}

// Launch starts app and returns the pid of the started process, or 0 when
// it was started through the helper.
func (l *Launcher) Launch(ctx context.Context, app apps.Application) (int, error) {
	plan, err := l.Resolve(app)
	if err != nil {
		return 0, fmt.Errorf("launch %s: %w", app.Name, err)
	}

	if plan.Script != "" {
		if l.Helper == nil {
			return 0, fmt.Errorf("launch %s: no helper configured", app.Name)
		}
		l.Logger.Debugf("Launching %s through helper", app.AppID)
		if _, err := l.Helper.Run(ctx, plan.Script); err != nil {
			return 0, fmt.Errorf("launch %s: %w", app.Name, err)
		}
		return 0, nil
	}

	l.Logger.Debugf("Executing: %v", plan.Args)
	cmd := exec.Command(plan.Args[0], plan.Args[1:]...)
	if dir := filepath.Dir(app.Path); filepath.IsAbs(dir) {
		cmd.Dir = dir
	}
	start := l.Start
	if start == nil {
		start = (*exec.Cmd).Start
	}
	if err := start(cmd); err != nil {
		return 0, fmt.Errorf("launch %s: %w", app.Name, err)
	}
	if cmd.Process == nil {
		return 0, nil
	}
	pid := cmd.Process.Pid
	// Reap the child when it exits; the launcher does not wait on it.
	go cmd.Wait()
	return pid, nil
}

func (l *Launcher) terminal() string {
	if l.Terminal != "" {
		return l.Terminal
	}
	return "xterm"
}

// isPackage reports whether app comes from the package registry: its launch
// target is a package identifier rather than a file path.
func isPackage(app apps.Application) bool {
	return app.Path != "" && !strings.ContainsAny(app.Path, `/\`)
}
