package helper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/0xADE/ade-launchd/internal/logx"
)

const (
	DefaultCommandLine = "pwsh -NoProfile -NonInteractive -File"
	defaultScriptExt   = ".ps1"
	previewLength      = 200
)

// ProcessError reports a failed helper invocation: a non-zero exit, a process
// that could not start, or output that could not be decoded.
type ProcessError struct {
	Command string
	Reason  string
	Stderr  string
	Err     error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("helper %s: %s", e.Command, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += " (stderr: " + stderr + ")"
	}
	return msg
}

func (e *ProcessError) Unwrap() error { return e.Err }

// Result is the decoded text output of a helper run.
type Result struct {
	Stdout string
	Stderr string
}

// Helper runs scripts through an external interpreter. The script is written
// to a temporary file whose path is appended to the configured arguments.
type Helper struct {
	Command   string
	Args      []string
	ScriptExt string
	Runner    Runner
	Logger    *logx.Logger
}

// New builds a helper from a command line such as "pwsh -NoProfile -File".
func New(commandLine string, logger *logx.Logger) *Helper {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		fields = strings.Fields(DefaultCommandLine)
	}
	return &Helper{
		Command:   fields[0],
		Args:      fields[1:],
		ScriptExt: defaultScriptExt,
		Runner:    CmdRunner{},
		Logger:    logger,
	}
}

// Run executes script and returns its output. Any failure is a *ProcessError.
func (h *Helper) Run(ctx context.Context, script string) (Result, error) {
	return h.RunWith(ctx, script, RunOptions{})
}

// RunWith is Run with a working directory and extra environment.
func (h *Helper) RunWith(ctx context.Context, script string, opts RunOptions) (Result, error) {
	scriptPath, err := h.writeScript(script)
	if err != nil {
		return Result{}, &ProcessError{Command: h.Command, Reason: "write script", Err: err}
	}
	defer func() {
		if err := os.Remove(scriptPath); err != nil {
			h.Logger.Warnf("Failed to remove helper script %s: %v", scriptPath, err)
		}
	}()

	args := append(append([]string{}, h.Args...), scriptPath)
	h.Logger.Debugf("Running helper: %s %v", h.Command, args)

	out, err := h.runner().Run(ctx, h.Command, args, opts)
	result := Result{Stdout: string(out.Stdout), Stderr: string(out.Stderr)}
	if err != nil {
		return result, &ProcessError{Command: h.Command, Reason: "run", Stderr: result.Stderr, Err: err}
	}
	if result.Stderr != "" {
		h.Logger.Warnf("Helper stderr: %s", strings.TrimSpace(result.Stderr))
	}
	h.Logger.Debugf("Helper stdout length: %d bytes", len(result.Stdout))
	return result, nil
}

func (h *Helper) runner() Runner {
	if h.Runner == nil {
		return CmdRunner{}
	}
	return h.Runner
}

func (h *Helper) writeScript(script string) (string, error) {
	ext := h.ScriptExt
	if ext == "" {
		ext = defaultScriptExt
	}
	file, err := os.CreateTemp("", "ade-launchd-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := file.WriteString(script); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", err
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", err
	}
	return file.Name(), nil
}

// DecodeList parses helper stdout holding a JSON array. A bare JSON object is
// read as a one-element array (ConvertTo-Json unwraps singleton arrays).
func DecodeList[T any](command string, result Result) ([]T, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(result.Stdout, "\ufeff"))
	if trimmed == "" {
		return nil, &ProcessError{Command: command, Reason: "empty output", Stderr: result.Stderr}
	}
	if strings.HasPrefix(trimmed, "{") {
		trimmed = "[" + trimmed + "]"
	}

	var items []T
	if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
		return nil, &ProcessError{
			Command: command,
			Reason:  fmt.Sprintf("malformed output %q", preview(trimmed)),
			Err:     err,
		}
	}
	return items, nil
}

func preview(s string) string {
	if len(s) > previewLength {
		return s[:previewLength] + "..."
	}
	return s
}
