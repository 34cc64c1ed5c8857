package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"hdlforge/internal/logging"
)

// ErrNoLintTool is returned when neither lint backend is installed.
var ErrNoLintTool = errors.New("no suitable lint tool available")

// LintResult is the outcome of one lint run.
type LintResult struct {
	Passed   bool
	Tool     string
	Output   string
	TimedOut bool
}

// Linter checks Verilog files with whichever lint tool is installed,
// preferring verilator for its stricter diagnostics. lookPath and runner are
// injectable for tests.
type Linter struct {
	Timeout  time.Duration
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
	log      *logging.Logger
}

// NewLinter creates a linter with the given per-run timeout.
func NewLinter(timeout time.Duration) *Linter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Linter{
		Timeout:  timeout,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
		log: logging.Get(logging.CategoryToolchain),
	}
}

// Lint checks the file with verilator when present, otherwise iverilog.
// Verilator signals failure through its exit code; iverilog in lint mode can
// exit zero while still printing errors, so its output is scanned too.
func (l *Linter) Lint(ctx context.Context, file string) (LintResult, error) {
	if _, err := l.lookPath("verilator"); err == nil {
		return l.runTool(ctx, "verilator", false, "--lint-only", "-Wall", file)
	}
	if _, err := l.lookPath("iverilog"); err == nil {
		return l.runTool(ctx, "iverilog", true, "-t", "null", file)
	}
	return LintResult{}, ErrNoLintTool
}

func (l *Linter) runTool(ctx context.Context, tool string, scanOutput bool, args ...string) (LintResult, error) {
	ctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	timer := logging.StartTimer(logging.CategoryToolchain, tool)
	out, err := l.run(ctx, tool, args...)
	timer.Stop()

	output := string(out)
	res := LintResult{Tool: tool, Output: TruncateDiagnostics(output)}

	if ctx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.Output = fmt.Sprintf("%s timed out after %v", tool, l.Timeout)
		return res, nil
	}
	if err != nil {
		l.log.Info("%s failed: %v", tool, err)
		return res, nil
	}
	if scanOutput && strings.Contains(strings.ToLower(output), "error") {
		return res, nil
	}

	res.Passed = true
	return res, nil
}
