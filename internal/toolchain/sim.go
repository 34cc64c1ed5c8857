package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"hdlforge/internal/logging"
)

// ErrNoTestbench is returned when the target directory has no simulation
// harness to run.
var ErrNoTestbench = errors.New("no testbench found")

// SimResult is the outcome of one simulation run.
type SimResult struct {
	Passed   bool
	Output   string
	TimedOut bool
}

// Simulator drives a make-based testbench (the cocotb convention: a Makefile
// next to the design, failures reported via exit code and a FAILED marker in
// the results summary).
type Simulator struct {
	Timeout  time.Duration
	lookPath func(string) (string, error)
	run      func(ctx context.Context, dir, name string, args ...string) ([]byte, error)
	stat     func(string) (os.FileInfo, error)
	log      *logging.Logger
}

// NewSimulator creates a simulator with the given per-run timeout.
func NewSimulator(timeout time.Duration) *Simulator {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Simulator{
		Timeout:  timeout,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
			cmd := exec.CommandContext(ctx, name, args...)
			cmd.Dir = dir
			return cmd.CombinedOutput()
		},
		stat: os.Stat,
		log:  logging.Get(logging.CategoryToolchain),
	}
}

// Available reports whether the design directory carries a runnable
// testbench: a Makefile plus make on the path.
func (s *Simulator) Available(designFile string) bool {
	if _, err := s.lookPath("make"); err != nil {
		return false
	}
	_, err := s.stat(filepath.Join(filepath.Dir(designFile), "Makefile"))
	return err == nil
}

// Simulate runs the testbench for the design file's directory.
func (s *Simulator) Simulate(ctx context.Context, designFile string) (SimResult, error) {
	if !s.Available(designFile) {
		return SimResult{}, ErrNoTestbench
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	timer := logging.StartTimer(logging.CategoryToolchain, "simulation")
	out, err := s.run(ctx, filepath.Dir(designFile), "make")
	timer.Stop()

	output := string(out)
	res := SimResult{Output: TruncateDiagnostics(output)}

	if ctx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.Output = fmt.Sprintf("simulation timed out after %v", s.Timeout)
		return res, nil
	}
	if err != nil {
		s.log.Info("simulation failed: %v", err)
		return res, nil
	}
	if strings.Contains(strings.ToUpper(output), "FAILED") {
		return res, nil
	}

	res.Passed = true
	return res, nil
}
