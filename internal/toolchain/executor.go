package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"hdlforge/internal/logging"
	"hdlforge/internal/types"
)

// Executor materializes generated code to the target file and exercises it,
// simulation first and lint as the fallback. Passing yields the tested tier;
// a run that executed but failed still proves the code was concrete enough
// to reach a tool, which keeps the structural tier.
type Executor struct {
	sim    *Simulator
	linter *Linter
	log    *logging.Logger
}

// NewExecutor wires the default backends.
func NewExecutor(sim *Simulator, linter *Linter) *Executor {
	return &Executor{
		sim:    sim,
		linter: linter,
		log:    logging.Get(logging.CategoryToolchain),
	}
}

// Run writes code to targetFile and tests it. The returned result is always
// usable; err is reserved for environment problems like an unwritable target.
func (e *Executor) Run(ctx context.Context, code, targetFile string) (types.TestResult, error) {
	if err := os.MkdirAll(filepath.Dir(targetFile), 0755); err != nil {
		return types.TestResult{}, fmt.Errorf("create target directory: %w", err)
	}
	if err := os.WriteFile(targetFile, []byte(code), 0644); err != nil {
		return types.TestResult{}, fmt.Errorf("write target file: %w", err)
	}

	if e.sim != nil && e.sim.Available(targetFile) {
		res, err := e.sim.Simulate(ctx, targetFile)
		if err == nil {
			return e.fromSim(res), nil
		}
		if !errors.Is(err, ErrNoTestbench) {
			return types.TestResult{}, err
		}
	}

	lintRes, err := e.linter.Lint(ctx, targetFile)
	if errors.Is(err, ErrNoLintTool) {
		e.log.Warn("no lint tool installed")
		return types.TestResult{
			Passed:  false,
			Errors:  "No suitable lint tool available",
			Backend: "none",
			Tier:    types.TierNone,
		}, nil
	}
	if err != nil {
		return types.TestResult{}, err
	}
	return e.fromLint(lintRes), nil
}

func (e *Executor) fromSim(res SimResult) types.TestResult {
	out := types.TestResult{Passed: res.Passed, Backend: "sim"}
	if res.Passed {
		out.Tier = types.TierTested
	} else {
		out.Tier = types.TierStructural
		out.Errors = res.Output
		if res.TimedOut {
			out.Backend = "sim-timeout"
		}
	}
	return out
}

func (e *Executor) fromLint(res LintResult) types.TestResult {
	out := types.TestResult{Passed: res.Passed, Backend: res.Tool}
	if res.Passed {
		out.Tier = types.TierTested
	} else {
		out.Tier = types.TierStructural
		out.Errors = res.Output
		if res.TimedOut {
			out.Backend = res.Tool + "-timeout"
		}
	}
	return out
}
