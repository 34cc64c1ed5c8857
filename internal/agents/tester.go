package agents

import (
	"context"

	"hdlforge/internal/logging"
	"hdlforge/internal/state"
	"hdlforge/internal/toolchain"
	"hdlforge/internal/types"
)

// Tester materializes the candidate and runs it through the toolchain.
type Tester struct {
	executor *toolchain.Executor
	log      *logging.Logger
}

// NewTester creates a tester over the given executor.
func NewTester(executor *toolchain.Executor) *Tester {
	return &Tester{
		executor: executor,
		log:      logging.Get(logging.CategoryTester),
	}
}

// Test runs the toolchain against the current candidate. No candidate means
// an immediate failure at tier 0; environment errors from the executor are
// reported the same way so the loop can keep going.
func (t *Tester) Test(ctx context.Context, s *state.SessionState) types.TestResult {
	if s.CurrentCode == "" {
		return types.TestResult{
			Passed:  false,
			Errors:  "no code to test",
			Backend: "none",
			Tier:    types.TierNone,
		}
	}

	res, err := t.executor.Run(ctx, s.CurrentCode, s.Task.TargetFile)
	if err != nil {
		t.log.Error("executor error: %v", err)
		return types.TestResult{
			Passed:  false,
			Errors:  err.Error(),
			Backend: "none",
			Tier:    types.TierNone,
		}
	}

	t.log.Info("backend=%s passed=%v tier=%d", res.Backend, res.Passed, res.Tier)
	return res
}
