package workflow

import (
	"context"
	"fmt"
	"time"

	"hdlforge/internal/logging"
	"hdlforge/internal/state"
)

// maxIterations bounds the simple generate-test-refine loop.
const maxIterations = 3

// RunIterative executes the fixed-pipeline fallback mode: generate, test,
// refine on failure, at most three rounds. No planner is involved; it is
// cheaper and more predictable than the planned loop but cannot reorder
// steps or salvage across approaches.
func (e *Engine) RunIterative(ctx context.Context, task state.Task) (*state.SessionState, error) {
	s := state.New(task, e.opts.MaxInvocations)
	e.phase = PhasePlanning
	e.history = nil

	ctx, cancel := context.WithTimeout(ctx, e.opts.MaxDuration)
	defer cancel()

	for i := 0; i < maxIterations; i++ {
		if ctx.Err() != nil {
			e.finish(s, fmt.Sprintf("session timeout after %v", e.opts.MaxDuration))
			return s, nil
		}
		if e.budget.Remaining(s) <= 0 {
			s.BudgetExhausted = true
			e.finish(s, "invocation budget exhausted")
			return s, nil
		}

		e.transition(PhaseGenerating, fmt.Sprintf("iteration %d", i+1))
		s.ChargeInvocation("generator")
		gen := e.generator.Generate(ctx, s)
		s.RecordGeneration(gen)
		if !gen.Success {
			continue
		}

		e.transition(PhaseValidating, "candidate ready")
		s.ChargeInvocation("validator")
		s.RecordValidation(e.validator.Validate(ctx, s))

		e.transition(PhaseTesting, "run tests")
		s.ChargeInvocation("tester")
		s.RecordTest(e.tester.Test(ctx, s))
		if s.Success {
			e.finish(s, "tests passed")
			return s, nil
		}

		e.transition(PhaseAnalyzing, "tests failed")
		s.ChargeInvocation("analyzer")
		s.RecordAnalysis(e.analyzer.Analyze(ctx, s))
	}

	e.finish(s, fmt.Sprintf("no passing candidate after %d iterations", maxIterations))
	return s, nil
}

// Mode selects which control loop a session uses.
type Mode string

const (
	ModeReact     Mode = "react"
	ModeIterative Mode = "iterative"
)

// ParseMode validates a mode label, defaulting to react.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeReact, "":
		return ModeReact, nil
	case ModeIterative:
		return ModeIterative, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// RunMode dispatches to the selected control loop.
func (e *Engine) RunMode(ctx context.Context, mode Mode, task state.Task) (*state.SessionState, error) {
	start := time.Now()
	defer func() {
		logging.Session("mode %s completed in %v", mode, time.Since(start).Round(time.Millisecond))
	}()

	if mode == ModeIterative {
		return e.RunIterative(ctx, task)
	}
	return e.Run(ctx, task)
}
