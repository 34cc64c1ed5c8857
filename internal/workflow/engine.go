// Package workflow drives the planner/specialist control loop. One engine
// run is one session: the planner decides, a specialist executes, results
// flow back into the shared state, and the budget manager arbitrates
// termination. The loop is strictly sequential.
package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hdlforge/internal/agents"
	"hdlforge/internal/budget"
	"hdlforge/internal/logging"
	"hdlforge/internal/state"
	"hdlforge/internal/types"
)

// Phase is the engine's position in the control loop.
type Phase string

const (
	PhasePlanning   Phase = "planning"
	PhaseGenerating Phase = "generating"
	PhaseValidating Phase = "validating"
	PhaseTesting    Phase = "testing"
	PhaseAnalyzing  Phase = "analyzing"
	PhaseTerminated Phase = "terminated"
)

// PhaseTransition records one phase change for post-hoc inspection.
type PhaseTransition struct {
	From   Phase
	To     Phase
	Reason string
	At     time.Time
}

// Options tune engine behavior.
type Options struct {
	MaxInvocations int
	MaxDuration    time.Duration
	ExitOnTier3    bool
}

// DefaultOptions returns the standard session limits.
func DefaultOptions() Options {
	return Options{
		MaxInvocations: 50,
		MaxDuration:    900 * time.Second,
		ExitOnTier3:    true,
	}
}

// The engine depends on agent behavior, not concrete agents, so each can be
// swapped in tests.
type planner interface {
	Decide(ctx context.Context, s *state.SessionState) types.Decision
}

type generator interface {
	Generate(ctx context.Context, s *state.SessionState) types.GenerationResult
}

type validator interface {
	Validate(ctx context.Context, s *state.SessionState) types.ValidationResult
}

type tester interface {
	Test(ctx context.Context, s *state.SessionState) types.TestResult
}

type analyzer interface {
	Analyze(ctx context.Context, s *state.SessionState) types.AnalysisResult
}

// Engine owns one session's control loop.
type Engine struct {
	planner   planner
	generator generator
	validator validator
	tester    tester
	analyzer  analyzer
	budget    *budget.Manager
	opts      Options

	phase   Phase
	history []PhaseTransition
	log     *logging.Logger
}

// NewEngine assembles an engine from its agents.
func NewEngine(planner planner, generator generator, validator validator,
	tester tester, analyzer analyzer, opts Options) *Engine {
	if opts.MaxInvocations <= 0 {
		opts.MaxInvocations = DefaultOptions().MaxInvocations
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultOptions().MaxDuration
	}
	return &Engine{
		planner:   planner,
		generator: generator,
		validator: validator,
		tester:    tester,
		analyzer:  analyzer,
		budget:    budget.NewManager(opts.MaxInvocations),
		opts:      opts,
		phase:     PhasePlanning,
		log:       logging.Get(logging.CategorySession),
	}
}

// History returns the phase transitions of the last run.
func (e *Engine) History() []PhaseTransition {
	return e.history
}

func (e *Engine) transition(to Phase, reason string) {
	e.history = append(e.history, PhaseTransition{From: e.phase, To: to, Reason: reason, At: time.Now()})
	e.log.Debug("phase %s -> %s (%s)", e.phase, to, reason)
	e.phase = to
}

// Run executes a full session for the task. The returned state always
// carries a final message and, when any candidate exists, the best candidate
// written to the target file. Only environment failures surface as errors.
func (e *Engine) Run(ctx context.Context, task state.Task) (*state.SessionState, error) {
	s := state.New(task, e.opts.MaxInvocations)
	e.phase = PhasePlanning
	e.history = nil

	ctx, cancel := context.WithTimeout(ctx, e.opts.MaxDuration)
	defer cancel()

	logging.Session("session %s started: %s", s.SessionID, task.Description)

	for {
		if reason := e.checkTermination(ctx, s); reason != "" {
			e.finish(s, reason)
			return s, nil
		}

		decision := e.plan(ctx, s)
		s.PlannerReasoning = append(s.PlannerReasoning, decision.Reasoning)

		if decision.NextAction == types.ActionComplete {
			s.Completed = true
			continue
		}

		if earlyExit := e.dispatch(ctx, s, decision.NextAction); earlyExit {
			e.finish(s, "target tier reached")
			return s, nil
		}
		e.transition(PhasePlanning, "specialist done")
	}
}

// checkTermination evaluates every stop condition in priority order and
// returns a human-readable reason, or empty to continue.
func (e *Engine) checkTermination(ctx context.Context, s *state.SessionState) string {
	if ctx.Err() != nil || s.Elapsed() >= e.opts.MaxDuration {
		return fmt.Sprintf("session timeout after %v", e.opts.MaxDuration)
	}
	switch e.budget.ShouldStop(s) {
	case budget.StopBudgetExhausted:
		s.BudgetExhausted = true
		return "invocation budget exhausted"
	case budget.StopTargetReached:
		return "target tier reached"
	case budget.StopConsecutiveFailures:
		return fmt.Sprintf("%d consecutive failures", s.ConsecutiveFailures)
	case budget.StopCompleted:
		return "planner declared completion"
	}
	return ""
}

// plan charges and runs one planner decision.
func (e *Engine) plan(ctx context.Context, s *state.SessionState) types.Decision {
	if !e.budget.CanInvoke(s, "planner") {
		// Planner allocation and global slack spent: fall through the
		// pipeline deterministically without charging an invocation.
		d, _ := agents.RulePolicy{}.Decide(ctx, s)
		return d
	}
	s.ChargeInvocation("planner")
	logging.Budget("%s", e.budget.FormatStatus(s))
	return e.planner.Decide(ctx, s)
}

// dispatch runs one specialist. The return reports an early exit: tests just
// reached the target tier and the engine is configured to stop there.
func (e *Engine) dispatch(ctx context.Context, s *state.SessionState, action types.Action) bool {
	role := roleFor(action)
	if !e.budget.CanInvoke(s, role) {
		e.log.Info("allocation exhausted for %s, skipping", role)
		s.ConsecutiveFailures++
		return false
	}

	switch action {
	case types.ActionGenerate:
		e.transition(PhaseGenerating, "planner chose generate")
		s.ChargeInvocation("generator")
		s.RecordGeneration(e.generator.Generate(ctx, s))

	case types.ActionValidate:
		e.transition(PhaseValidating, "planner chose validate")
		s.ChargeInvocation("validator")
		s.RecordValidation(e.validator.Validate(ctx, s))

	case types.ActionTest:
		e.transition(PhaseTesting, "planner chose test")
		s.ChargeInvocation("tester")
		s.RecordTest(e.tester.Test(ctx, s))
		if e.opts.ExitOnTier3 && s.CurrentTier >= types.TierTested {
			return true
		}

	case types.ActionAnalyze:
		e.transition(PhaseAnalyzing, "planner chose analyze")
		s.ChargeInvocation("analyzer")
		s.RecordAnalysis(e.analyzer.Analyze(ctx, s))
	}

	return false
}

func roleFor(action types.Action) string {
	switch action {
	case types.ActionGenerate:
		return "generator"
	case types.ActionValidate:
		return "validator"
	case types.ActionTest:
		return "tester"
	default:
		return "analyzer"
	}
}

// finish closes out the session: record the reason, and make sure the best
// candidate survives on disk even when the session fell short.
func (e *Engine) finish(s *state.SessionState, reason string) {
	e.transition(PhaseTerminated, reason)
	s.Completed = true
	s.FinalMessage = fmt.Sprintf("%s after %d invocations (tier %d) in %v",
		reason, s.Invocations, s.CurrentTier, s.Elapsed().Round(time.Millisecond))

	if s.BestCode != "" && s.Task.TargetFile != "" {
		if err := writeTarget(s.Task.TargetFile, s.BestCode); err != nil {
			e.log.Error("could not write best candidate: %v", err)
		}
	}

	logging.Session("session %s finished: %s", s.SessionID, s.FinalMessage)
}

func writeTarget(path, code string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(code), 0644)
}
