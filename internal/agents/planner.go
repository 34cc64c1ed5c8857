package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"hdlforge/internal/budget"
	"hdlforge/internal/logging"
	"hdlforge/internal/state"
	"hdlforge/internal/types"
)

// ErrInvalidDecision marks planner output that failed strict validation:
// unparseable JSON, an unknown action label, or empty reasoning.
var ErrInvalidDecision = errors.New("invalid planner decision")

// PlannerPolicy decides the next action for a session. Implementations must
// be deterministic for a given state or delegate to the model; either way
// the caller owns fallback behavior.
type PlannerPolicy interface {
	Decide(ctx context.Context, s *state.SessionState) (types.Decision, error)
}

// RulePolicy is the deterministic planner. It walks the natural pipeline:
// generate until code exists, validate it, refine on failure, test once
// valid, analyze test failures, complete on success.
type RulePolicy struct{}

// Decide implements PlannerPolicy.
func (RulePolicy) Decide(ctx context.Context, s *state.SessionState) (types.Decision, error) {
	switch {
	case s.CurrentCode == "":
		return types.Decision{NextAction: types.ActionGenerate, Reasoning: "no candidate yet"}, nil
	case s.Success:
		return types.Decision{NextAction: types.ActionComplete, Reasoning: "tests passed"}, nil
	case s.LastAgent == "generator":
		return types.Decision{NextAction: types.ActionValidate, Reasoning: "fresh candidate needs validation"}, nil
	case s.LastAgent == "validator" && !s.StructureValid:
		return types.Decision{NextAction: types.ActionGenerate, Reasoning: "validation failed, refine"}, nil
	case s.LastAgent == "validator" && s.HasUnresolvedPortIssues():
		return types.Decision{NextAction: types.ActionGenerate, Reasoning: "port issues, refine"}, nil
	case s.LastAgent == "validator":
		return types.Decision{NextAction: types.ActionTest, Reasoning: "candidate validated, run tests"}, nil
	case s.LastAgent == "tester":
		return types.Decision{NextAction: types.ActionAnalyze, Reasoning: "tests failed, analyze errors"}, nil
	case s.LastAgent == "analyzer":
		return types.Decision{NextAction: types.ActionGenerate, Reasoning: "analysis done, refine"}, nil
	default:
		return types.Decision{NextAction: types.ActionValidate, Reasoning: "assess current candidate"}, nil
	}
}

// SLMPolicy delegates planning to the model, injecting the budget status
// and zone strategy into the prompt. Decisions are validated strictly; a
// model that returns garbage gets ErrInvalidDecision, never a guessed action.
type SLMPolicy struct {
	client types.LLMClient
	budget *budget.Manager
	log    *logging.Logger
}

// NewSLMPolicy creates a model-backed planner policy.
func NewSLMPolicy(client types.LLMClient, mgr *budget.Manager) *SLMPolicy {
	return &SLMPolicy{
		client: client,
		budget: mgr,
		log:    logging.Get(logging.CategoryPlanner),
	}
}

type plannerResponse struct {
	NextAction string `json:"next_action"`
	Reasoning  string `json:"reasoning"`
}

// Decide implements PlannerPolicy.
func (p *SLMPolicy) Decide(ctx context.Context, s *state.SessionState) (types.Decision, error) {
	prompt := BuildPlannerPrompt(s, p.budget.FormatStatus(s), p.budget.StrategyFor(s))

	raw, err := p.client.Complete(ctx, prompt)
	if err != nil {
		return types.Decision{}, fmt.Errorf("planner completion: %w", err)
	}

	decision, err := ParseDecision(raw)
	if err != nil {
		p.log.Warn("rejected planner output: %v", err)
		return types.Decision{}, err
	}

	p.log.Info("decision=%s reasoning=%s", decision.NextAction, decision.Reasoning)
	return decision, nil
}

// ParseDecision decodes and strictly validates a planner response. Models
// habitually wrap JSON in markdown fences, so those are stripped first.
func ParseDecision(raw string) (types.Decision, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var resp plannerResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return types.Decision{}, fmt.Errorf("%w: %v", ErrInvalidDecision, err)
	}

	action, ok := types.ParseAction(resp.NextAction)
	if !ok {
		return types.Decision{}, fmt.Errorf("%w: unknown action %q", ErrInvalidDecision, resp.NextAction)
	}
	if strings.TrimSpace(resp.Reasoning) == "" {
		return types.Decision{}, fmt.Errorf("%w: empty reasoning", ErrInvalidDecision)
	}

	return types.Decision{NextAction: action, Reasoning: resp.Reasoning}, nil
}

// Planner wraps a policy with the fallback contract: unparseable output
// defaults to generate (the model probably tried to emit code), while a
// policy execution error defaults to complete so the session winds down
// instead of spinning.
type Planner struct {
	policy PlannerPolicy
	log    *logging.Logger
}

// NewPlanner wraps a policy.
func NewPlanner(policy PlannerPolicy) *Planner {
	return &Planner{
		policy: policy,
		log:    logging.Get(logging.CategoryPlanner),
	}
}

// Decide never fails; it maps policy failures onto default actions.
func (p *Planner) Decide(ctx context.Context, s *state.SessionState) types.Decision {
	decision, err := p.policy.Decide(ctx, s)
	if err == nil {
		return decision
	}
	if errors.Is(err, ErrInvalidDecision) {
		p.log.Warn("falling back to generate: %v", err)
		return types.Decision{NextAction: types.ActionGenerate, Reasoning: "planner output invalid, defaulting to generate"}
	}
	p.log.Error("policy error, completing session: %v", err)
	return types.Decision{NextAction: types.ActionComplete, Reasoning: "planner unavailable, defaulting to complete"}
}
