// Package types provides shared type definitions used across hdlforge packages.
// This package exists to break import cycles between state, agents, and workflow.
// Types in this package should be foundational data structures with no complex
// dependencies.
package types

import (
	"context"
	"strings"
)

// LLMClient defines the interface for model inference providers.
// Implementations surface "no result" through their own result semantics
// rather than propagating transport errors; see slm.Client.
type LLMClient interface {
	// Complete sends a prompt and returns the completion text.
	Complete(ctx context.Context, prompt string) (string, error)
	// CompleteWithTemperature sends a prompt with an explicit sampling temperature.
	CompleteWithTemperature(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Action is the closed set of moves the planner can dispatch.
type Action string

const (
	ActionGenerate Action = "generate"
	ActionValidate Action = "validate"
	ActionTest     Action = "test"
	ActionAnalyze  Action = "analyze"
	ActionComplete Action = "complete"
)

// ParseAction maps a free-form label to an Action.
// Returns false for anything outside the closed set so callers can apply
// their own default instead of dispatching garbage.
func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionGenerate, ActionValidate, ActionTest, ActionAnalyze, ActionComplete:
		return a, true
	}
	return "", false
}

// Decision is what a planner policy produces: the next action plus the
// reasoning behind it. The policy producing it is swappable (rule-based or
// model-backed) behind agents.PlannerPolicy.
type Decision struct {
	NextAction Action
	Reasoning  string
}

// ErrorCategory is the fixed taxonomy for toolchain diagnostics.
type ErrorCategory string

const (
	CategorySyntax     ErrorCategory = "syntax"
	CategoryUndeclared ErrorCategory = "undeclared"
	CategoryType       ErrorCategory = "type"
	CategoryWidth      ErrorCategory = "width"
	CategoryLatch      ErrorCategory = "latch"
	CategoryTiming     ErrorCategory = "timing"
	CategoryGeneral    ErrorCategory = "general"
	CategoryNone       ErrorCategory = "none"
)

// Priority ranks how urgently an error category should be addressed.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Tier is a quality milestone. Tiers only ever go up within a session.
type Tier int

const (
	TierNone       Tier = 0 // nothing achieved yet
	TierStructural Tier = 1 // structure valid / compiles
	TierComplete   Tier = 2 // all declared ports used
	TierTested     Tier = 3 // functional tests or lint pass
	TierOptimized  Tier = 4 // optimization pass applied
)

// PortAnalysis is the port-usage report from the heuristic port validator.
// It is a text-level scan, not semantic analysis: false positives and
// negatives on pathological code are accepted behavior.
type PortAnalysis struct {
	AllPortsUsed  bool     `json:"all_ports_used"`
	UnusedInputs  []string `json:"unused_inputs"`
	UnusedOutputs []string `json:"unused_outputs"`
	Feedback      string   `json:"feedback"`
}

// TestResult is the structured outcome of one toolchain run.
type TestResult struct {
	Passed  bool   `json:"passed"`
	Errors  string `json:"errors,omitempty"`
	Backend string `json:"backend"`
	Tier    Tier   `json:"tier_achieved"`
}

// ValidationResult is the structured outcome of one validator pass.
type ValidationResult struct {
	Valid        bool          `json:"valid"`
	Issues       []string      `json:"issues,omitempty"`
	Tier         Tier          `json:"tier_achieved"`
	PortAnalysis *PortAnalysis `json:"port_analysis,omitempty"`
}

// AnalysisResult is the structured outcome of one analyzer pass.
type AnalysisResult struct {
	Category    ErrorCategory   `json:"category"`
	Suggestions []string        `json:"suggestions"`
	Priority    Priority        `json:"priority"`
	Locations   *ErrorLocations `json:"locations,omitempty"`
}

// ErrorLocations holds positions pulled out of raw diagnostic text.
type ErrorLocations struct {
	LineNumbers []int    `json:"line_numbers,omitempty"`
	Files       []string `json:"files,omitempty"`
	Snippets    []string `json:"snippets,omitempty"`
}

// GenerationResult is the structured outcome of one generation attempt.
type GenerationResult struct {
	Code    string `json:"code"`
	Success bool   `json:"success"`
	Method  string `json:"method"`
}
