// Package state defines the shared session state threaded through every agent
// call. Exactly one agent executes against a SessionState at a time; the
// workflow loop enforces mutual exclusion by construction, so no locking is
// done here. State lives for one session and is never persisted or restored.
package state

import (
	"time"

	"github.com/google/uuid"

	"hdlforge/internal/types"
)

// Task holds the immutable task inputs. Set once at session start.
type Task struct {
	Description  string
	ContextFiles map[string]string // file path -> content
	TargetFile   string            // where generated code is materialized
}

// ErrorRecord is one entry in the session's error history.
type ErrorRecord struct {
	Category    types.ErrorCategory
	Suggestions []string
}

// SessionState is the single mutable record owned by the control loop.
// Agents receive it by pointer for the duration of one call and must not
// retain the pointer across calls.
type SessionState struct {
	// Identity
	SessionID string

	// Task (immutable after creation)
	Task Task

	// Code evolution
	CurrentCode string
	CodeHistory []string
	BestCode    string // longest successful candidate so far, kept as fallback

	// Validation results
	StructureValid bool
	PortAnalysis   *types.PortAnalysis
	TestResults    *types.TestResult

	// Error tracking
	CurrentErrors       string
	ErrorCategory       types.ErrorCategory
	ErrorHistory        []ErrorRecord
	ConsecutiveFailures int

	// Agent coordination
	LastAgent        string
	NextAction       types.Action
	PlannerReasoning []string

	// Budget tracking
	Invocations     int
	MaxInvocations  int
	CodeRefinements int
	PlannerCalls    int
	SpecialistCalls int
	RoleCalls       map[string]int // per-role invocation counts for soft allocations

	// Quality tracking
	CurrentTier      types.Tier
	TargetTier       types.Tier
	TierAchievements map[types.Tier]bool

	// Status
	Iteration       int
	Success         bool
	Completed       bool
	BudgetExhausted bool
	StartTime       time.Time
	FinalMessage    string
}

// New creates the initial state for a generation session.
func New(task Task, maxInvocations int) *SessionState {
	return &SessionState{
		SessionID:      uuid.NewString(),
		Task:           task,
		MaxInvocations: maxInvocations,
		RoleCalls:      map[string]int{},
		ErrorCategory:  types.CategoryNone,
		CurrentTier:    types.TierNone,
		TargetTier:     types.TierTested,
		TierAchievements: map[types.Tier]bool{
			types.TierStructural: false,
			types.TierComplete:   false,
			types.TierTested:     false,
			types.TierOptimized:  false,
		},
		StartTime: time.Now(),
	}
}

// RecordGeneration applies a generation result to the state. Successful
// generations replace the current candidate wholesale (never patched in
// place), append to history, reset the consecutive-failure counter, and may
// promote the best candidate. Failures only bump the failure counter.
func (s *SessionState) RecordGeneration(res types.GenerationResult) {
	if res.Success {
		s.CurrentCode = res.Code
		s.CodeHistory = append(s.CodeHistory, res.Code)
		s.CodeRefinements++
		if len(res.Code) > len(s.BestCode) {
			s.BestCode = res.Code
		}
		s.ConsecutiveFailures = 0
	} else {
		s.ConsecutiveFailures++
	}
	s.Iteration++
}

// RecordValidation applies a validator result.
func (s *SessionState) RecordValidation(res types.ValidationResult) {
	s.StructureValid = res.Valid
	s.PortAnalysis = res.PortAnalysis
	s.PromoteTier(res.Tier)
	if !res.Valid && len(res.Issues) > 0 {
		s.CurrentErrors = joinIssues(res.Issues)
	}
}

// RecordTest applies a tester result.
func (s *SessionState) RecordTest(res types.TestResult) {
	cp := res
	s.TestResults = &cp
	s.PromoteTier(res.Tier)
	if res.Passed {
		s.Success = true
		s.CurrentErrors = ""
	} else {
		s.CurrentErrors = res.Errors
		s.ConsecutiveFailures++
	}
}

// RecordAnalysis applies an analyzer result.
func (s *SessionState) RecordAnalysis(res types.AnalysisResult) {
	s.ErrorCategory = res.Category
	s.ErrorHistory = append(s.ErrorHistory, ErrorRecord{
		Category:    res.Category,
		Suggestions: res.Suggestions,
	})
}

// PromoteTier raises the current tier if the achieved tier exceeds it.
// Tiers never regress and achievement flags, once set, stay set.
func (s *SessionState) PromoteTier(tier types.Tier) {
	if tier <= s.CurrentTier {
		return
	}
	s.CurrentTier = tier
	for t := types.TierStructural; t <= tier; t++ {
		s.TierAchievements[t] = true
	}
}

// ChargeInvocation counts one agent call against the budget, attributing it
// to either the planner or a specialist role.
func (s *SessionState) ChargeInvocation(agent string) {
	s.Invocations++
	s.LastAgent = agent
	if s.RoleCalls == nil {
		s.RoleCalls = map[string]int{}
	}
	s.RoleCalls[agent]++
	if agent == "planner" {
		s.PlannerCalls++
	} else {
		s.SpecialistCalls++
	}
}

// HasUnresolvedPortIssues reports whether the last port analysis found
// declared-but-unused ports.
func (s *SessionState) HasUnresolvedPortIssues() bool {
	return s.PortAnalysis != nil && !s.PortAnalysis.AllPortsUsed
}

// Elapsed returns wall-clock time since session start.
func (s *SessionState) Elapsed() time.Duration {
	return time.Since(s.StartTime)
}

func joinIssues(issues []string) string {
	out := ""
	for i, issue := range issues {
		if i > 0 {
			out += "\n"
		}
		out += issue
	}
	return out
}
