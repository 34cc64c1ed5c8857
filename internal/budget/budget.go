// Package budget implements the invocation budget that bounds a generation
// session. Every agent call, planner or specialist, costs one invocation.
// Remaining budget maps to a zone that shifts planning strategy from
// explore to salvage as the session burns down.
package budget

import (
	"fmt"

	"hdlforge/internal/state"
	"hdlforge/internal/types"
)

// Zone is a coarse budget-pressure level.
type Zone string

const (
	ZoneGreen  Zone = "green"  // explore freely
	ZoneYellow Zone = "yellow" // focus on the current approach
	ZoneOrange Zone = "orange" // converge, no new approaches
	ZoneRed    Zone = "red"    // salvage best candidate
)

// Default thresholds, expressed on a 50-invocation scale and rescaled
// proportionally for other caps.
const (
	defaultCap      = 50
	greenThreshold  = 40
	yellowThreshold = 20
	orangeThreshold = 10
)

// StopReason explains why the loop must terminate, or empty to continue.
type StopReason string

const (
	StopBudgetExhausted     StopReason = "budget_exhausted"
	StopTargetReached       StopReason = "target_tier_reached"
	StopConsecutiveFailures StopReason = "consecutive_failures"
	StopCompleted           StopReason = "planner_completed"
	StopContinue            StopReason = ""
)

// MaxConsecutiveFailures terminates a session that keeps failing without
// progress.
const MaxConsecutiveFailures = 5

// Manager tracks invocation spend against a fixed cap and advises the
// planner on pacing. Per-role allocations are soft: a role past its share
// keeps drawing on the global pool until the final stretch, where only
// roles still under allocation may spend.
type Manager struct {
	cap         int
	allocations map[string]int
}

// NewManager creates a budget manager for the given cap. Non-positive caps
// fall back to the default.
func NewManager(cap int) *Manager {
	if cap <= 0 {
		cap = defaultCap
	}
	return &Manager{
		cap:         cap,
		allocations: defaultAllocations(cap),
	}
}

// Soft allocations as fractions of the cap: planner 30%, generator 40%,
// validator/tester/analyzer 10% each.
func defaultAllocations(cap int) map[string]int {
	return map[string]int{
		"planner":   cap * 30 / 100,
		"generator": cap * 40 / 100,
		"validator": cap * 10 / 100,
		"tester":    cap * 10 / 100,
		"analyzer":  cap * 10 / 100,
	}
}

// Cap returns the total invocation budget.
func (m *Manager) Cap() int { return m.cap }

// Remaining returns how many invocations are left.
func (m *Manager) Remaining(s *state.SessionState) int {
	r := m.cap - s.Invocations
	if r < 0 {
		return 0
	}
	return r
}

// ZoneFor maps remaining budget to a pressure zone. Thresholds scale
// proportionally with the cap.
func (m *Manager) ZoneFor(s *state.SessionState) Zone {
	remaining := m.Remaining(s)
	switch {
	case remaining >= scale(greenThreshold, m.cap):
		return ZoneGreen
	case remaining >= scale(yellowThreshold, m.cap):
		return ZoneYellow
	case remaining >= scale(orangeThreshold, m.cap):
		return ZoneOrange
	default:
		return ZoneRed
	}
}

func scale(threshold, cap int) int {
	return threshold * cap / defaultCap
}

// StrategyFor returns the planning guidance injected into the planner
// prompt. Zone sets the pacing; within the middle zones the achieved tier
// decides whether the push is toward quality or toward testing.
func (m *Manager) StrategyFor(s *state.SessionState) string {
	switch m.ZoneFor(s) {
	case ZoneGreen:
		return "Budget is healthy. Explore alternative implementations if the current approach stalls."
	case ZoneYellow:
		if s.CurrentTier >= types.TierComplete {
			return "Budget is moderate. The design is structurally complete; focus on getting tests to pass."
		}
		return "Budget is moderate. Focus on code quality of the current approach rather than starting over."
	case ZoneOrange:
		if s.CurrentTier >= types.TierTested {
			return "Budget is low. Tests pass; optimize only where the gain is certain."
		}
		return "Budget is low. Finish strong: converge on the current candidate, no new approaches."
	default:
		return "Budget is critical. Salvage the best existing candidate and finish."
	}
}

// CanInvoke reports whether the given role may spend another invocation.
// Role allocations are soft: a role past its allocation may keep drawing on
// the global pool until remaining budget drops to 5 or below.
func (m *Manager) CanInvoke(s *state.SessionState, role string) bool {
	if m.Remaining(s) <= 0 {
		return false
	}
	alloc, ok := m.allocations[role]
	if !ok || s.RoleCalls[role] < alloc {
		return true
	}
	return m.Remaining(s) > 5
}

// ShouldStop evaluates termination conditions in priority order: budget
// exhaustion first, then target-tier success, then the failure streak,
// then an explicit completion from the planner.
func (m *Manager) ShouldStop(s *state.SessionState) StopReason {
	if m.Remaining(s) <= 0 {
		return StopBudgetExhausted
	}
	if s.Success && s.CurrentTier >= types.TierTested {
		return StopTargetReached
	}
	if s.ConsecutiveFailures >= MaxConsecutiveFailures {
		return StopConsecutiveFailures
	}
	if s.Completed {
		return StopCompleted
	}
	return StopContinue
}

// FormatStatus renders a one-line budget summary for logs and planner
// prompts.
func (m *Manager) FormatStatus(s *state.SessionState) string {
	return fmt.Sprintf("budget %d/%d used, %d remaining, zone=%s",
		s.Invocations, m.cap, m.Remaining(s), m.ZoneFor(s))
}
