package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hdlforge/internal/types"
)

func newTestState() *SessionState {
	return New(Task{Description: "4-bit counter", TargetFile: "counter.v"}, 50)
}

func TestNew(t *testing.T) {
	s := newTestState()

	require.NotEmpty(t, s.SessionID)
	assert.Equal(t, 50, s.MaxInvocations)
	assert.Equal(t, types.TierNone, s.CurrentTier)
	assert.Equal(t, types.TierTested, s.TargetTier)
	assert.Equal(t, types.CategoryNone, s.ErrorCategory)
	assert.False(t, s.Success)
	assert.False(t, s.Completed)
}

func TestRecordGeneration(t *testing.T) {
	s := newTestState()
	s.ConsecutiveFailures = 3

	s.RecordGeneration(types.GenerationResult{Code: "module a(); endmodule", Success: true})

	assert.Equal(t, "module a(); endmodule", s.CurrentCode)
	assert.Equal(t, "module a(); endmodule", s.BestCode)
	assert.Len(t, s.CodeHistory, 1)
	assert.Equal(t, 0, s.ConsecutiveFailures, "success resets failure streak")
	assert.Equal(t, 1, s.CodeRefinements)
}

func TestRecordGenerationFailure(t *testing.T) {
	s := newTestState()

	s.RecordGeneration(types.GenerationResult{Success: false})

	assert.Equal(t, 1, s.ConsecutiveFailures)
	assert.Empty(t, s.CurrentCode)
	assert.Empty(t, s.CodeHistory)
}

func TestBestCodeOnlyReplacedByLonger(t *testing.T) {
	s := newTestState()

	s.RecordGeneration(types.GenerationResult{Code: "module long_one(input clk); endmodule", Success: true})
	s.RecordGeneration(types.GenerationResult{Code: "module s(); endmodule", Success: true})

	assert.Equal(t, "module s(); endmodule", s.CurrentCode)
	assert.Equal(t, "module long_one(input clk); endmodule", s.BestCode,
		"shorter candidate must not displace best")

	longer := "module even_longer_one(input clk, input rst); endmodule"
	s.RecordGeneration(types.GenerationResult{Code: longer, Success: true})
	assert.Equal(t, longer, s.BestCode)
}

func TestPromoteTierMonotone(t *testing.T) {
	s := newTestState()

	s.PromoteTier(types.TierComplete)
	assert.Equal(t, types.TierComplete, s.CurrentTier)
	assert.True(t, s.TierAchievements[types.TierStructural])
	assert.True(t, s.TierAchievements[types.TierComplete])

	s.PromoteTier(types.TierStructural)
	assert.Equal(t, types.TierComplete, s.CurrentTier, "tiers never regress")

	s.PromoteTier(types.TierTested)
	assert.Equal(t, types.TierTested, s.CurrentTier)
	assert.True(t, s.TierAchievements[types.TierTested])
}

func TestRecordTest(t *testing.T) {
	s := newTestState()

	s.RecordTest(types.TestResult{Passed: false, Errors: "compile error", Tier: types.TierStructural})
	assert.False(t, s.Success)
	assert.Equal(t, "compile error", s.CurrentErrors)
	assert.Equal(t, 1, s.ConsecutiveFailures)

	s.RecordTest(types.TestResult{Passed: true, Backend: "icarus", Tier: types.TierTested})
	assert.True(t, s.Success)
	assert.Empty(t, s.CurrentErrors)
	assert.Equal(t, types.TierTested, s.CurrentTier)
}

func TestRecordValidation(t *testing.T) {
	s := newTestState()

	s.RecordValidation(types.ValidationResult{
		Valid:  false,
		Issues: []string{"missing endmodule", "unbalanced parentheses"},
		Tier:   types.TierNone,
	})
	assert.False(t, s.StructureValid)
	assert.Contains(t, s.CurrentErrors, "missing endmodule")
	assert.Contains(t, s.CurrentErrors, "unbalanced parentheses")

	pa := &types.PortAnalysis{AllPortsUsed: false, UnusedInputs: []string{"rst"}}
	s.RecordValidation(types.ValidationResult{Valid: true, Tier: types.TierStructural, PortAnalysis: pa})
	assert.True(t, s.StructureValid)
	assert.True(t, s.HasUnresolvedPortIssues())
}

func TestChargeInvocation(t *testing.T) {
	s := newTestState()

	s.ChargeInvocation("planner")
	s.ChargeInvocation("generator")
	s.ChargeInvocation("generator")
	s.ChargeInvocation("validator")

	assert.Equal(t, 4, s.Invocations)
	assert.Equal(t, 1, s.PlannerCalls)
	assert.Equal(t, 3, s.SpecialistCalls)
	assert.Equal(t, 2, s.RoleCalls["generator"])
	assert.Equal(t, 1, s.RoleCalls["validator"])
	assert.Equal(t, "validator", s.LastAgent)
}

func TestRecordAnalysis(t *testing.T) {
	s := newTestState()

	s.RecordAnalysis(types.AnalysisResult{
		Category:    types.CategorySyntax,
		Suggestions: []string{"check semicolons"},
		Priority:    types.PriorityHigh,
	})

	assert.Equal(t, types.CategorySyntax, s.ErrorCategory)
	require.Len(t, s.ErrorHistory, 1)
	assert.Equal(t, types.CategorySyntax, s.ErrorHistory[0].Category)
}
