package agents

import (
	"context"

	"hdlforge/internal/hdl"
	"hdlforge/internal/logging"
	"hdlforge/internal/state"
	"hdlforge/internal/types"
)

// Validator is the static quality gate. It is a two-stage check: structural
// soundness first, then interface completeness. Code only counts as valid
// once both stages pass.
type Validator struct {
	log *logging.Logger
}

// NewValidator creates a validator.
func NewValidator() *Validator {
	return &Validator{log: logging.Get(logging.CategoryValidator)}
}

// Validate assesses the current candidate. Tier assignment: nothing to
// check stays at tier 0, structure alone reaches tier 1, full port usage
// reaches tier 2. Completeness hints ride along as advisory issues without
// affecting the verdict.
func (v *Validator) Validate(ctx context.Context, s *state.SessionState) types.ValidationResult {
	if s.CurrentCode == "" {
		return types.ValidationResult{
			Valid:  false,
			Issues: []string{"no code to validate"},
			Tier:   types.TierNone,
		}
	}

	if issues := hdl.ValidateBasicStructure(s.CurrentCode); len(issues) > 0 {
		v.log.Info("structural check failed: %d issues", len(issues))
		return types.ValidationResult{
			Valid:  false,
			Issues: issues,
			Tier:   types.TierNone,
		}
	}

	result := types.ValidationResult{Tier: types.TierStructural}
	result.PortAnalysis = hdl.AnalyzePorts(s.CurrentCode)
	if result.PortAnalysis.AllPortsUsed {
		result.Valid = true
		result.Tier = types.TierComplete
	} else {
		result.Issues = append(result.Issues, result.PortAnalysis.Feedback)
		v.log.Info("port analysis: %s", result.PortAnalysis.Feedback)
	}

	result.Issues = append(result.Issues, hdl.CompletenessHints(s.CurrentCode)...)
	return result
}
