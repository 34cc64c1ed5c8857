package agents

import (
	"context"

	"hdlforge/internal/logging"
	"hdlforge/internal/state"
	"hdlforge/internal/toolchain"
	"hdlforge/internal/types"
)

// Analyzer turns raw failure diagnostics into a category, a fix strategy
// and concrete error locations for the next refinement.
type Analyzer struct {
	log *logging.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{log: logging.Get(logging.CategoryAnalyzer)}
}

// Analyze categorizes the session's current errors. A clean state yields the
// none category at low priority so the planner can move on.
func (a *Analyzer) Analyze(ctx context.Context, s *state.SessionState) types.AnalysisResult {
	if s.CurrentErrors == "" {
		return types.AnalysisResult{
			Category: types.CategoryNone,
			Priority: types.PriorityLow,
		}
	}

	category := toolchain.Categorize(s.CurrentErrors)
	result := types.AnalysisResult{
		Category:    category,
		Suggestions: SuggestionsFor(category),
		Priority:    PriorityFor(category),
		Locations:   toolchain.ExtractLocations(s.CurrentErrors),
	}

	a.log.Info("category=%s priority=%s lines=%v", category, result.Priority, result.Locations.LineNumbers)
	return result
}
