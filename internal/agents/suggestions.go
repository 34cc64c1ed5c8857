package agents

import "hdlforge/internal/types"

// suggestionBundles are the fixed refinement strategies per error category.
// They are injected into refinement prompts and surfaced by the analyzer.
var suggestionBundles = map[types.ErrorCategory][]string{
	types.CategorySyntax: {
		"Check for missing semicolons and unmatched begin/end pairs",
		"Verify every always block has a complete sensitivity list",
		"Confirm all keywords are spelled correctly",
	},
	types.CategoryUndeclared: {
		"Declare every wire and reg before use",
		"Check signal names for typos against the port list",
		"Add missing port declarations to the module header",
	},
	types.CategoryType: {
		"Use reg for signals assigned in always blocks, wire for continuous assignments",
		"Match assignment style to declaration type",
	},
	types.CategoryWidth: {
		"Match bit widths on both sides of every assignment",
		"Add explicit width specifiers to literals",
		"Check vector index ranges against declarations",
	},
	types.CategoryLatch: {
		"Assign every signal in every branch of combinational always blocks",
		"Add default assignments before case statements",
		"Include a default case arm",
	},
	types.CategoryTiming: {
		"Use non-blocking assignments in clocked always blocks",
		"Separate combinational and sequential logic into distinct blocks",
	},
	types.CategoryGeneral: {
		"Review the module against the task requirements",
		"Simplify the implementation and rebuild incrementally",
	},
}

// SuggestionsFor returns the refinement strategies for a category. Unknown
// or none categories get nothing.
func SuggestionsFor(category types.ErrorCategory) []string {
	return suggestionBundles[category]
}

// PriorityFor ranks a category for the analyzer: blocking compile problems
// are high priority, everything else medium.
func PriorityFor(category types.ErrorCategory) types.Priority {
	switch category {
	case types.CategorySyntax, types.CategoryUndeclared:
		return types.PriorityHigh
	case types.CategoryNone:
		return types.PriorityLow
	default:
		return types.PriorityMedium
	}
}
