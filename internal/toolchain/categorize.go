// Package toolchain runs external HDL tools against generated code and turns
// their diagnostics into structured results. Simulation is preferred when a
// testbench is present; lint is the fallback.
package toolchain

import (
	"strings"

	"hdlforge/internal/types"
)

// categoryRules are checked in priority order. The first category whose
// keyword matches wins, so a diagnostic mentioning both a syntax problem and
// a width warning is filed under syntax.
var categoryRules = []struct {
	category types.ErrorCategory
	keywords []string
}{
	{types.CategorySyntax, []string{"syntax", "parse error", "unexpected", "malformed"}},
	{types.CategoryUndeclared, []string{"undeclared", "not declared", "undefined", "unknown identifier"}},
	{types.CategoryType, []string{"type mismatch", "incompatible type", "cannot convert"}},
	{types.CategoryWidth, []string{"width", "bit range", "truncat"}},
	{types.CategoryLatch, []string{"latch"}},
	{types.CategoryTiming, []string{"timing", "setup time", "hold time", "clock domain"}},
}

// Categorize maps raw tool diagnostics to an error category. Matching is
// case-insensitive; unmatched diagnostics fall through to general.
func Categorize(diagnostics string) types.ErrorCategory {
	if strings.TrimSpace(diagnostics) == "" {
		return types.CategoryNone
	}
	lower := strings.ToLower(diagnostics)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return types.CategoryGeneral
}

// maxDiagnosticLines bounds how much tool output flows back into prompts.
const maxDiagnosticLines = 50

// TruncateDiagnostics keeps the first 50 lines of tool output. Verilog tools
// front-load the actionable errors; the tail is usually cascade noise.
func TruncateDiagnostics(output string) string {
	lines := strings.Split(output, "\n")
	if len(lines) <= maxDiagnosticLines {
		return output
	}
	return strings.Join(lines[:maxDiagnosticLines], "\n") + "\n... (truncated)"
}
