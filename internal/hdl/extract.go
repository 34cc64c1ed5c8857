// Package hdl handles Verilog source manipulation: extracting module code
// from model output, structural checks, port usage analysis, and the seed
// exemplars used to prime initial generation.
package hdl

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// Fenced code block with an optional HDL language tag. Tag matching is
	// case-insensitive; an untagged fence is accepted too.
	fencedRe = regexp.MustCompile("(?is)```(?:verilog|systemverilog|sv)?\\s*\\n(.*?)```")

	// Greedy so nested module keywords inside generate blocks stay inside
	// one match.
	moduleBlockRe = regexp.MustCompile(`(?s)\bmodule\b.*\bendmodule\b`)

	moduleNameRe = regexp.MustCompile(`\bmodule\s+(\w+)`)
)

// Extract pulls Verilog source out of raw model output. It tries a fenced
// code block first, then a bare module...endmodule span, and finally falls
// back to the trimmed input so downstream validation decides whether it is
// usable.
func Extract(raw string) string {
	if m := fencedRe.FindStringSubmatch(raw); m != nil {
		if block := strings.TrimSpace(m[1]); block != "" {
			return block
		}
	}
	if m := moduleBlockRe.FindString(raw); m != "" {
		return strings.TrimSpace(m)
	}
	return strings.TrimSpace(raw)
}

// ModuleName returns the first declared module name, or empty.
func ModuleName(code string) string {
	if m := moduleNameRe.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	return ""
}

// ValidateBasicStructure runs the cheap structural checks that gate the
// first quality tier: module and endmodule keywords present and parentheses
// balanced. Returns the list of problems found, empty when the code passes.
func ValidateBasicStructure(code string) []string {
	var issues []string

	if strings.TrimSpace(code) == "" {
		return []string{"no code to validate"}
	}
	if !moduleNameRe.MatchString(code) {
		issues = append(issues, "missing module declaration")
	}
	if !strings.Contains(code, "endmodule") {
		issues = append(issues, "missing endmodule keyword")
	}
	if open, close := strings.Count(code, "("), strings.Count(code, ")"); open != close {
		issues = append(issues, fmt.Sprintf("unbalanced parentheses: %d open, %d close", open, close))
	}

	return issues
}

// CompletenessHints flags likely omissions in a sequential design: a clock
// port without a reset, or parameterized widths hardcoded instead. These are
// advisory only and never fail validation.
func CompletenessHints(code string) []string {
	var hints []string

	lower := strings.ToLower(code)
	hasClock := strings.Contains(lower, "clk") || strings.Contains(lower, "clock")
	hasReset := strings.Contains(lower, "rst") || strings.Contains(lower, "reset")

	if hasClock && !hasReset {
		hints = append(hints, "sequential logic has a clock but no reset")
	}
	if hasClock && !strings.Contains(lower, "always") {
		hints = append(hints, "clock port declared but no always block uses it")
	}
	if strings.Contains(lower, "parameter") && !strings.Contains(code, "#(") &&
		!strings.Contains(lower, "localparam") {
		hints = append(hints, "parameters declared outside a parameter port list")
	}

	return hints
}
