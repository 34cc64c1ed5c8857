// Package agents implements the specialist agents and planner policies that
// the workflow loop dispatches. Each agent does one job against the session
// state: generate code, validate it, test it, or analyze failures. The
// planner chooses which specialist runs next.
package agents

import (
	"fmt"
	"sort"
	"strings"

	"hdlforge/internal/hdl"
	"hdlforge/internal/state"
)

const (
	maxContextFiles  = 10
	maxContextChars  = 2000
	truncationMarker = "... (truncated)"
)

// contextPriority orders context files by how useful they are as prompt
// background: design docs first, then RTL sources, then verification.
func contextPriority(path string) int {
	switch {
	case strings.HasPrefix(path, "docs/"):
		return 0
	case strings.HasPrefix(path, "rtl/"):
		return 1
	case strings.HasPrefix(path, "verif/"):
		return 2
	default:
		return 3
	}
}

// FormatContext renders context files into a prompt section, highest
// priority first, at most ten files, each truncated to 2000 characters.
func FormatContext(files map[string]string) string {
	if len(files) == 0 {
		return ""
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		pi, pj := contextPriority(paths[i]), contextPriority(paths[j])
		if pi != pj {
			return pi < pj
		}
		return paths[i] < paths[j]
	})

	if len(paths) > maxContextFiles {
		paths = paths[:maxContextFiles]
	}

	var b strings.Builder
	b.WriteString("Project context:\n")
	for _, p := range paths {
		content := files[p]
		if len(content) > maxContextChars {
			content = content[:maxContextChars] + "\n" + truncationMarker
		}
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", p, content)
	}
	return b.String()
}

// BuildInitialPrompt assembles the first-generation prompt: task, context,
// and a reference exemplar chosen by task keywords.
func BuildInitialPrompt(task state.Task) string {
	var b strings.Builder
	b.WriteString("You are an expert Verilog designer. Write a complete, synthesizable Verilog module for this task:\n\n")
	b.WriteString(task.Description)
	b.WriteString("\n\n")

	if ctx := FormatContext(task.ContextFiles); ctx != "" {
		b.WriteString(ctx)
		b.WriteString("\n")
	}

	b.WriteString("Here is a reference design in the expected style:\n\n```verilog\n")
	b.WriteString(hdl.ExemplarFor(task.Description))
	b.WriteString("\n```\n\n")
	b.WriteString("Respond with exactly one Verilog module in a ```verilog code block. Declare every port the task needs and drive every output.\n")
	return b.String()
}

// BuildPortFixPrompt targets refinement at unused-port feedback.
func BuildPortFixPrompt(s *state.SessionState) string {
	var b strings.Builder
	b.WriteString("The following Verilog module has interface problems:\n\n```verilog\n")
	b.WriteString(s.CurrentCode)
	b.WriteString("\n```\n\nProblem: ")
	if s.PortAnalysis != nil {
		b.WriteString(s.PortAnalysis.Feedback)
	}
	b.WriteString("\n\nTask: ")
	b.WriteString(s.Task.Description)
	b.WriteString("\n\nRewrite the module so every declared port is actually used by the logic. Respond with the full corrected module in a ```verilog code block.\n")
	return b.String()
}

// BuildErrorFixPrompt targets refinement at categorized tool errors.
func BuildErrorFixPrompt(s *state.SessionState) string {
	var b strings.Builder
	b.WriteString("The following Verilog module fails its checks:\n\n```verilog\n")
	b.WriteString(s.CurrentCode)
	b.WriteString("\n```\n\nErrors:\n")
	b.WriteString(s.CurrentErrors)
	b.WriteString("\n\n")

	if strategies := SuggestionsFor(s.ErrorCategory); len(strategies) > 0 {
		b.WriteString("Fix strategy:\n")
		for _, sg := range strategies {
			fmt.Fprintf(&b, "- %s\n", sg)
		}
		b.WriteString("\n")
	}

	b.WriteString("Task: ")
	b.WriteString(s.Task.Description)
	b.WriteString("\n\nRespond with the full corrected module in a ```verilog code block.\n")
	return b.String()
}

// BuildPlannerPrompt summarizes the session for the SLM-backed planner and
// asks for a JSON decision.
func BuildPlannerPrompt(s *state.SessionState, budgetStatus, strategy string) string {
	var b strings.Builder
	b.WriteString("You are the planner of a Verilog generation agent. Decide the next action.\n\n")
	fmt.Fprintf(&b, "Task: %s\n", s.Task.Description)
	fmt.Fprintf(&b, "Code present: %v\n", s.CurrentCode != "")
	fmt.Fprintf(&b, "Structure valid: %v\n", s.StructureValid)
	fmt.Fprintf(&b, "Quality tier: %d (target %d)\n", s.CurrentTier, s.TargetTier)
	fmt.Fprintf(&b, "Tests passed: %v\n", s.Success)
	if s.CurrentErrors != "" {
		fmt.Fprintf(&b, "Current errors (%s):\n%s\n", s.ErrorCategory, s.CurrentErrors)
	}
	if s.HasUnresolvedPortIssues() {
		fmt.Fprintf(&b, "Port issues: %s\n", s.PortAnalysis.Feedback)
	}
	fmt.Fprintf(&b, "Consecutive failures: %d\n", s.ConsecutiveFailures)
	fmt.Fprintf(&b, "%s\n%s\n\n", budgetStatus, strategy)

	b.WriteString(`Respond with JSON only: {"next_action": "<generate|validate|test|analyze|complete>", "reasoning": "<one sentence>"}` + "\n")
	return b.String()
}
