package toolchain

import (
	"regexp"
	"strconv"
	"strings"

	"hdlforge/internal/types"
)

var (
	// "file.v:12:" and "line 12" styles, as emitted by verilator and iverilog.
	fileLineRe = regexp.MustCompile(`([\w./-]+\.s?v):(\d+)`)
	lineRefRe  = regexp.MustCompile(`(?i)\bline\s+(\d+)`)
)

const maxSnippets = 10

// ExtractLocations pulls file references, line numbers and the first error
// snippets out of raw diagnostics so the analyzer can point refinement at
// concrete spots.
func ExtractLocations(diagnostics string) *types.ErrorLocations {
	loc := &types.ErrorLocations{}
	seenLine := make(map[int]bool)
	seenFile := make(map[string]bool)

	for _, m := range fileLineRe.FindAllStringSubmatch(diagnostics, -1) {
		if !seenFile[m[1]] {
			seenFile[m[1]] = true
			loc.Files = append(loc.Files, m[1])
		}
		if n, err := strconv.Atoi(m[2]); err == nil && !seenLine[n] {
			seenLine[n] = true
			loc.LineNumbers = append(loc.LineNumbers, n)
		}
	}
	for _, m := range lineRefRe.FindAllStringSubmatch(diagnostics, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && !seenLine[n] {
			seenLine[n] = true
			loc.LineNumbers = append(loc.LineNumbers, n)
		}
	}

	for _, line := range strings.Split(diagnostics, "\n") {
		if len(loc.Snippets) >= maxSnippets {
			break
		}
		if strings.Contains(strings.ToLower(line), "error") {
			loc.Snippets = append(loc.Snippets, strings.TrimSpace(line))
		}
	}

	return loc
}
