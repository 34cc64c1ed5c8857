package hdl

import (
	"fmt"
	"regexp"
	"strings"

	"hdlforge/internal/types"
)

var (
	portDirRe  = regexp.MustCompile(`\b(input|output|inout)\b`)
	rangeRe    = regexp.MustCompile(`\[[^\]]*\]`)
	identRe    = regexp.MustCompile(`^\w+$`)
	typeTokens = map[string]bool{
		"wire": true, "reg": true, "logic": true, "tri": true, "signed": true,
	}
)

type portDecl struct {
	direction string
	name      string
	start     int
	end       int
}

// AnalyzePorts checks whether every declared port is referenced by the
// module body. Unused ports usually mean the generated logic ignores part of
// its interface, which downgrades the design below the complete tier.
func AnalyzePorts(code string) *types.PortAnalysis {
	decls := declaredPorts(code)
	body := stripDeclarations(code, decls)

	analysis := &types.PortAnalysis{AllPortsUsed: true}
	for _, d := range decls {
		used := regexp.MustCompile(`\b` + regexp.QuoteMeta(d.name) + `\b`).MatchString(body)
		if used {
			continue
		}
		analysis.AllPortsUsed = false
		switch d.direction {
		case "input":
			analysis.UnusedInputs = append(analysis.UnusedInputs, d.name)
		default:
			analysis.UnusedOutputs = append(analysis.UnusedOutputs, d.name)
		}
	}

	if !analysis.AllPortsUsed {
		var parts []string
		if len(analysis.UnusedInputs) > 0 {
			parts = append(parts, fmt.Sprintf("unused inputs: %s", strings.Join(analysis.UnusedInputs, ", ")))
		}
		if len(analysis.UnusedOutputs) > 0 {
			parts = append(parts, fmt.Sprintf("unused outputs: %s", strings.Join(analysis.UnusedOutputs, ", ")))
		}
		analysis.Feedback = strings.Join(parts, "; ")
	}

	return analysis
}

// declaredPorts finds every input/output/inout declaration, ANSI header
// style or body style. Each declaration segment runs from its direction
// keyword to the next direction keyword or statement terminator.
func declaredPorts(code string) []portDecl {
	dirs := portDirRe.FindAllStringIndex(code, -1)
	var decls []portDecl
	seen := make(map[string]bool)

	for i, loc := range dirs {
		end := len(code)
		if i+1 < len(dirs) {
			end = dirs[i+1][0]
		}
		if t := strings.IndexAny(code[loc[1]:end], ");"); t >= 0 {
			end = loc[1] + t
		}

		segment := code[loc[1]:end]
		for _, name := range segmentNames(segment) {
			if seen[name] {
				continue
			}
			seen[name] = true
			decls = append(decls, portDecl{
				direction: code[loc[0]:loc[1]],
				name:      name,
				start:     loc[0],
				end:       end,
			})
		}
	}
	return decls
}

// segmentNames extracts port identifiers from one declaration segment,
// skipping type keywords and bit ranges.
func segmentNames(segment string) []string {
	segment = rangeRe.ReplaceAllString(segment, "")
	var names []string
	for _, piece := range strings.Split(segment, ",") {
		piece = strings.TrimSpace(piece)
		for _, tok := range strings.Fields(piece) {
			if typeTokens[tok] || !identRe.MatchString(tok) {
				continue
			}
			names = append(names, tok)
			break
		}
	}
	return names
}

// stripDeclarations blanks out declaration segments so usage checks only see
// the module body and any remaining header references.
func stripDeclarations(code string, decls []portDecl) string {
	out := []byte(code)
	for _, d := range decls {
		for i := d.start; i < d.end && i < len(out); i++ {
			out[i] = ' '
		}
	}
	return string(out)
}
