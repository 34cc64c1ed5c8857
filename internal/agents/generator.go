package agents

import (
	"context"
	"strings"

	"hdlforge/internal/hdl"
	"hdlforge/internal/logging"
	"hdlforge/internal/state"
	"hdlforge/internal/types"
)

// Sampling temperatures: initial generation explores, refinement converges.
const (
	initialTemperature    = 0.7
	refinementTemperature = 0.4
)

// Generator produces and refines Verilog code via the inference client.
type Generator struct {
	client types.LLMClient
	log    *logging.Logger
}

// NewGenerator creates a generator backed by the given client.
func NewGenerator(client types.LLMClient) *Generator {
	return &Generator{
		client: client,
		log:    logging.Get(logging.CategoryCodegen),
	}
}

// Generate runs one generation step. With no current code it does an initial
// generation from the task and context; otherwise it refines, targeting port
// issues when the validator flagged any, else the categorized errors.
func (g *Generator) Generate(ctx context.Context, s *state.SessionState) types.GenerationResult {
	var prompt string
	var temperature float64
	var method string

	switch {
	case s.CurrentCode == "":
		prompt = BuildInitialPrompt(s.Task)
		temperature = initialTemperature
		method = "initial"
	case s.HasUnresolvedPortIssues():
		prompt = BuildPortFixPrompt(s)
		temperature = refinementTemperature
		method = "port_fix"
	default:
		prompt = BuildErrorFixPrompt(s)
		temperature = refinementTemperature
		method = "error_fix"
	}

	g.log.Debug("generation method=%s temperature=%.1f", method, temperature)

	raw, err := g.client.CompleteWithTemperature(ctx, prompt, temperature)
	if err != nil {
		g.log.Error("completion failed: %v", err)
		return types.GenerationResult{Method: method}
	}

	code := hdl.Extract(raw)
	if !usable(code) {
		g.log.Warn("no extractable module in response (%d chars)", len(raw))
		return types.GenerationResult{Method: method}
	}

	g.log.Info("generated %d chars via %s", len(code), method)
	return types.GenerationResult{Code: code, Success: true, Method: method}
}

// usable is the minimum bar for accepting extracted text as a candidate: a
// named module declaration with a closing endmodule.
func usable(code string) bool {
	return hdl.ModuleName(code) != "" && strings.Contains(code, "endmodule")
}
