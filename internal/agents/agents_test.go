package agents

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hdlforge/internal/state"
	"hdlforge/internal/types"
)

// mockClient implements types.LLMClient for tests.
type mockClient struct {
	response    string
	err         error
	lastPrompt  string
	lastTemp    float64
	invocations int
}

func (m *mockClient) Complete(ctx context.Context, prompt string) (string, error) {
	return m.CompleteWithTemperature(ctx, prompt, 0)
}

func (m *mockClient) CompleteWithTemperature(ctx context.Context, prompt string, temperature float64) (string, error) {
	m.invocations++
	m.lastPrompt = prompt
	m.lastTemp = temperature
	return m.response, m.err
}

const validModule = "module counter(input clk, output reg [3:0] q);\nalways @(posedge clk) q <= q + 1;\nendmodule"

func newSession() *state.SessionState {
	return state.New(state.Task{Description: "4-bit counter", TargetFile: "out/counter.v"}, 50)
}

func TestGeneratorInitial(t *testing.T) {
	client := &mockClient{response: "```verilog\n" + validModule + "\n```"}
	g := NewGenerator(client)
	s := newSession()

	res := g.Generate(context.Background(), s)

	require.True(t, res.Success)
	assert.Equal(t, validModule, res.Code)
	assert.Equal(t, "initial", res.Method)
	assert.InDelta(t, 0.7, client.lastTemp, 0.001)
	assert.Contains(t, client.lastPrompt, "4-bit counter")
	assert.Contains(t, client.lastPrompt, "reference design")
}

func TestGeneratorRefinementTargetsPorts(t *testing.T) {
	client := &mockClient{response: validModule}
	g := NewGenerator(client)
	s := newSession()
	s.CurrentCode = "module old(); endmodule"
	s.PortAnalysis = &types.PortAnalysis{AllPortsUsed: false, Feedback: "unused inputs: en"}

	res := g.Generate(context.Background(), s)

	require.True(t, res.Success)
	assert.Equal(t, "port_fix", res.Method)
	assert.InDelta(t, 0.4, client.lastTemp, 0.001)
	assert.Contains(t, client.lastPrompt, "unused inputs: en")
}

func TestGeneratorRefinementTargetsErrors(t *testing.T) {
	client := &mockClient{response: validModule}
	g := NewGenerator(client)
	s := newSession()
	s.CurrentCode = "module old(); endmodule"
	s.CurrentErrors = "syntax error near always"
	s.ErrorCategory = types.CategorySyntax

	res := g.Generate(context.Background(), s)

	require.True(t, res.Success)
	assert.Equal(t, "error_fix", res.Method)
	assert.Contains(t, client.lastPrompt, "syntax error near always")
	assert.Contains(t, client.lastPrompt, "sensitivity list")
}

func TestGeneratorNoExtractableCode(t *testing.T) {
	client := &mockClient{response: "I cannot help with that."}
	g := NewGenerator(client)

	res := g.Generate(context.Background(), newSession())

	assert.False(t, res.Success)
	assert.Empty(t, res.Code)
}

func TestGeneratorRejectsTruncatedModule(t *testing.T) {
	// A response cut off before endmodule must not be accepted as a candidate.
	client := &mockClient{response: "module cut(input clk);\nalways @(posedge clk) ;"}
	g := NewGenerator(client)

	res := g.Generate(context.Background(), newSession())

	assert.False(t, res.Success)
	assert.Empty(t, res.Code)
}

func TestValidatorNoCode(t *testing.T) {
	v := NewValidator()
	res := v.Validate(context.Background(), newSession())

	assert.False(t, res.Valid)
	assert.Equal(t, types.TierNone, res.Tier)
	assert.Equal(t, []string{"no code to validate"}, res.Issues)
}

func TestValidatorStructureFailure(t *testing.T) {
	v := NewValidator()
	s := newSession()
	s.CurrentCode = "module broken(input x"

	res := v.Validate(context.Background(), s)

	assert.False(t, res.Valid)
	assert.Equal(t, types.TierNone, res.Tier)
	assert.NotEmpty(t, res.Issues)
}

func TestValidatorPortGate(t *testing.T) {
	v := NewValidator()
	s := newSession()
	s.CurrentCode = `module m(input wire en, input wire d, output wire q);
    assign q = d;
endmodule`

	res := v.Validate(context.Background(), s)

	assert.False(t, res.Valid, "unused port keeps candidate below the complete tier")
	assert.Equal(t, types.TierStructural, res.Tier)
	require.NotNil(t, res.PortAnalysis)
	assert.Equal(t, []string{"en"}, res.PortAnalysis.UnusedInputs)
}

func TestValidatorFullPass(t *testing.T) {
	v := NewValidator()
	s := newSession()
	s.CurrentCode = `module adder(input [3:0] a, input [3:0] b, output [4:0] sum);
    assign sum = a + b;
endmodule`

	res := v.Validate(context.Background(), s)

	assert.True(t, res.Valid)
	assert.Equal(t, types.TierComplete, res.Tier)
}

func TestAnalyzerCleanState(t *testing.T) {
	a := NewAnalyzer()
	res := a.Analyze(context.Background(), newSession())

	assert.Equal(t, types.CategoryNone, res.Category)
	assert.Equal(t, types.PriorityLow, res.Priority)
	assert.Empty(t, res.Suggestions)
}

func TestAnalyzerCategorizesAndSuggests(t *testing.T) {
	a := NewAnalyzer()
	s := newSession()
	s.CurrentErrors = "counter.v:7: syntax error near endmodule"

	res := a.Analyze(context.Background(), s)

	assert.Equal(t, types.CategorySyntax, res.Category)
	assert.Equal(t, types.PriorityHigh, res.Priority)
	assert.NotEmpty(t, res.Suggestions)
	require.NotNil(t, res.Locations)
	assert.Equal(t, []int{7}, res.Locations.LineNumbers)
}

func TestRulePolicyPipeline(t *testing.T) {
	ctx := context.Background()
	policy := RulePolicy{}

	s := newSession()
	d, err := policy.Decide(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, types.ActionGenerate, d.NextAction)

	s.CurrentCode = validModule
	s.LastAgent = "generator"
	d, _ = policy.Decide(ctx, s)
	assert.Equal(t, types.ActionValidate, d.NextAction)

	s.LastAgent = "validator"
	s.StructureValid = true
	d, _ = policy.Decide(ctx, s)
	assert.Equal(t, types.ActionTest, d.NextAction)

	s.LastAgent = "tester"
	d, _ = policy.Decide(ctx, s)
	assert.Equal(t, types.ActionAnalyze, d.NextAction)

	s.LastAgent = "analyzer"
	d, _ = policy.Decide(ctx, s)
	assert.Equal(t, types.ActionGenerate, d.NextAction)

	s.Success = true
	d, _ = policy.Decide(ctx, s)
	assert.Equal(t, types.ActionComplete, d.NextAction)
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    types.Action
		wantErr bool
	}{
		{"plain json", `{"next_action": "generate", "reasoning": "start"}`, types.ActionGenerate, false},
		{"fenced json", "```json\n{\"next_action\": \"test\", \"reasoning\": \"run it\"}\n```", types.ActionTest, false},
		{"bare fence", "```\n{\"next_action\": \"validate\", \"reasoning\": \"check\"}\n```", types.ActionValidate, false},
		{"unknown action", `{"next_action": "panic", "reasoning": "x"}`, "", true},
		{"empty reasoning", `{"next_action": "generate", "reasoning": "  "}`, "", true},
		{"not json", "let me think about it", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDecision(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDecision)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.NextAction)
		})
	}
}

// failingPolicy implements PlannerPolicy for fallback tests.
type failingPolicy struct{ err error }

func (f failingPolicy) Decide(ctx context.Context, s *state.SessionState) (types.Decision, error) {
	return types.Decision{}, f.err
}

func TestPlannerFallbacks(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid decision defaults to generate", func(t *testing.T) {
		p := NewPlanner(failingPolicy{err: ErrInvalidDecision})
		assert.Equal(t, types.ActionGenerate, p.Decide(ctx, newSession()).NextAction)
	})

	t.Run("policy error defaults to complete", func(t *testing.T) {
		p := NewPlanner(failingPolicy{err: context.DeadlineExceeded})
		assert.Equal(t, types.ActionComplete, p.Decide(ctx, newSession()).NextAction)
	})

	t.Run("valid decision passes through", func(t *testing.T) {
		p := NewPlanner(RulePolicy{})
		assert.Equal(t, types.ActionGenerate, p.Decide(ctx, newSession()).NextAction)
	})
}

func TestFormatContext(t *testing.T) {
	files := map[string]string{
		"verif/tb.v":    "testbench",
		"docs/fifo.md":  "design notes",
		"rtl/top.v":     "top module",
		"misc/notes.md": "notes",
	}

	got := FormatContext(files)
	docsIdx := strings.Index(got, "docs/fifo.md")
	rtlIdx := strings.Index(got, "rtl/top.v")
	verifIdx := strings.Index(got, "verif/tb.v")
	miscIdx := strings.Index(got, "misc/notes.md")

	assert.True(t, docsIdx < rtlIdx && rtlIdx < verifIdx && verifIdx < miscIdx,
		"context files must be ordered docs, rtl, verif, other")
}

func TestFormatContextTruncation(t *testing.T) {
	files := map[string]string{"docs/big.md": strings.Repeat("x", 5000)}
	got := FormatContext(files)
	assert.Contains(t, got, "... (truncated)")
	assert.Less(t, len(got), 2500)
}

func TestFormatContextFileCap(t *testing.T) {
	files := make(map[string]string)
	for i := 0; i < 15; i++ {
		files[strings.Repeat("a", i+1)+".md"] = "content"
	}
	got := FormatContext(files)
	assert.Equal(t, 10, strings.Count(got, "--- "))
}
