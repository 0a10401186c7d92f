package reasoning

import (
	"testing"

	"github.com/tidwall/gjson"

	"thinkproxy/internal/canonical"
)

func intPtr(i int) *int { return &i }

func TestApplyOff_DisablesReasoning(t *testing.T) {
	tests := []struct {
		name string
		typ  canonical.ReasoningType
		path string
		want interface{}
	}{
		{"deepseek", canonical.ReasoningDeepSeek, "thinking.type", "disabled"},
		{"anthropic", canonical.ReasoningAnthropic, "thinking.type", "disabled"},
		{"gemini", canonical.ReasoningGemini, "thinkingConfig.thinkingBudget", float64(0)},
		{"qwen", canonical.ReasoningQwen, "enable_thinking", false},
		{"openrouter", canonical.ReasoningOpenRouter, "reasoning.enabled", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(`{"model":"m"}`)
			spec := &canonical.ReasoningSpec{Enabled: false, Type: tt.typ, Effort: canonical.EffortNone}
			out := Apply(body, spec)
			got := gjson.GetBytes(out, tt.path).Value()
			if got != tt.want {
				t.Errorf("path %s = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestApplyOn_Anthropic(t *testing.T) {
	body := []byte(`{"model":"claude"}`)
	spec := &canonical.ReasoningSpec{Enabled: true, Type: canonical.ReasoningAnthropic, Effort: canonical.EffortMedium}
	out := Apply(body, spec)
	if gjson.GetBytes(out, "thinking.type").String() != "enabled" {
		t.Fatal("expected thinking.type=enabled")
	}
	if gjson.GetBytes(out, "thinking.budget_tokens").Int() != 16384 {
		t.Errorf("budget_tokens = %d, want 16384", gjson.GetBytes(out, "thinking.budget_tokens").Int())
	}
}

func TestApplyOn_AnthropicExplicitBudget(t *testing.T) {
	body := []byte(`{}`)
	spec := &canonical.ReasoningSpec{Enabled: true, Type: canonical.ReasoningAnthropic, Effort: canonical.EffortHigh, BudgetTokens: intPtr(9000)}
	out := Apply(body, spec)
	if gjson.GetBytes(out, "thinking.budget_tokens").Int() != 9000 {
		t.Errorf("explicit budget not honored: %d", gjson.GetBytes(out, "thinking.budget_tokens").Int())
	}
}

func TestApplyOn_OpenAIEffortMapping(t *testing.T) {
	tests := []struct {
		effort canonical.Effort
		want   string
	}{
		{canonical.EffortMinimal, "low"},
		{canonical.EffortAuto, "medium"},
		{canonical.EffortHigh, "high"},
	}
	for _, tt := range tests {
		body := []byte(`{}`)
		spec := &canonical.ReasoningSpec{Enabled: true, Type: canonical.ReasoningOpenAI, Effort: tt.effort}
		out := Apply(body, spec)
		if got := gjson.GetBytes(out, "reasoning_effort").String(); got != tt.want {
			t.Errorf("effort %s -> %s, want %s", tt.effort, got, tt.want)
		}
	}
}

func TestApplyOn_GeminiAuto(t *testing.T) {
	body := []byte(`{}`)
	spec := &canonical.ReasoningSpec{Enabled: true, Type: canonical.ReasoningGemini, Effort: canonical.EffortAuto}
	out := Apply(body, spec)
	if gjson.GetBytes(out, "thinkingConfig.thinkingBudget").Int() != -1 {
		t.Errorf("gemini auto budget = %d, want -1", gjson.GetBytes(out, "thinkingConfig.thinkingBudget").Int())
	}
	if !gjson.GetBytes(out, "thinkingConfig.includeThoughts").Bool() {
		t.Error("includeThoughts should be true")
	}
}

func TestApplyOn_Custom(t *testing.T) {
	body := []byte(`{}`)
	spec := &canonical.ReasoningSpec{
		Enabled: true, Type: canonical.ReasoningCustom, Effort: canonical.EffortHigh,
		CustomParams: map[string]interface{}{"foo": map[string]interface{}{"bar": "baz"}},
	}
	out := Apply(body, spec)
	if gjson.GetBytes(out, "foo.bar").String() != "baz" {
		t.Errorf("custom merge failed: %s", out)
	}
}

func TestApplyOff_OpenAIHasNoOffSwitch(t *testing.T) {
	body := []byte(`{"model":"gpt-5"}`)
	spec := &canonical.ReasoningSpec{Enabled: false, Type: canonical.ReasoningOpenAI, Effort: canonical.EffortNone}
	out := Apply(body, spec)
	if string(out) != string(body) {
		t.Errorf("openai off-switch should be a no-op, got %s", out)
	}
}

func TestNormalize_DowngradesUnsupportedEffort(t *testing.T) {
	spec := canonical.ReasoningSpec{Effort: canonical.EffortMinimal}
	got := Normalize(canonical.ReasoningAnthropic, spec)
	if got.Effort != canonical.EffortLow {
		t.Errorf("anthropic minimal should downgrade to low, got %s", got.Effort)
	}
}

func TestNormalize_LeavesSupportedEffortAlone(t *testing.T) {
	spec := canonical.ReasoningSpec{Effort: canonical.EffortHigh}
	got := Normalize(canonical.ReasoningOpenAI, spec)
	if got.Effort != canonical.EffortHigh {
		t.Errorf("supported effort should not change, got %s", got.Effort)
	}
}
