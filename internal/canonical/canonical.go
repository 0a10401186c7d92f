// Package canonical holds the internal request/response shapes the proxy
// translates every upstream dialect into and out of.
package canonical

import "time"

// Role is a canonical chat message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one canonical chat turn. Content is kept as interface{} because
// dialect wire formats vary between a bare string and a content-block array;
// FormatAdapter normalizes it to a string internally via ExtractText.
type Message struct {
	Role    Role        `json:"role"`
	Content interface{} `json:"content"`
}

// LLMParams holds the recognized sampling options.
type LLMParams struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	TopK             *int     `json:"top_k,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	Seed             *int     `json:"seed,omitempty"`
	Stop             []string `json:"stop,omitempty"`
}

// Merge overlays non-nil fields of other onto a copy of p; request params
// win over profile params, which win over proxy defaults.
func (p LLMParams) Merge(other LLMParams) LLMParams {
	out := p
	if other.Temperature != nil {
		out.Temperature = other.Temperature
	}
	if other.TopP != nil {
		out.TopP = other.TopP
	}
	if other.TopK != nil {
		out.TopK = other.TopK
	}
	if other.MaxTokens != nil {
		out.MaxTokens = other.MaxTokens
	}
	if other.PresencePenalty != nil {
		out.PresencePenalty = other.PresencePenalty
	}
	if other.FrequencyPenalty != nil {
		out.FrequencyPenalty = other.FrequencyPenalty
	}
	if other.Seed != nil {
		out.Seed = other.Seed
	}
	if len(other.Stop) > 0 {
		out.Stop = other.Stop
	}
	return out
}

// ReasoningType enumerates the dialects ReasoningBuilder knows how to target.
type ReasoningType string

const (
	ReasoningDeepSeek   ReasoningType = "deepseek"
	ReasoningOpenAI     ReasoningType = "openai"
	ReasoningAnthropic  ReasoningType = "anthropic"
	ReasoningGemini     ReasoningType = "gemini"
	ReasoningQwen       ReasoningType = "qwen"
	ReasoningOpenRouter ReasoningType = "openrouter"
	ReasoningCustom     ReasoningType = "custom"
)

// Effort is the coarse reasoning-budget knob, translated per dialect.
type Effort string

const (
	EffortNone    Effort = "none"
	EffortMinimal Effort = "minimal"
	EffortLow     Effort = "low"
	EffortMedium  Effort = "medium"
	EffortHigh    Effort = "high"
	EffortAuto    Effort = "auto"
)

// SupportedEfforts lists the efforts each reasoning type accepts.
var SupportedEfforts = map[ReasoningType]map[Effort]bool{
	ReasoningDeepSeek:   {EffortNone: true, EffortAuto: true},
	ReasoningOpenAI:     {EffortMinimal: true, EffortLow: true, EffortMedium: true, EffortHigh: true},
	ReasoningAnthropic:  {EffortNone: true, EffortLow: true, EffortMedium: true, EffortHigh: true},
	ReasoningGemini:     {EffortNone: true, EffortLow: true, EffortMedium: true, EffortHigh: true, EffortAuto: true},
	ReasoningQwen:       {EffortNone: true, EffortLow: true, EffortMedium: true, EffortHigh: true},
	ReasoningOpenRouter: {EffortNone: true, EffortLow: true, EffortMedium: true, EffortHigh: true},
	ReasoningCustom:     {EffortNone: true, EffortMinimal: true, EffortLow: true, EffortMedium: true, EffortHigh: true, EffortAuto: true},
}

// EffortSupported reports whether effort is legal for the given type.
func EffortSupported(t ReasoningType, e Effort) bool {
	set, ok := SupportedEfforts[t]
	if !ok {
		return false
	}
	return set[e]
}

// ReasoningSpec is the canonical reasoning request.
type ReasoningSpec struct {
	Enabled            bool                   `json:"enabled"`
	Type               ReasoningType          `json:"type"`
	Effort             Effort                 `json:"effort"`
	BudgetTokens       *int                   `json:"budget_tokens,omitempty"`
	CustomParams       map[string]interface{} `json:"custom_params,omitempty"`
	FilterThinkingTags bool                   `json:"filter_thinking_tags"`
}

// Request is the canonical chat-completion request.
type Request struct {
	Model     string         `json:"model"`
	Messages  []Message      `json:"messages"`
	Stream    bool           `json:"stream"`
	Sampling  LLMParams      `json:"-"`
	Reasoning *ReasoningSpec `json:"-"`
}

// EventKind discriminates a StreamEvent.
type EventKind string

const (
	EventDelta EventKind = "delta"
	EventDone  EventKind = "done"
	EventError EventKind = "error"
)

// StreamEvent is the canonical, dialect-neutral SSE event.
type StreamEvent struct {
	Kind             EventKind
	Content          string
	ReasoningContent string
	Model            string
	FinishReason     *string
	Err              error
}

// Fragment is one piece of filtered thinking delivered to the bus.
type Fragment struct {
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ExtractText collapses a dialect content value (string, or an array of
// {type,text} blocks) to plain text.
func ExtractText(content interface{}) string {
	switch v := content.(type) {
	case string:
		return v
	case []interface{}:
		out := ""
		for _, block := range v {
			m, ok := block.(map[string]interface{})
			if !ok {
				continue
			}
			if t, _ := m["type"].(string); t == "text" || t == "input_text" {
				if text, ok := m["text"].(string); ok {
					out += text
				}
			}
		}
		return out
	default:
		return ""
	}
}
