// Package format translates a canonical chat-completion request into each
// upstream dialect's wire shape and normalizes each dialect's streamed
// response back into canonical SSE events. Request bodies are built with
// gjson/sjson path writes rather than one typed struct per dialect
// variant.
package format

import (
	"fmt"
	"strings"

	"github.com/tidwall/sjson"

	"thinkproxy/internal/canonical"
	"thinkproxy/internal/profile"
	"thinkproxy/internal/reasoning"
)

// defaultMaxTokens is used by the Anthropic adapter when the caller
// supplies none; the Messages API requires max_tokens.
const defaultMaxTokens = 4096

// UpstreamRequest is the fully-built outbound call: method/path are fixed
// per dialect ("POST" + the configured base_url's chat path, or Gemini's
// model-qualified streaming path), headers carry the dialect's credential
// scheme, and Body is the translated JSON.
type UpstreamRequest struct {
	Method string
	Path   string // path appended to profile.Upstream.BaseURL
	Header map[string]string
	Body   []byte
}

// BuildRequest translates req into the wire shape for upstream.APIFormat,
// merges sampling params (caller already resolved request > profile >
// default precedence into sampling), and injects the ReasoningBuilder
// fragment for reasoning.
func BuildRequest(req canonical.Request, sampling canonical.LLMParams, upstream profile.Upstream, rs *canonical.ReasoningSpec) (UpstreamRequest, error) {
	switch upstream.APIFormat {
	case profile.FormatOpenAI:
		return buildOpenAI(req, sampling, upstream, rs, false)
	case profile.FormatOpenAIResponse:
		return buildOpenAIResponse(req, sampling, upstream, rs)
	case profile.FormatAnthropic:
		return buildAnthropic(req, sampling, upstream, rs)
	case profile.FormatGemini:
		return buildGemini(req, sampling, upstream, rs)
	case profile.FormatAzureOpenAI:
		return buildOpenAI(req, sampling, upstream, rs, true)
	default:
		return UpstreamRequest{}, fmt.Errorf("unknown api_format %q", upstream.APIFormat)
	}
}

func applySampling(body []byte, prefix string, s canonical.LLMParams) []byte {
	set := func(path string, v interface{}) {
		body, _ = sjson.SetBytes(body, prefix+path, v)
	}
	if s.Temperature != nil {
		set("temperature", *s.Temperature)
	}
	if s.TopP != nil {
		set("top_p", *s.TopP)
	}
	if s.TopK != nil {
		set("top_k", *s.TopK)
	}
	if s.PresencePenalty != nil {
		set("presence_penalty", *s.PresencePenalty)
	}
	if s.FrequencyPenalty != nil {
		set("frequency_penalty", *s.FrequencyPenalty)
	}
	if s.Seed != nil {
		set("seed", *s.Seed)
	}
	if len(s.Stop) > 0 {
		set("stop", s.Stop)
	}
	return body
}

func messagesToOpenAI(body []byte, messages []canonical.Message) []byte {
	for i, m := range messages {
		body, _ = sjson.SetBytes(body, fmt.Sprintf("messages.%d.role", i), string(m.Role))
		body, _ = sjson.SetBytes(body, fmt.Sprintf("messages.%d.content", i), canonical.ExtractText(m.Content))
	}
	return body
}

func buildOpenAI(req canonical.Request, sampling canonical.LLMParams, upstream profile.Upstream, rs *canonical.ReasoningSpec, azure bool) (UpstreamRequest, error) {
	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "model", req.Model)
	body, _ = sjson.SetBytes(body, "stream", req.Stream)
	body = messagesToOpenAI(body, req.Messages)
	body = applySampling(body, "", sampling)
	if sampling.MaxTokens != nil {
		body, _ = sjson.SetBytes(body, "max_tokens", *sampling.MaxTokens)
	}
	body = reasoning.Apply(body, rs)

	if azure {
		path := fmt.Sprintf("/openai/deployments/%s/chat/completions?api-version=2024-06-01", req.Model)
		return UpstreamRequest{
			Method: "POST", Path: path,
			Header: map[string]string{"api-key": upstream.APIKey, "Content-Type": "application/json"},
			Body:   body,
		}, nil
	}
	return UpstreamRequest{
		Method: "POST", Path: "/chat/completions",
		Header: map[string]string{"Authorization": "Bearer " + upstream.APIKey, "Content-Type": "application/json"},
		Body:   body,
	}, nil
}

func buildOpenAIResponse(req canonical.Request, sampling canonical.LLMParams, upstream profile.Upstream, rs *canonical.ReasoningSpec) (UpstreamRequest, error) {
	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "model", req.Model)
	body, _ = sjson.SetBytes(body, "stream", req.Stream)
	for i, m := range req.Messages {
		prefix := fmt.Sprintf("input.%d.", i)
		body, _ = sjson.SetBytes(body, prefix+"role", string(m.Role))
		body, _ = sjson.SetBytes(body, prefix+"content.0.type", "input_text")
		body, _ = sjson.SetBytes(body, prefix+"content.0.text", canonical.ExtractText(m.Content))
	}
	body = applySampling(body, "", sampling)
	if sampling.MaxTokens != nil {
		body, _ = sjson.SetBytes(body, "max_output_tokens", *sampling.MaxTokens)
	}
	body = reasoning.Apply(body, rs)

	return UpstreamRequest{
		Method: "POST", Path: "/responses",
		Header: map[string]string{"Authorization": "Bearer " + upstream.APIKey, "Content-Type": "application/json"},
		Body:   body,
	}, nil
}

func buildAnthropic(req canonical.Request, sampling canonical.LLMParams, upstream profile.Upstream, rs *canonical.ReasoningSpec) (UpstreamRequest, error) {
	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "model", req.Model)
	body, _ = sjson.SetBytes(body, "stream", req.Stream)

	msgIdx := 0
	for _, m := range req.Messages {
		if m.Role == canonical.RoleSystem {
			body, _ = sjson.SetBytes(body, "system", canonical.ExtractText(m.Content))
			continue
		}
		prefix := fmt.Sprintf("messages.%d.", msgIdx)
		body, _ = sjson.SetBytes(body, prefix+"role", string(m.Role))
		body, _ = sjson.SetBytes(body, prefix+"content.0.type", "text")
		body, _ = sjson.SetBytes(body, prefix+"content.0.text", canonical.ExtractText(m.Content))
		msgIdx++
	}

	maxTokens := defaultMaxTokens
	if sampling.MaxTokens != nil {
		maxTokens = *sampling.MaxTokens
	}
	body, _ = sjson.SetBytes(body, "max_tokens", maxTokens)

	s := sampling
	s.MaxTokens = nil // already written above under anthropic's own key
	body = applySampling(body, "", s)
	if len(sampling.Stop) > 0 {
		body, _ = sjson.SetBytes(body, "stop_sequences", sampling.Stop)
		body, _ = sjson.DeleteBytes(body, "stop")
	}
	body = reasoning.Apply(body, rs)

	return UpstreamRequest{
		Method: "POST", Path: "/v1/messages",
		Header: map[string]string{"x-api-key": upstream.APIKey, "anthropic-version": "2023-06-01", "Content-Type": "application/json"},
		Body:   body,
	}, nil
}

// applyGeminiSampling writes sampling params under generationConfig with
// Gemini's camelCase field names.
func applyGeminiSampling(body []byte, s canonical.LLMParams) []byte {
	set := func(path string, v interface{}) {
		body, _ = sjson.SetBytes(body, "generationConfig."+path, v)
	}
	if s.Temperature != nil {
		set("temperature", *s.Temperature)
	}
	if s.TopP != nil {
		set("topP", *s.TopP)
	}
	if s.TopK != nil {
		set("topK", *s.TopK)
	}
	if s.MaxTokens != nil {
		set("maxOutputTokens", *s.MaxTokens)
	}
	if s.PresencePenalty != nil {
		set("presencePenalty", *s.PresencePenalty)
	}
	if s.FrequencyPenalty != nil {
		set("frequencyPenalty", *s.FrequencyPenalty)
	}
	if s.Seed != nil {
		set("seed", *s.Seed)
	}
	if len(s.Stop) > 0 {
		set("stopSequences", s.Stop)
	}
	return body
}

func buildGemini(req canonical.Request, sampling canonical.LLMParams, upstream profile.Upstream, rs *canonical.ReasoningSpec) (UpstreamRequest, error) {
	body := []byte(`{}`)

	var systemParts []string
	contentIdx := 0
	for _, m := range req.Messages {
		text := canonical.ExtractText(m.Content)
		if m.Role == canonical.RoleSystem {
			systemParts = append(systemParts, text)
			continue
		}
		role := "user"
		if m.Role == canonical.RoleAssistant {
			role = "model"
		}
		prefix := fmt.Sprintf("contents.%d.", contentIdx)
		body, _ = sjson.SetBytes(body, prefix+"role", role)
		body, _ = sjson.SetBytes(body, prefix+"parts.0.text", text)
		contentIdx++
	}
	if len(systemParts) > 0 {
		body, _ = sjson.SetBytes(body, "systemInstruction.parts.0.text", strings.Join(systemParts, "\n"))
	}

	body = applyGeminiSampling(body, sampling)
	body = reasoning.Apply(body, rs)

	verb := "generateContent"
	if req.Stream {
		verb = "streamGenerateContent"
	}
	path := fmt.Sprintf("/v1beta/models/%s:%s?key=%s", req.Model, verb, upstream.APIKey)

	return UpstreamRequest{
		Method: "POST", Path: path,
		Header: map[string]string{"Content-Type": "application/json"},
		Body:   body,
	}, nil
}
