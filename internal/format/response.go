package format

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"thinkproxy/internal/canonical"
)

// maxSSELineBytes bounds the scanner buffer; a single SSE data line can
// carry a large buffered completion.
const maxSSELineBytes = 1024 * 1024

// Decoder turns one dialect's raw upstream stream body into canonical
// StreamEvents, invoking emit once per event in stream order.
type Decoder interface {
	Decode(body io.Reader, model string, emit func(canonical.StreamEvent))
}

// NewDecoder returns the Decoder for the given api_format.
func NewDecoder(apiFormat string) Decoder {
	switch apiFormat {
	case "openai", "openai-response", "azure-openai":
		return openAIDecoder{}
	case "anthropic":
		return anthropicDecoder{}
	case "gemini":
		return geminiDecoder{}
	default:
		return openAIDecoder{}
	}
}

func scanLines(body io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxSSELineBytes)
	return scanner
}

// openAIDecoder passes openai/azure-openai SSE `data:` frames through,
// lifting delta.content and choices[0].finish_reason into canonical
// StreamEvents.
type openAIDecoder struct{}

func (openAIDecoder) Decode(body io.Reader, model string, emit func(canonical.StreamEvent)) {
	scanner := scanLines(body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			emit(canonical.StreamEvent{Kind: canonical.EventDone, Model: model})
			return
		}
		result := gjson.Parse(data)
		content := result.Get("choices.0.delta.content").String()
		reasoningContent := result.Get("choices.0.delta.reasoning_content").String()
		if content == "" && reasoningContent == "" && !result.Get("choices.0.finish_reason").Exists() {
			continue
		}
		var finishReason *string
		if fr := result.Get("choices.0.finish_reason"); fr.Exists() && fr.Type != gjson.Null {
			s := fr.String()
			finishReason = &s
		}
		emit(canonical.StreamEvent{
			Kind: canonical.EventDelta, Content: content, ReasoningContent: reasoningContent,
			Model: model, FinishReason: finishReason,
		})
	}
	if err := scanner.Err(); err != nil {
		emit(canonical.StreamEvent{Kind: canonical.EventError, Model: model, Err: err})
	}
}

// anthropicDecoder maps content_block_delta events into canonical deltas:
// text_delta -> delta.content, thinking_delta -> delta.reasoning_content;
// message_stop ends the stream.
type anthropicDecoder struct{}

func (anthropicDecoder) Decode(body io.Reader, model string, emit func(canonical.StreamEvent)) {
	scanner := scanLines(body)
	var eventType string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			result := gjson.Parse(data)
			switch eventType {
			case "content_block_delta":
				delta := result.Get("delta")
				switch delta.Get("type").String() {
				case "text_delta":
					emit(canonical.StreamEvent{Kind: canonical.EventDelta, Content: delta.Get("text").String(), Model: model})
				case "thinking_delta":
					emit(canonical.StreamEvent{Kind: canonical.EventDelta, ReasoningContent: delta.Get("thinking").String(), Model: model})
				}
			case "message_delta":
				if fr := result.Get("delta.stop_reason"); fr.Exists() {
					s := fr.String()
					emit(canonical.StreamEvent{Kind: canonical.EventDelta, Model: model, FinishReason: &s})
				}
			case "message_stop":
				emit(canonical.StreamEvent{Kind: canonical.EventDone, Model: model})
				return
			case "error":
				emit(canonical.StreamEvent{Kind: canonical.EventError, Model: model, Err: errString(result.Get("error.message").String())})
				return
			}
		}
	}
	if err := scanner.Err(); err != nil {
		emit(canonical.StreamEvent{Kind: canonical.EventError, Model: model, Err: err})
	}
}

// geminiDecoder reads a newline-delimited stream of candidate JSON objects
// and synthesizes the final done event itself, since Gemini's wire format
// has no end-of-stream sentinel.
type geminiDecoder struct{}

func (geminiDecoder) Decode(body io.Reader, model string, emit func(canonical.StreamEvent)) {
	scanner := scanLines(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "data: ")
		if line == "" || line == "[" || line == "]" || line == "," {
			continue
		}
		line = strings.TrimSuffix(line, ",")
		if !json.Valid([]byte(line)) {
			continue
		}
		result := gjson.Parse(line)
		var text string
		result.Get("candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
			text += part.Get("text").String()
			return true
		})
		var finishReason *string
		if fr := result.Get("candidates.0.finishReason"); fr.Exists() {
			s := fr.String()
			finishReason = &s
		}
		if text == "" && finishReason == nil {
			continue
		}
		emit(canonical.StreamEvent{Kind: canonical.EventDelta, Content: text, Model: model, FinishReason: finishReason})
	}
	if err := scanner.Err(); err != nil {
		emit(canonical.StreamEvent{Kind: canonical.EventError, Model: model, Err: err})
		return
	}
	emit(canonical.StreamEvent{Kind: canonical.EventDone, Model: model})
}

type errString string

func (e errString) Error() string { return string(e) }

// ParseResponse extracts the assistant text, any reasoning text, and the
// finish reason from a buffered non-streaming upstream response body.
func ParseResponse(apiFormat string, body []byte) (content, reasoningContent string, finishReason *string) {
	result := gjson.ParseBytes(body)
	strPtr := func(r gjson.Result) *string {
		if !r.Exists() || r.Type == gjson.Null {
			return nil
		}
		s := r.String()
		return &s
	}

	switch apiFormat {
	case "anthropic":
		result.Get("content").ForEach(func(_, block gjson.Result) bool {
			switch block.Get("type").String() {
			case "text":
				content += block.Get("text").String()
			case "thinking":
				reasoningContent += block.Get("thinking").String()
			}
			return true
		})
		finishReason = strPtr(result.Get("stop_reason"))
	case "gemini":
		result.Get("candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
			if part.Get("thought").Bool() {
				reasoningContent += part.Get("text").String()
			} else {
				content += part.Get("text").String()
			}
			return true
		})
		finishReason = strPtr(result.Get("candidates.0.finishReason"))
	case "openai-response":
		result.Get("output").ForEach(func(_, item gjson.Result) bool {
			item.Get("content").ForEach(func(_, part gjson.Result) bool {
				if part.Get("type").String() == "output_text" {
					content += part.Get("text").String()
				}
				return true
			})
			return true
		})
		finishReason = strPtr(result.Get("status"))
	default: // openai, azure-openai
		content = result.Get("choices.0.message.content").String()
		reasoningContent = result.Get("choices.0.message.reasoning_content").String()
		finishReason = strPtr(result.Get("choices.0.finish_reason"))
	}
	return content, reasoningContent, finishReason
}
