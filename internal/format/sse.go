package format

import (
	"encoding/json"
	"io"

	"thinkproxy/internal/canonical"
	"thinkproxy/internal/filter"
)

// chunk is the canonical SSE payload every dialect's output is normalized
// to, matching the OpenAI chat-completion chunk shape.
type chunk struct {
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
}

type choice struct {
	Index        int     `json:"index"`
	Delta        delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

type delta struct {
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// EncodeChunk renders one canonical delta as a `data: {...}\n\n` SSE frame.
func EncodeChunk(ev canonical.StreamEvent) []byte {
	c := chunk{
		Model: ev.Model,
		Choices: []choice{{
			Index:        0,
			Delta:        delta{Content: ev.Content, ReasoningContent: ev.ReasoningContent},
			FinishReason: ev.FinishReason,
		}},
	}
	body, _ := json.Marshal(c)
	out := append([]byte("data: "), body...)
	return append(out, '\n', '\n')
}

// doneFrame is the terminal SSE frame every dialect's stream ends with.
var doneFrame = []byte("data: [DONE]\n\n")

// StreamResponse reads body through dec, threading each delta's content
// through a per-request StreamFilter when filterThinking is set.
// publishThinking is called with every thinking fragment produced and may
// be nil. w receives the encoded SSE frames directly as data arrives.
func StreamResponse(dec Decoder, body io.Reader, model string, filterThinking bool, w io.Writer, publishThinking func(content, model string)) error {
	f := filter.New()
	var writeErr error
	write := func(b []byte) {
		if writeErr != nil {
			return
		}
		_, writeErr = w.Write(b)
	}

	dec.Decode(body, model, func(ev canonical.StreamEvent) {
		switch ev.Kind {
		case canonical.EventDelta:
			if filterThinking {
				if ev.Content != "" {
					clean, thinking := f.Write(ev.Content)
					ev.Content = clean
					if thinking != "" && publishThinking != nil {
						publishThinking(thinking, model)
					}
				}
				// Native reasoning_content, already separated by the
				// dialect decoder, goes to the bus instead of the
				// client too.
				if ev.ReasoningContent != "" {
					if publishThinking != nil {
						publishThinking(ev.ReasoningContent, model)
					}
					ev.ReasoningContent = ""
				}
			}
			if ev.Content != "" || ev.ReasoningContent != "" || ev.FinishReason != nil {
				write(EncodeChunk(ev))
			}
		case canonical.EventDone:
			if filterThinking {
				clean, thinking := f.Flush()
				if clean != "" {
					write(EncodeChunk(canonical.StreamEvent{Model: model, Content: clean}))
				}
				if thinking != "" && publishThinking != nil {
					publishThinking(thinking, model)
				}
			}
			write(doneFrame)
		case canonical.EventError:
			errBody, _ := json.Marshal(map[string]interface{}{"error": map[string]string{"message": ev.Err.Error()}})
			write(append(append([]byte("data: "), errBody...), '\n', '\n'))
			write(doneFrame)
		}
	})

	return writeErr
}
