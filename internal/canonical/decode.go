package canonical

import (
	"encoding/json"
	"errors"
)

// wireMessage/wireRequest mirror the OpenAI-compatible JSON body clients
// send to POST /v1/chat/completions. The inbound side decodes via a plain
// struct; only the outbound dialect shaping uses sjson path writes.
type wireMessage struct {
	Role    Role        `json:"role"`
	Content interface{} `json:"content"`
}

type wireRequest struct {
	Model            string        `json:"model"`
	Messages         []wireMessage `json:"messages"`
	Stream           bool          `json:"stream"`
	Temperature      *float64      `json:"temperature"`
	TopP             *float64      `json:"top_p"`
	TopK             *int          `json:"top_k"`
	MaxTokens        *int          `json:"max_tokens"`
	PresencePenalty  *float64      `json:"presence_penalty"`
	FrequencyPenalty *float64      `json:"frequency_penalty"`
	Seed             *int          `json:"seed"`
	Stop             []string      `json:"stop"`
}

// DecodeRequest parses a client request body into a canonical Request. The
// caller (internal/handler) is responsible for wrapping a decode error as
// apperr.BadRequest — this package stays free of the error-envelope
// concern so it can be imported without pulling in apperr's HTTP mapping.
func DecodeRequest(body []byte) (Request, error) {
	var w wireRequest
	if err := json.Unmarshal(body, &w); err != nil {
		return Request{}, err
	}
	if w.Model == "" {
		return Request{}, errors.New("model is required")
	}
	if len(w.Messages) == 0 {
		return Request{}, errors.New("messages must be non-empty")
	}

	messages := make([]Message, len(w.Messages))
	for i, m := range w.Messages {
		messages[i] = Message{Role: m.Role, Content: m.Content}
	}

	return Request{
		Model:    w.Model,
		Messages: messages,
		Stream:   w.Stream,
		Sampling: LLMParams{
			Temperature:      w.Temperature,
			TopP:             w.TopP,
			TopK:             w.TopK,
			MaxTokens:        w.MaxTokens,
			PresencePenalty:  w.PresencePenalty,
			FrequencyPenalty: w.FrequencyPenalty,
			Seed:             w.Seed,
			Stop:             w.Stop,
		},
	}, nil
}
