package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"thinkproxy/internal/apperr"
	"thinkproxy/internal/auth"
	"thinkproxy/internal/filter"
	"thinkproxy/internal/format"
)

// renderBuffered handles the non-streaming path: buffer the full upstream
// response, run the same dialect translation and thinking filter the
// streaming path applies per-chunk over the single content string, and
// return one OpenAI chat-completion JSON body.
func renderBuffered(c *gin.Context, apiFormat string, body io.Reader, model string, filterThinking bool, publish func(content, model string)) {
	raw, err := io.ReadAll(body)
	if err != nil {
		auth.WriteError(c, apperr.Wrap(apperr.KindUpstreamError, "failed to read upstream response", err))
		return
	}

	content, reasoningContent, finishReason := format.ParseResponse(apiFormat, raw)

	if filterThinking {
		f := filter.New()
		clean, thinking := f.Write(content)
		tailClean, tailThinking := f.Flush()
		content = clean + tailClean
		if all := thinking + tailThinking; all != "" {
			publish(all, model)
		}
		if reasoningContent != "" {
			publish(reasoningContent, model)
			reasoningContent = ""
		}
	}

	resp := chatResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []respChoice{{
			Index:        0,
			Message:      respMessage{Role: "assistant", Content: content, ReasoningContent: reasoningContent},
			FinishReason: finishReason,
		}},
	}
	c.JSON(http.StatusOK, resp)
}
