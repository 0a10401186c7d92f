package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const keepAliveInterval = 15 * time.Second

type thinkingEvent struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Model   string `json:"model,omitempty"`
}

// ThinkingStream implements GET /v1/thinking/stream: an SSE subscriber on
// the thinking bus, emitting {type:"thinking",...} per fragment and
// {type:"done"} if the subscription's Events channel is closed. Events is
// closed only by Subscriber.Close, which this handler defers, so a chat
// request finishing does not produce a done frame; the stream ends when
// the client disconnects. A keep-alive comment line goes out every 15s so
// intermediaries don't drop the connection as idle.
func (rt *Router) ThinkingStream(c *gin.Context) {
	sub := rt.Bus.Subscribe()
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case fragment, ok := <-sub.Events:
			if !ok {
				writeSSEEvent(c.Writer, thinkingEvent{Type: "done"})
				c.Writer.Flush()
				return
			}
			writeSSEEvent(c.Writer, thinkingEvent{Type: "thinking", Content: fragment.Content, Model: fragment.Model})
			c.Writer.Flush()
		case <-ticker.C:
			c.Writer.WriteString(": keep-alive\n\n")
			c.Writer.Flush()
		}
	}
}

func writeSSEEvent(w gin.ResponseWriter, ev thinkingEvent) {
	body, _ := json.Marshal(ev)
	w.Write([]byte("data: "))
	w.Write(body)
	w.WriteString("\n\n")
}
