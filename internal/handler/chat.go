package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"thinkproxy/internal/apperr"
	"thinkproxy/internal/auth"
	"thinkproxy/internal/canonical"
	"thinkproxy/internal/format"
	"thinkproxy/internal/profile"
	"thinkproxy/internal/reasoning"
)

// ChatCompletions handles POST /v1/chat/completions: parse, resolve,
// adapt-in, call upstream, relay-or-adapt-out, filter, and (for streams)
// publish stripped thinking to the bus.
func (rt *Router) ChatCompletions(c *gin.Context) {
	overrides, err := auth.ParseOverrides(c)
	if err != nil {
		auth.WriteError(c, err)
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		auth.WriteError(c, apperr.BadRequest("failed to read request body"))
		return
	}

	creq, err := canonical.DecodeRequest(raw)
	if err != nil {
		auth.WriteError(c, apperr.BadRequest(err.Error()))
		return
	}

	snap := rt.Store.Snapshot()
	prof, ok := profile.Resolve(snap.Profiles, creq.Model, snap.DefaultProfile)
	if !ok {
		auth.WriteError(c, apperr.NoProfileMatch("no profile matches model "+creq.Model))
		return
	}

	upstream := prof.Upstream
	if overrides.BaseURL != "" {
		upstream.BaseURL = overrides.BaseURL
	}
	if overrides.APIFormat != "" {
		upstream.APIFormat = profile.APIFormat(overrides.APIFormat)
	}

	// Request params win over profile llm_params; proxy settings carry no
	// sampling defaults, so the chain is exactly these two levels.
	sampling := prof.LLMParams.Merge(creq.Sampling)

	var rs *canonical.ReasoningSpec
	if prof.Reasoning.Type != "" {
		normalized := reasoning.Normalize(prof.Reasoning.Type, prof.Reasoning)
		rs = &normalized
	}

	ureq, err := format.BuildRequest(creq, sampling, upstream, rs)
	if err != nil {
		auth.WriteError(c, apperr.Internal("failed to build upstream request", err))
		return
	}

	resp, err := callUpstream(c.Request.Context(), ureq, upstream.BaseURL)
	if err != nil {
		auth.WriteError(c, err)
		return
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		relayUpstreamError(c, resp)
		return
	}

	filterThinking := prof.Reasoning.FilterThinkingTags
	publish := func(content, model string) {
		rt.Bus.Publish(canonical.Fragment{Content: content, Model: model, Timestamp: time.Now()})
	}

	if creq.Stream {
		dec := format.NewDecoder(string(upstream.APIFormat))
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Status(http.StatusOK)
		if werr := format.StreamResponse(dec, resp.Body, creq.Model, filterThinking, flushWriter{c.Writer}, publish); werr != nil {
			log.Debug().Err(werr).Msg("client disconnected mid-stream")
		}
		return
	}

	renderBuffered(c, string(upstream.APIFormat), resp.Body, creq.Model, filterThinking, publish)
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []respChoice `json:"choices"`
}

type respChoice struct {
	Index        int         `json:"index"`
	Message      respMessage `json:"message"`
	FinishReason *string     `json:"finish_reason"`
}

type respMessage struct {
	Role             string `json:"role"`
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}
