// Package handler implements the per-request orchestration: auth, profile
// resolution, dialect translation, the upstream call, response adaptation,
// stream filtering, and thinking publication, plus the supporting
// endpoints (/v1/models, /health, /v1/thinking/stream) and the config
// REST surface.
package handler

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imroc/req/v3"
	"github.com/rs/zerolog/log"

	"thinkproxy/internal/apperr"
	"thinkproxy/internal/bus"
	"thinkproxy/internal/configstore"
	"thinkproxy/internal/format"
	"thinkproxy/internal/httpclient"
)

// Router holds the collaborators every chat-completion request needs: the
// config store (snapshotted once per request), the process-wide thinking
// bus, and the configured upstream timeout.
type Router struct {
	Store           *configstore.Service
	Bus             *bus.Bus
	UpstreamTimeout time.Duration
}

// NewRouter constructs a Router. timeout is stored in UpstreamTimeout only;
// upstream calls go through httpclient's shared client, whose timeout is
// the one set by httpclient.SetDefaultTimeout.
func NewRouter(store *configstore.Service, b *bus.Bus, timeout time.Duration) *Router {
	return &Router{Store: store, Bus: b, UpstreamTimeout: timeout}
}

// callUpstream issues ureq against baseURL with the client's request
// context, so a client disconnect cancels the in-flight upstream call.
// Streaming responses are left unread (DisableAutoReadResponse) so the
// caller can pump the body incrementally.
func callUpstream(ctx context.Context, ureq format.UpstreamRequest, baseURL string) (*req.Response, error) {
	target := strings.TrimRight(baseURL, "/") + ureq.Path

	r := httpclient.GetClient().R().SetContext(ctx).SetBodyBytes(ureq.Body)
	for k, v := range ureq.Header {
		r.SetHeader(k, v)
	}
	r.DisableAutoReadResponse()

	resp, err := r.Post(target)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, apperr.StreamInterrupted()
		}
		log.Error().Err(err).Str("url", target).Msg("upstream call failed")
		return nil, apperr.UpstreamConnection(err)
	}
	return resp, nil
}

// relayUpstreamError copies a non-2xx upstream response verbatim to the
// client: same status, same body, no retry.
func relayUpstreamError(c *gin.Context, resp *req.Response) {
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, body)
}

func isSuccess(status int) bool { return status >= 200 && status < 300 }

// resultResp is a minimal, dialect-agnostic handle for a GET call's status
// and body, letting callers (ListModels) stay decoupled from req/v3's
// *req.Response type.
type resultResp struct {
	Status int
	Body   io.ReadCloser
}

func (r *resultResp) Close() error { return r.Body.Close() }

// doGet issues a GET with auto-read disabled so the caller decides whether
// to relay the raw body (non-2xx) or parse it (2xx).
func doGet(r *req.Request, url string) (*resultResp, error) {
	r.DisableAutoReadResponse()
	resp, err := r.Get(url)
	if err != nil {
		return nil, err
	}
	return &resultResp{Status: resp.StatusCode, Body: resp.Body}, nil
}

// flushWriter wraps a gin.ResponseWriter so every Write is immediately
// flushed to the client, letting format.StreamResponse write SSE frames
// without knowing about gin at all.
type flushWriter struct {
	w gin.ResponseWriter
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if err != nil {
		return n, err
	}
	fw.w.Flush()
	return n, nil
}
