package handler

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"thinkproxy/internal/bus"
	"thinkproxy/internal/canonical"
	"thinkproxy/internal/configstore"
	"thinkproxy/internal/profile"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestStore(t *testing.T) *configstore.Service {
	t.Helper()
	svc, err := configstore.Open(filepath.Join(t.TempDir(), "proxy_config.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return svc
}

func mustCreateProfile(t *testing.T, svc *configstore.Service, p *profile.Profile) {
	t.Helper()
	if err := svc.CreateProfile(p); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
}

func newTestRouter(store *configstore.Service, b *bus.Bus) *gin.Engine {
	rt := NewRouter(store, b, 5*time.Second)
	r := gin.New()
	r.POST("/v1/chat/completions", rt.ChatCompletions)
	r.GET("/v1/models", rt.ListModels)
	r.GET("/health", rt.Health)
	r.GET("/v1/thinking/stream", rt.ThinkingStream)
	return r
}

// A request routed to an Anthropic-dialect profile
// is translated to the Anthropic wire shape and the SSE reply decoded back
// into OpenAI-shaped chunks.
func TestChatCompletions_StreamingAnthropicRoundTrip(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected upstream path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "ant-key" {
			t.Errorf("expected x-api-key header, got %q", r.Header.Get("x-api-key"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		body := "event: content_block_delta\n" +
			"data: {\"delta\":{\"type\":\"text_delta\",\"text\":\"Hello\"}}\n\n" +
			"event: message_stop\n" +
			"data: {}\n\n"
		w.Write([]byte(body))
	}))
	defer upstream.Close()

	store := newTestStore(t)
	mustCreateProfile(t, store, &profile.Profile{
		ID: "ant", Enabled: true, ModelPatterns: []string{"claude-*"}, MatchType: profile.MatchWildcard,
		Upstream: profile.Upstream{BaseURL: upstream.URL, APIKey: "ant-key", APIFormat: profile.FormatAnthropic},
	})

	b := bus.New(bus.DefaultCapacity)
	r := newTestRouter(store, b)

	body := strings.NewReader(`{"model":"claude-sonnet","messages":[{"role":"user","content":"hi"}],"stream":true}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"content":"Hello"`) {
		t.Errorf("expected decoded content in response, got %s", w.Body.String())
	}
	if !strings.HasSuffix(w.Body.String(), "data: [DONE]\n\n") {
		t.Error("expected terminal [DONE] frame")
	}
}

// Thinking text is stripped from the client-visible
// stream and republished on the ThinkingBus instead.
func TestChatCompletions_FiltersThinkingAndPublishesToBus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		body := "event: content_block_delta\n" +
			"data: {\"delta\":{\"type\":\"thinking_delta\",\"thinking\":\"pondering\"}}\n\n" +
			"event: content_block_delta\n" +
			"data: {\"delta\":{\"type\":\"text_delta\",\"text\":\"answer\"}}\n\n" +
			"event: message_stop\n" +
			"data: {}\n\n"
		w.Write([]byte(body))
	}))
	defer upstream.Close()

	store := newTestStore(t)
	mustCreateProfile(t, store, &profile.Profile{
		ID: "ant", Enabled: true, ModelPatterns: []string{"claude-*"}, MatchType: profile.MatchWildcard,
		Upstream: profile.Upstream{BaseURL: upstream.URL, APIKey: "k", APIFormat: profile.FormatAnthropic},
		Reasoning: canonical.ReasoningSpec{
			Type: canonical.ReasoningAnthropic, Effort: canonical.EffortMedium,
			Enabled: true, FilterThinkingTags: true,
		},
	})

	b := bus.New(bus.DefaultCapacity)
	sub := b.Subscribe()
	defer sub.Close()
	r := newTestRouter(store, b)

	body := strings.NewReader(`{"model":"claude-sonnet","messages":[{"role":"user","content":"hi"}],"stream":true}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "pondering") {
		t.Errorf("thinking text leaked to client: %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "answer") {
		t.Errorf("expected visible answer text, got %s", w.Body.String())
	}

	select {
	case frag := <-sub.Events:
		if !strings.Contains(frag.Content, "pondering") {
			t.Errorf("expected thinking fragment on bus, got %q", frag.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for thinking fragment on bus")
	}
}

func TestChatCompletions_NonStreamingBuffered(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hi"},"finish_reason":"stop"}]}`))
	}))
	defer upstream.Close()

	store := newTestStore(t)
	mustCreateProfile(t, store, &profile.Profile{
		ID: "oai", Enabled: true, ModelPatterns: []string{"gpt-*"}, MatchType: profile.MatchWildcard,
		Upstream: profile.Upstream{BaseURL: upstream.URL, APIKey: "k", APIFormat: profile.FormatOpenAI},
	})

	r := newTestRouter(store, bus.New(bus.DefaultCapacity))
	body := strings.NewReader(`{"model":"gpt-4","messages":[{"role":"user","content":"hi"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"content":"Hi"`) {
		t.Errorf("expected buffered content, got %s", w.Body.String())
	}
}

func TestChatCompletions_NoProfileMatch(t *testing.T) {
	store := newTestStore(t)
	r := newTestRouter(store, bus.New(bus.DefaultCapacity))

	body := strings.NewReader(`{"model":"nonexistent","messages":[{"role":"user","content":"hi"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404, body = %s", w.Code, w.Body.String())
	}
}

func TestChatCompletions_RelaysUpstreamErrorVerbatim(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer upstream.Close()

	store := newTestStore(t)
	mustCreateProfile(t, store, &profile.Profile{
		ID: "oai", Enabled: true, ModelPatterns: []string{"gpt-*"}, MatchType: profile.MatchWildcard,
		Upstream: profile.Upstream{BaseURL: upstream.URL, APIKey: "k", APIFormat: profile.FormatOpenAI},
	})

	r := newTestRouter(store, bus.New(bus.DefaultCapacity))
	body := strings.NewReader(`{"model":"gpt-4","messages":[{"role":"user","content":"hi"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if !strings.Contains(w.Body.String(), "rate limited") {
		t.Errorf("expected verbatim upstream body, got %s", w.Body.String())
	}
}

func TestChatCompletions_InvalidBody(t *testing.T) {
	store := newTestStore(t)
	r := newTestRouter(store, bus.New(bus.DefaultCapacity))

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"messages":[]}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400, body = %s", w.Code, w.Body.String())
	}
}

func TestChatCompletions_HeaderOverridesBaseURL(t *testing.T) {
	overrideUpstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"overridden"},"finish_reason":"stop"}]}`))
	}))
	defer overrideUpstream.Close()

	store := newTestStore(t)
	mustCreateProfile(t, store, &profile.Profile{
		ID: "oai", Enabled: true, ModelPatterns: []string{"gpt-*"}, MatchType: profile.MatchWildcard,
		Upstream: profile.Upstream{BaseURL: "https://unused.example.invalid", APIKey: "k", APIFormat: profile.FormatOpenAI},
	})

	r := newTestRouter(store, bus.New(bus.DefaultCapacity))
	body := strings.NewReader(`{"model":"gpt-4","messages":[{"role":"user","content":"hi"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	req.Header.Set("X-Upstream-Base-URL", overrideUpstream.URL)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "overridden") {
		t.Errorf("expected content from override base_url, got %s", w.Body.String())
	}
}
