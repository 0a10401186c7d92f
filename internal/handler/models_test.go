package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"thinkproxy/internal/bus"
	"thinkproxy/internal/profile"
)

func TestListModels_PassesThroughDefaultProfile(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("expected bearer auth, got %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"data":[{"id":"gpt-4","object":"model"},{"id":"gpt-3.5","object":"model"}]}`))
	}))
	defer upstream.Close()

	store := newTestStore(t)
	mustCreateProfile(t, store, &profile.Profile{
		ID: "oai", Enabled: true, ModelPatterns: []string{"gpt-*"}, MatchType: profile.MatchWildcard,
		Upstream: profile.Upstream{BaseURL: upstream.URL, APIKey: "k", APIFormat: profile.FormatOpenAI},
	})
	if err := store.SetDefaultProfile("oai"); err != nil {
		t.Fatal(err)
	}

	r := newTestRouter(store, bus.New(bus.DefaultCapacity))
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "gpt-4") || !strings.Contains(w.Body.String(), "gpt-3.5") {
		t.Errorf("expected reshaped model list, got %s", w.Body.String())
	}
}

func TestListModels_GeminiReshapesNamePrefix(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"name":"models/gemini-pro"}]}`))
	}))
	defer upstream.Close()

	store := newTestStore(t)
	mustCreateProfile(t, store, &profile.Profile{
		ID: "g", Enabled: true, ModelPatterns: []string{"gemini-*"}, MatchType: profile.MatchWildcard,
		Upstream: profile.Upstream{BaseURL: upstream.URL, APIKey: "k", APIFormat: profile.FormatGemini},
	})
	if err := store.SetDefaultProfile("g"); err != nil {
		t.Fatal(err)
	}

	r := newTestRouter(store, bus.New(bus.DefaultCapacity))
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"id":"gemini-pro"`) {
		t.Errorf("expected models/ prefix stripped, got %s", w.Body.String())
	}
}

func TestListModels_NoDefaultProfileIsNotFound(t *testing.T) {
	store := newTestStore(t)
	r := newTestRouter(store, bus.New(bus.DefaultCapacity))

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestListModels_RelaysUpstreamErrorVerbatim(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer upstream.Close()

	store := newTestStore(t)
	mustCreateProfile(t, store, &profile.Profile{
		ID: "oai", Enabled: true, ModelPatterns: []string{"gpt-*"}, MatchType: profile.MatchWildcard,
		Upstream: profile.Upstream{BaseURL: upstream.URL, APIKey: "bad", APIFormat: profile.FormatOpenAI},
	})
	if err := store.SetDefaultProfile("oai"); err != nil {
		t.Fatal(err)
	}

	r := newTestRouter(store, bus.New(bus.DefaultCapacity))
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), "bad key") {
		t.Errorf("expected verbatim upstream body, got %s", w.Body.String())
	}
}
