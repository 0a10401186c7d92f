package handler

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"thinkproxy/internal/bus"
	"thinkproxy/internal/canonical"
)

// ThinkingStream loops until the client disconnects, so it must be
// exercised against a real listener (a ResponseRecorder never unblocks it).
func TestThinkingStream_DeliversPublishedFragments(t *testing.T) {
	store := newTestStore(t)
	b := bus.New(bus.DefaultCapacity)
	r := newTestRouter(store, b)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/thinking/stream", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("unexpected content-type %q", resp.Header.Get("Content-Type"))
	}

	// Give the handler time to register its subscriber before publishing.
	deadline := time.After(2 * time.Second)
	for b.SubscriberCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("handler never subscribed to the bus")
		case <-time.After(10 * time.Millisecond):
		}
	}

	b.Publish(canonical.Fragment{Content: "thinking aloud", Model: "claude-sonnet"})

	scanner := bufio.NewScanner(resp.Body)
	found := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "thinking aloud") {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected published fragment to appear on the SSE stream")
	}
}

func TestThinkingStream_ClientDisconnectUnregisters(t *testing.T) {
	store := newTestStore(t)
	b := bus.New(bus.DefaultCapacity)
	r := newTestRouter(store, b)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/thinking/stream", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for b.SubscriberCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("handler never subscribed to the bus")
		case <-time.After(10 * time.Millisecond):
		}
	}

	resp.Body.Close()
	cancel()

	deadline = time.After(2 * time.Second)
	for b.SubscriberCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("subscriber was not unregistered after disconnect")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
