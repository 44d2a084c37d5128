package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func sseHandler(t *testing.T, script func(w http.ResponseWriter, flush func())) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Error("response writer does not support flushing")
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()
		script(w, flusher.Flush)
	})
}

func requestTo(ts *httptest.Server) RequestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	}
}

func TestSubscriber_ParsesNamedEvents(t *testing.T) {
	ts := httptest.NewServer(sseHandler(t, func(w http.ResponseWriter, flush func()) {
		fmt.Fprint(w, "event: init\ndata: {\"items\":[]}\n\n")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "event: new_item\ndata: {\"id\":\"n1\"}\n\n")
		fmt.Fprint(w, "event: count_update\ndata: {\"count\":4}\n\n")
		flush()
	}))
	defer ts.Close()

	sub := New(nil, requestTo(ts))
	runErr := make(chan error, 1)
	go func() { runErr <- sub.Run(context.Background()) }()

	want := []Event{
		{Name: "init", Data: []byte(`{"items":[]}`)},
		{Name: "new_item", Data: []byte(`{"id":"n1"}`)},
		{Name: "count_update", Data: []byte(`{"count":4}`)},
	}
	for i, w := range want {
		select {
		case got := <-sub.Events():
			if got.Name != w.Name || string(got.Data) != string(w.Data) {
				t.Fatalf("event %d = %s %q, want %s %q", i, got.Name, got.Data, w.Name, w.Data)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	// Server closes the stream; that is a failure, not a clean end.
	if err := <-runErr; err == nil {
		t.Fatal("expected error when server closes the stream")
	}
}

func TestSubscriber_MultiLineData(t *testing.T) {
	ts := httptest.NewServer(sseHandler(t, func(w http.ResponseWriter, flush func()) {
		fmt.Fprint(w, "event: item_updated\ndata: {\"id\":\"n1\",\ndata: \"read\":true}\n\n")
		flush()
	}))
	defer ts.Close()

	sub := New(nil, requestTo(ts))
	go func() { _ = sub.Run(context.Background()) }()

	select {
	case got := <-sub.Events():
		if string(got.Data) != "{\"id\":\"n1\",\n\"read\":true}" {
			t.Fatalf("data = %q", got.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestSubscriber_ContextCancelIsCleanShutdown(t *testing.T) {
	started := make(chan struct{})
	stop := make(chan struct{})
	ts := httptest.NewServer(sseHandler(t, func(w http.ResponseWriter, flush func()) {
		close(started)
		<-stop
	}))
	defer ts.Close()
	defer close(stop)

	ctx, cancel := context.WithCancel(context.Background())
	sub := New(nil, func(c context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(c, http.MethodGet, ts.URL, nil)
	})

	runErr := make(chan error, 1)
	go func() { runErr <- sub.Run(ctx) }()
	<-started
	cancel()

	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run returned %v on cancel, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Events channel must be closed so consumers terminate.
	if _, open := <-sub.Events(); open {
		t.Fatal("events channel left open after Run returned")
	}
}

func TestSubscriber_NonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	sub := New(nil, requestTo(ts))
	if err := sub.Run(context.Background()); err == nil {
		t.Fatal("expected error for non-200 stream response")
	}
}

func TestSubscriber_WrongContentType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "{}")
	}))
	defer ts.Close()

	sub := New(nil, requestTo(ts))
	if err := sub.Run(context.Background()); err == nil {
		t.Fatal("expected error for wrong content type")
	}
}
