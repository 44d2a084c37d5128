package arbor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, handler http.Handler, tokens oauth2.TokenSource) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	client, err := NewClient(ts.URL, tokens)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestClient_ListEntities(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/entities" {
			t.Errorf("path = %s, want /api/entities", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"items":[{"id":"e1","name":"Alpha"},{"id":"e2","name":"Beta"}],"total":12,"page":2,"per_page":2}`)
	}), nil)

	page, err := client.ListEntities(context.Background(), ListParams{
		Page:    2,
		PerPage: 2,
		Search:  "al",
		Filter:  map[string]string{"kind": "document"},
	})
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].ID != "e1" {
		t.Fatalf("items = %#v, want e1/e2", page.Items)
	}
	if page.Total != 12 || page.Page != 2 || page.PerPage != 2 {
		t.Fatalf("envelope = %d/%d/%d, want 12/2/2", page.Total, page.Page, page.PerPage)
	}
	if gotQuery != "kind=document&page=2&per_page=2&search=al" {
		t.Fatalf("query = %q", gotQuery)
	}
}

func TestClient_BearerToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sesame" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"count":3}`)
	}), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "sesame"}))

	count, err := client.UnreadCount(context.Background())
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}

func TestClient_APIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error":"value out of range"}`)
	}), nil)

	_, err := client.UpdateFacetValue(context.Background(), "fv1", map[string]any{"value": "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", apiErr.Status)
	}
}

func TestClient_CancellationIsClassifiable(t *testing.T) {
	started := make(chan struct{})
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.GetEntity(ctx, "e1")
	if err == nil {
		t.Fatal("expected error from cancelled request")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want errors.Is(err, context.Canceled)", err)
	}
}

func TestClient_DeleteSendsNoBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}), nil)

	if err := client.DeleteFacetValue(context.Background(), "fv9"); err != nil {
		t.Fatalf("DeleteFacetValue: %v", err)
	}
}

func TestListParams_KeyIsStable(t *testing.T) {
	a := ListParams{Filter: map[string]string{"b": "2", "a": "1"}, Page: 1}
	b := ListParams{Filter: map[string]string{"a": "1", "b": "2"}, Page: 1}
	if a.Key() != b.Key() {
		t.Fatalf("keys differ: %q vs %q", a.Key(), b.Key())
	}
	if a.Key() != "a=1&b=2&page=1" {
		t.Fatalf("key = %q", a.Key())
	}
}

func TestParseBaseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"127.0.0.1:8080", "http://127.0.0.1:8080", false},
		{"https://arbor.internal/extra?x=1", "https://arbor.internal", false},
		{"  ", "", true},
	}
	for _, tt := range tests {
		u, err := parseBaseURL(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseBaseURL(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseBaseURL(%q): %v", tt.in, err)
			continue
		}
		if u.String() != tt.want {
			t.Errorf("parseBaseURL(%q) = %s, want %s", tt.in, u, tt.want)
		}
	}
}
