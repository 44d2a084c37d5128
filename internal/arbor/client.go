package arbor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// API defines the Arbor admin operations the console uses. Implemented by
// *Client; fakes implement it in tests.
type API interface {
	ListEntities(ctx context.Context, params ListParams) (Page[Entity], error)
	GetEntity(ctx context.Context, id string) (*Entity, error)
	ToggleFavorite(ctx context.Context, id string) (*Entity, error)

	ListFacetValues(ctx context.Context, params ListParams) (Page[FacetValue], error)
	UpdateFacetValue(ctx context.Context, id string, patch map[string]any) (*FacetValue, error)
	DeleteFacetValue(ctx context.Context, id string) error

	ListSummaries(ctx context.Context, params ListParams) (Page[Summary], error)
	GetSummary(ctx context.Context, id string, params ListParams) (*Summary, error)
	ExecuteSummary(ctx context.Context, id string) (*Summary, error)

	ListSources(ctx context.Context, params ListParams) (Page[Source], error)
	UpdateSource(ctx context.Context, id string, patch map[string]any) (*Source, error)
	CheckSource(ctx context.Context, id string) (*Source, error)

	ListNotifications(ctx context.Context, params ListParams) (Page[Notification], error)
	MarkNotificationRead(ctx context.Context, id string) (*Notification, error)
	UnreadCount(ctx context.Context) (int, error)

	ListUsage(ctx context.Context, params ListParams) (Page[UsageStat], error)
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)

// APIError captures a non-2xx response with its body for diagnosis.
type APIError struct {
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("arbor: status %d: %s", e.Status, bytes.TrimSpace(e.Body))
}

// ListParams carries filter/sort/pagination for collection endpoints. The
// zero value requests the server's defaults.
type ListParams struct {
	Page    int
	PerPage int
	Search  string
	Sort    string
	Filter  map[string]string
}

// Values renders the params as a query string, with filter keys sorted so the
// same params always serialize identically (cache keys depend on this).
func (p ListParams) Values() url.Values {
	values := url.Values{}
	if p.Page > 0 {
		values.Set("page", strconv.Itoa(p.Page))
	}
	if p.PerPage > 0 {
		values.Set("per_page", strconv.Itoa(p.PerPage))
	}
	if s := strings.TrimSpace(p.Search); s != "" {
		values.Set("search", s)
	}
	if s := strings.TrimSpace(p.Sort); s != "" {
		values.Set("sort", s)
	}
	keys := make([]string, 0, len(p.Filter))
	for k := range p.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values.Set(k, p.Filter[k])
	}
	return values
}

// Key returns a stable string form of the params for use in cache keys.
func (p ListParams) Key() string {
	return p.Values().Encode()
}

// Client talks to the Arbor admin HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	tokens    oauth2.TokenSource
	userAgent string
}

const (
	defaultUserAgent = "canopy/0.1"
	requestTimeout   = 15 * time.Second
)

// NewClient builds a Client for the given base URL. tokens may be nil for an
// unauthenticated Arbor instance.
func NewClient(baseURL string, tokens oauth2.TokenSource) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		tokens:    tokens,
		userAgent: defaultUserAgent,
	}, nil
}

func (c *Client) ListEntities(ctx context.Context, params ListParams) (Page[Entity], error) {
	return list[Entity](ctx, c, "/api/entities", params)
}

func (c *Client) GetEntity(ctx context.Context, id string) (*Entity, error) {
	return get[Entity](ctx, c, "/api/entities/"+url.PathEscape(id), nil)
}

func (c *Client) ToggleFavorite(ctx context.Context, id string) (*Entity, error) {
	return write[Entity](ctx, c, http.MethodPost, "/api/entities/"+url.PathEscape(id)+"/favorite", nil)
}

func (c *Client) ListFacetValues(ctx context.Context, params ListParams) (Page[FacetValue], error) {
	return list[FacetValue](ctx, c, "/api/facet_values", params)
}

func (c *Client) UpdateFacetValue(ctx context.Context, id string, patch map[string]any) (*FacetValue, error) {
	return write[FacetValue](ctx, c, http.MethodPatch, "/api/facet_values/"+url.PathEscape(id), patch)
}

func (c *Client) DeleteFacetValue(ctx context.Context, id string) error {
	rel := &url.URL{Path: "/api/facet_values/" + url.PathEscape(id)}
	return c.do(ctx, http.MethodDelete, rel, nil, nil)
}

func (c *Client) ListSummaries(ctx context.Context, params ListParams) (Page[Summary], error) {
	return list[Summary](ctx, c, "/api/summaries", params)
}

func (c *Client) GetSummary(ctx context.Context, id string, params ListParams) (*Summary, error) {
	return get[Summary](ctx, c, "/api/summaries/"+url.PathEscape(id), params.Values())
}

func (c *Client) ExecuteSummary(ctx context.Context, id string) (*Summary, error) {
	return write[Summary](ctx, c, http.MethodPost, "/api/summaries/"+url.PathEscape(id)+"/execute", nil)
}

func (c *Client) ListSources(ctx context.Context, params ListParams) (Page[Source], error) {
	return list[Source](ctx, c, "/api/sources", params)
}

func (c *Client) UpdateSource(ctx context.Context, id string, patch map[string]any) (*Source, error) {
	return write[Source](ctx, c, http.MethodPatch, "/api/sources/"+url.PathEscape(id), patch)
}

func (c *Client) CheckSource(ctx context.Context, id string) (*Source, error) {
	return write[Source](ctx, c, http.MethodPost, "/api/sources/"+url.PathEscape(id)+"/check", nil)
}

func (c *Client) ListNotifications(ctx context.Context, params ListParams) (Page[Notification], error) {
	return list[Notification](ctx, c, "/api/notifications", params)
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) (*Notification, error) {
	return write[Notification](ctx, c, http.MethodPost, "/api/notifications/"+url.PathEscape(id)+"/read", nil)
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var payload UnreadCountResponse
	rel := &url.URL{Path: "/api/notifications/unread_count"}
	if err := c.do(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return 0, err
	}
	return payload.Count, nil
}

func (c *Client) ListUsage(ctx context.Context, params ListParams) (Page[UsageStat], error) {
	return list[UsageStat](ctx, c, "/api/usage", params)
}

// StreamRequest builds an authenticated request for the notifications event
// stream; the stream package owns the response lifecycle.
func (c *Client) StreamRequest(ctx context.Context) (*http.Request, error) {
	rel := &url.URL{Path: "/api/notifications/stream"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.ResolveReference(rel).String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", c.userAgent)
	if err := c.authorize(req); err != nil {
		return nil, err
	}
	return req, nil
}

func list[T any](ctx context.Context, c *Client, path string, params ListParams) (Page[T], error) {
	rel := &url.URL{Path: path, RawQuery: params.Values().Encode()}
	var payload Page[T]
	if err := c.do(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return Page[T]{}, err
	}
	return payload, nil
}

func get[T any](ctx context.Context, c *Client, path string, query url.Values) (*T, error) {
	rel := &url.URL{Path: path, RawQuery: query.Encode()}
	var payload T
	if err := c.do(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func write[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	rel := &url.URL{Path: path}
	var payload T
	if err := c.do(ctx, method, rel, body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) do(ctx context.Context, method string, rel *url.URL, body, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(req); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Context cancellation must stay classifiable with errors.Is after
		// wrapping; *url.Error unwraps to the context error.
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: data}
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) error {
	if c.tokens == nil {
		return nil
	}
	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("fetch access token: %w", err)
	}
	token.SetAuthHeader(req)
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("api base url is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api base %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
