package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/seliga/canopy/internal/arbor"
	"github.com/seliga/canopy/internal/store"
	"github.com/seliga/canopy/internal/stream"
)

// API is the slice of the Arbor client the center needs.
type API interface {
	ListNotifications(ctx context.Context, params arbor.ListParams) (arbor.Page[arbor.Notification], error)
	MarkNotificationRead(ctx context.Context, id string) (*arbor.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
}

// EventSource is a single-use push channel; satisfied by *stream.Subscriber.
type EventSource interface {
	Run(ctx context.Context) error
	Events() <-chan stream.Event
}

const (
	defaultPollInterval = 30 * time.Second
	maxPollBackoff      = 5 * time.Minute
)

// Config assembles a Center.
type Config struct {
	API API
	// NewSource builds a fresh push subscriber. Nil disables push entirely
	// and the center polls from the start.
	NewSource func() EventSource
	// PollEvery is the fallback polling cadence; zero uses 30s.
	PollEvery time.Duration
}

// Center owns the notifications mirror and the unread count. Updates arrive
// over the push channel while it holds, and by polling the lightweight
// unread-count endpoint once it does not.
type Center struct {
	api       API
	newSource func() EventSource
	pollEvery time.Duration

	store *store.Store[arbor.Notification]

	mu     sync.Mutex
	unread int
	subs   []func()
}

// NewCenter builds a Center around cfg.API.
func NewCenter(cfg Config) *Center {
	c := &Center{
		api:       cfg.API,
		newSource: cfg.NewSource,
		pollEvery: cfg.PollEvery,
	}
	if c.pollEvery <= 0 {
		c.pollEvery = defaultPollInterval
	}
	c.store = store.New(store.Config[arbor.Notification]{
		Funcs: store.Funcs[arbor.Notification]{
			List: func(ctx context.Context, params store.Params) (store.Mirror[arbor.Notification], error) {
				lp, _ := params.(arbor.ListParams)
				page, err := c.api.ListNotifications(ctx, lp)
				if err != nil {
					return store.Mirror[arbor.Notification]{}, err
				}
				return store.Mirror[arbor.Notification]{
					Items:   page.Items,
					Total:   page.Total,
					Page:    page.Page,
					PerPage: page.PerPage,
				}, nil
			},
			Update: func(ctx context.Context, id string, patch map[string]any) (arbor.Notification, error) {
				rec, err := c.api.MarkNotificationRead(ctx, id)
				if err != nil {
					return arbor.Notification{}, err
				}
				return *rec, nil
			},
		},
	})
	return c
}

// Store exposes the notifications mirror for rendering.
func (c *Center) Store() *store.Store[arbor.Notification] {
	return c.store
}

// Unread returns the current unread count.
func (c *Center) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// Subscribe registers fn to run after unread-count changes. Mirror changes
// are observed through Store().Subscribe.
func (c *Center) Subscribe(fn func()) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// Run keeps the center fed until ctx is cancelled. The push channel is
// consumed while it lives; when it fails (to connect, mid-stream, or via an
// explicit error event) it is torn down completely before the polling loop
// starts, so an update can never be delivered over both paths.
func (c *Center) Run(ctx context.Context) {
	if c.newSource != nil {
		err := c.consumeStream(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("notify: push channel failed: %v; falling back to polling", err)
	}
	c.poll(ctx)
}

func (c *Center) consumeStream(ctx context.Context) error {
	src := c.newSource()

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- src.Run(streamCtx) }()

	var cause error
	for ev := range src.Events() {
		if ev.Name == "error" {
			cause = fmt.Errorf("stream reported error: %s", ev.Data)
			cancel()
			continue // drain remaining events until Run closes the channel
		}
		c.handleEvent(ev)
	}

	err := <-runErr
	switch {
	case cause != nil:
		return cause
	case err != nil:
		return err
	default:
		return fmt.Errorf("stream ended")
	}
}

type initPayload struct {
	Items  []arbor.Notification `json:"items"`
	Total  int                  `json:"total"`
	Unread int                  `json:"unread"`
}

type countPayload struct {
	Count int `json:"count"`
}

func (c *Center) handleEvent(ev stream.Event) {
	switch ev.Name {
	case "init":
		var payload initPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			log.Printf("notify: bad init payload: %v", err)
			return
		}
		c.store.ReplaceAll(store.Mirror[arbor.Notification]{
			Items: payload.Items,
			Total: payload.Total,
		})
		c.setUnread(payload.Unread)
	case "new_item":
		var n arbor.Notification
		if err := json.Unmarshal(ev.Data, &n); err != nil {
			log.Printf("notify: bad new_item payload: %v", err)
			return
		}
		c.store.Upsert(n)
		if !n.Read {
			c.adjustUnread(+1)
		}
	case "item_updated":
		var n arbor.Notification
		if err := json.Unmarshal(ev.Data, &n); err != nil {
			log.Printf("notify: bad item_updated payload: %v", err)
			return
		}
		// Adjust the unread count when the update flips read state.
		if prev, ok := c.lookup(n.ID); ok && prev.Read != n.Read {
			if n.Read {
				c.adjustUnread(-1)
			} else {
				c.adjustUnread(+1)
			}
		}
		c.store.Upsert(n)
	case "count_update":
		var payload countPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			log.Printf("notify: bad count_update payload: %v", err)
			return
		}
		c.setUnread(payload.Count)
	default:
		log.Printf("notify: ignoring unknown event %q", ev.Name)
	}
}

// poll fetches the unread count at a fixed cadence, backing off while the
// endpoint keeps failing.
func (c *Center) poll(ctx context.Context) {
	failures := 0
	for {
		count, err := c.api.UnreadCount(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			log.Printf("notify: unread poll failed: %v", err)
		} else {
			failures = 0
			c.setUnread(count)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(calculateBackoff(failures, c.pollEvery)):
		}
	}
}

// MarkRead marks one notification read, optimistically. A second call while
// one is in flight for the same id returns store.ErrAlreadyRunning without
// a network call.
func (c *Center) MarkRead(ctx context.Context, id string) error {
	release, err := c.store.Guard(id)
	if err != nil {
		return err
	}
	defer release()

	prev, known := c.lookup(id)
	if _, err := c.store.Mutate(ctx, id, map[string]any{"read": true}); err != nil {
		return err
	}
	if known && !prev.Read {
		c.adjustUnread(-1)
	}
	return nil
}

// MarkAllRead marks every unread mirrored notification, all in flight
// together; one failure does not stop the rest.
func (c *Center) MarkAllRead(ctx context.Context) store.BatchResult {
	var ids []string
	for _, n := range c.store.Snapshot().Items {
		if !n.Read {
			ids = append(ids, n.ID)
		}
	}
	return c.store.MutateEach(ctx, ids, func(ctx context.Context, id string) error {
		return c.MarkRead(ctx, id)
	})
}

func (c *Center) lookup(id string) (arbor.Notification, bool) {
	for _, n := range c.store.Snapshot().Items {
		if n.ID == id {
			return n, true
		}
	}
	return arbor.Notification{}, false
}

func (c *Center) setUnread(n int) {
	c.mu.Lock()
	changed := c.unread != n
	c.unread = n
	subs := append([]func(){}, c.subs...)
	c.mu.Unlock()
	if changed {
		for _, fn := range subs {
			fn()
		}
	}
}

// adjustUnread applies a relative change to the counter. The read, clamp,
// and write happen under one lock so concurrent decrements from a mark-all
// fan-out never lose updates.
func (c *Center) adjustUnread(delta int) {
	c.mu.Lock()
	n := c.unread + delta
	if n < 0 {
		n = 0
	}
	changed := c.unread != n
	c.unread = n
	subs := append([]func(){}, c.subs...)
	c.mu.Unlock()
	if changed {
		for _, fn := range subs {
			fn()
		}
	}
}

// calculateBackoff doubles the base interval per consecutive failure, up to
// maxPollBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= maxPollBackoff {
			return maxPollBackoff
		}
	}
	return backoff
}
