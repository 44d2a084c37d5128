package notify

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seliga/canopy/internal/arbor"
	"github.com/seliga/canopy/internal/store"
	"github.com/seliga/canopy/internal/stream"
)

type fakeAPI struct {
	unread      atomic.Int64
	unreadCalls atomic.Int64
	markErr     func(id string) error
	markBlock   chan struct{}
	markCalls   atomic.Int64
}

func (f *fakeAPI) ListNotifications(ctx context.Context, params arbor.ListParams) (arbor.Page[arbor.Notification], error) {
	return arbor.Page[arbor.Notification]{}, nil
}

func (f *fakeAPI) MarkNotificationRead(ctx context.Context, id string) (*arbor.Notification, error) {
	f.markCalls.Add(1)
	if f.markBlock != nil {
		<-f.markBlock
	}
	if f.markErr != nil {
		if err := f.markErr(id); err != nil {
			return nil, err
		}
	}
	return &arbor.Notification{ID: id, Read: true}, nil
}

func (f *fakeAPI) UnreadCount(ctx context.Context) (int, error) {
	f.unreadCalls.Add(1)
	return int(f.unread.Load()), nil
}

type fakeSource struct {
	events chan stream.Event
	fail   chan error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		events: make(chan stream.Event),
		fail:   make(chan error, 1),
	}
}

func (f *fakeSource) Run(ctx context.Context) error {
	var err error
	select {
	case <-ctx.Done():
	case err = <-f.fail:
	}
	close(f.events)
	return err
}

func (f *fakeSource) Events() <-chan stream.Event { return f.events }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestCenter_StreamEventsUpdateMirrorAndCount(t *testing.T) {
	api := &fakeAPI{}
	src := newFakeSource()
	c := NewCenter(Config{
		API:       api,
		NewSource: func() EventSource { return src },
		PollEvery: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	src.events <- stream.Event{Name: "init", Data: []byte(`{"items":[{"id":"n1","title":"one"}],"total":1,"unread":1}`)}
	waitFor(t, "init applied", func() bool { return c.Unread() == 1 })
	if snap := c.Store().Snapshot(); len(snap.Items) != 1 || snap.Items[0].ID != "n1" {
		t.Fatalf("mirror after init = %#v", snap.Items)
	}

	src.events <- stream.Event{Name: "new_item", Data: []byte(`{"id":"n2","title":"two"}`)}
	waitFor(t, "new_item applied", func() bool { return c.Unread() == 2 })
	if ids := snapshotIDs(c); !reflect.DeepEqual(ids, []string{"n2", "n1"}) {
		t.Fatalf("order = %v, want new item at head", ids)
	}

	src.events <- stream.Event{Name: "item_updated", Data: []byte(`{"id":"n2","title":"two","read":true}`)}
	waitFor(t, "read flip counted", func() bool { return c.Unread() == 1 })

	src.events <- stream.Event{Name: "count_update", Data: []byte(`{"count":9}`)}
	waitFor(t, "count_update applied", func() bool { return c.Unread() == 9 })

	cancel()
	<-done
}

func TestCenter_FallsBackToPollingOnStreamFailure(t *testing.T) {
	api := &fakeAPI{}
	api.unread.Store(7)
	src := newFakeSource()
	c := NewCenter(Config{
		API:       api,
		NewSource: func() EventSource { return src },
		PollEvery: 2 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	src.fail <- fmt.Errorf("connection reset")

	waitFor(t, "polling to pick up the count", func() bool { return c.Unread() == 7 })
	if api.unreadCalls.Load() == 0 {
		t.Fatal("polling never called the count endpoint")
	}

	cancel()
	<-done
}

func TestCenter_ErrorEventTriggersFallback(t *testing.T) {
	api := &fakeAPI{}
	api.unread.Store(3)
	src := newFakeSource()
	c := NewCenter(Config{
		API:       api,
		NewSource: func() EventSource { return src },
		PollEvery: 2 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	src.events <- stream.Event{Name: "error", Data: []byte(`{"message":"auth expired"}`)}

	waitFor(t, "fallback polling", func() bool { return c.Unread() == 3 })
	cancel()
	<-done
}

func TestCenter_NoSourceMeansPollingFromTheStart(t *testing.T) {
	api := &fakeAPI{}
	api.unread.Store(2)
	c := NewCenter(Config{API: api, PollEvery: 2 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	waitFor(t, "first poll", func() bool { return c.Unread() == 2 })
	cancel()
	<-done
}

func seedCenter(c *Center, items ...arbor.Notification) {
	c.Store().ReplaceAll(store.Mirror[arbor.Notification]{Items: items, Total: len(items)})
}

func TestCenter_MarkRead(t *testing.T) {
	api := &fakeAPI{}
	c := NewCenter(Config{API: api})
	seedCenter(c, arbor.Notification{ID: "n1"}, arbor.Notification{ID: "n2"})
	c.setUnread(2)

	if err := c.MarkRead(context.Background(), "n1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if got := c.Unread(); got != 1 {
		t.Fatalf("unread = %d, want 1", got)
	}
	snap := c.Store().Snapshot()
	if !snap.Items[0].Read {
		t.Fatalf("n1 not marked read in mirror: %#v", snap.Items[0])
	}
}

func TestCenter_MarkReadRollback(t *testing.T) {
	api := &fakeAPI{markErr: func(id string) error { return fmt.Errorf("nope") }}
	c := NewCenter(Config{API: api})
	seedCenter(c, arbor.Notification{ID: "n1", Title: "keep me"})
	c.setUnread(1)

	if err := c.MarkRead(context.Background(), "n1"); err == nil {
		t.Fatal("expected MarkRead to fail")
	}
	snap := c.Store().Snapshot()
	if snap.Items[0].Read {
		t.Fatal("failed mark-read left optimistic flag in mirror")
	}
	if snap.Items[0].Title != "keep me" {
		t.Fatalf("record not restored verbatim: %#v", snap.Items[0])
	}
	if got := c.Unread(); got != 1 {
		t.Fatalf("unread = %d, want unchanged 1", got)
	}
	if c.Store().Err() == nil {
		t.Fatal("error slot should be set")
	}
}

func TestCenter_MarkReadReentry(t *testing.T) {
	api := &fakeAPI{markBlock: make(chan struct{})}
	c := NewCenter(Config{API: api})
	seedCenter(c, arbor.Notification{ID: "n1"})

	first := make(chan error, 1)
	go func() { first <- c.MarkRead(context.Background(), "n1") }()
	waitFor(t, "first mark-read in flight", func() bool { return c.Store().InFlight("n1") })

	if err := c.MarkRead(context.Background(), "n1"); !errors.Is(err, store.ErrAlreadyRunning) {
		t.Fatalf("err = %v, want ErrAlreadyRunning", err)
	}
	if got := api.markCalls.Load(); got != 1 {
		t.Fatalf("network calls = %d, want 1", got)
	}

	close(api.markBlock)
	if err := <-first; err != nil {
		t.Fatalf("first MarkRead: %v", err)
	}
}

func TestCenter_MarkAllReadPartialFailure(t *testing.T) {
	api := &fakeAPI{markErr: func(id string) error {
		if id == "n2" {
			return fmt.Errorf("n2 rejected")
		}
		return nil
	}}
	c := NewCenter(Config{API: api})
	seedCenter(c,
		arbor.Notification{ID: "n1"},
		arbor.Notification{ID: "n2"},
		arbor.Notification{ID: "n3", Read: true},
	)

	result := c.MarkAllRead(context.Background())
	if !reflect.DeepEqual(result.Succeeded, []string{"n1"}) {
		t.Fatalf("succeeded = %v, want [n1]", result.Succeeded)
	}
	if !reflect.DeepEqual(result.Failed, []string{"n2"}) {
		t.Fatalf("failed = %v, want [n2]", result.Failed)
	}
}

func TestCenter_ConcurrentMarkReadsKeepCountExact(t *testing.T) {
	api := &fakeAPI{markBlock: make(chan struct{})}
	c := NewCenter(Config{API: api})

	const total = 32
	items := make([]arbor.Notification, total)
	for i := range items {
		items[i] = arbor.Notification{ID: fmt.Sprintf("n%d", i)}
	}
	seedCenter(c, items...)
	c.setUnread(total)

	var wg sync.WaitGroup
	errs := make(chan error, total)
	for _, n := range items {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			errs <- c.MarkRead(context.Background(), id)
		}(n.ID)
	}

	// Hold every call at the fake server until all are in flight, then
	// release them together so the decrements race.
	waitFor(t, "all mark-reads in flight", func() bool { return api.markCalls.Load() == total })
	close(api.markBlock)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("MarkRead: %v", err)
		}
	}
	if got := c.Unread(); got != 0 {
		t.Fatalf("unread = %d, want 0 after marking everything", got)
	}
}

func TestCalculateBackoff(t *testing.T) {
	base := 30 * time.Second
	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"no failures", 0, 30 * time.Second},
		{"negative", -2, 30 * time.Second},
		{"one failure", 1, time.Minute},
		{"two failures", 2, 2 * time.Minute},
		{"three failures", 3, 4 * time.Minute},
		{"four failures capped", 4, 5 * time.Minute},
		{"many failures capped", 12, 5 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calculateBackoff(tt.failures, base); got != tt.want {
				t.Errorf("calculateBackoff(%d) = %v, want %v", tt.failures, got, tt.want)
			}
		})
	}
}

func snapshotIDs(c *Center) []string {
	snap := c.Store().Snapshot()
	ids := make([]string, len(snap.Items))
	for i, n := range snap.Items {
		ids[i] = n.ID
	}
	return ids
}
