package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/seliga/canopy/internal/cache"
)

var (
	// ErrSuperseded reports that a list fetch was overtaken by a newer one
	// (or its context was cancelled). It is a benign outcome: the mirror and
	// the error slot are untouched.
	ErrSuperseded = errors.New("store: request superseded")

	// ErrAlreadyRunning reports a rejected reentrant operation. It is a
	// defined refusal, not a failure; no network call was made.
	ErrAlreadyRunning = errors.New("store: operation already in progress")

	// ErrNotFound reports that the target record is not in the mirror.
	ErrNotFound = errors.New("store: record not in mirror")
)

// Record is any server-owned entity with a stable string identity.
type Record interface {
	RecordID() string
}

// Params is an opaque query shape. Key must be stable for equal params,
// since it participates in cache keys.
type Params interface {
	Key() string
}

// Mirror is the client-local ordered copy of one listing: the last
// successful fetch, possibly overlaid with unconfirmed optimistic changes.
type Mirror[R Record] struct {
	Items   []R
	Total   int
	Page    int
	PerPage int
}

// Funcs binds a Store to its domain's transport calls. List is required;
// the rest may be nil when the domain has no such operation.
type Funcs[R Record] struct {
	List   func(ctx context.Context, params Params) (Mirror[R], error)
	Get    func(ctx context.Context, id string, params Params) (R, error)
	Update func(ctx context.Context, id string, patch map[string]any) (R, error)
	Delete func(ctx context.Context, id string) error
}

// Config assembles a Store.
type Config[R Record] struct {
	Funcs Funcs[R]

	// Cache backs FetchOne. Nil disables single-record caching. The
	// repository must be private to this store (InvalidateAll flushes it).
	Cache cache.Repository
	TTL   time.Duration

	// OnReplace, when set, is invoked with a snapshot after each successful
	// list fetch, for derived indices (favorite-id sets and the like).
	OnReplace func(m Mirror[R])
}

// Store owns one domain's mirror and keeps it consistent with the server
// under concurrent reads and writes. All methods are safe for concurrent
// use; mirror mutations never interleave mid-update.
type Store[R Record] struct {
	cfg Config[R]

	mu         sync.Mutex
	mirror     Mirror[R]
	err        error
	loading    bool
	generation uint64
	cancelList context.CancelFunc
	pending    map[string]struct{}
	subs       map[int]func()
	nextSub    int
}

// New returns an empty Store for one domain.
func New[R Record](cfg Config[R]) *Store[R] {
	return &Store[R]{
		cfg:     cfg,
		pending: make(map[string]struct{}),
		subs:    make(map[int]func()),
	}
}

// Snapshot returns a copy of the mirror safe to hand to renderers.
func (s *Store[R]) Snapshot() Mirror[R] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMirror(s.mirror)
}

// Err returns the error slot: the last read or write failure, nil after the
// last operation succeeded. Superseded fetches never set it.
func (s *Store[R]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Loading reports whether a list fetch is in flight.
func (s *Store[R]) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Subscribe registers fn to run after every committed mirror change. The
// returned function removes the subscription.
func (s *Store[R]) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// FetchList fetches one page of the listing, superseding any list fetch
// still in flight for this store. Only the most recently issued fetch may
// replace the mirror; overtaken fetches return ErrSuperseded without side
// effects. Failures leave the mirror intact, set the error slot, and are
// returned.
func (s *Store[R]) FetchList(ctx context.Context, params Params) error {
	s.mu.Lock()
	if s.cancelList != nil {
		s.cancelList()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancelList = cancel
	s.generation++
	gen := s.generation
	s.loading = true
	s.mu.Unlock()

	result, err := s.cfg.Funcs.List(ctx, params)

	s.mu.Lock()
	if gen != s.generation {
		// A newer fetch owns the mirror and the loading flag now.
		s.mu.Unlock()
		cancel()
		return ErrSuperseded
	}
	s.loading = false
	s.cancelList = nil
	if err != nil {
		benign := errors.Is(err, context.Canceled)
		if !benign {
			s.err = err
		}
		s.mu.Unlock()
		cancel()
		if benign {
			return ErrSuperseded
		}
		return err
	}
	s.mirror = cloneMirror(result)
	s.err = nil
	onReplace := s.cfg.OnReplace
	var replaced Mirror[R]
	if onReplace != nil {
		replaced = cloneMirror(s.mirror)
	}
	s.mu.Unlock()
	cancel()

	if onReplace != nil {
		onReplace(replaced)
	}
	s.notify()
	return nil
}

// GetOptions tune FetchOne.
type GetOptions struct {
	// SkipCache forces a network fetch even when a fresh entry exists.
	SkipCache bool
	// Params parameterize the read; they become part of the cache key.
	Params Params
}

// FetchOne returns one record, served from the cache while its TTL holds.
// Concurrent calls for the same id are not de-duplicated; each cache miss
// issues its own request.
func (s *Store[R]) FetchOne(ctx context.Context, id string, opts GetOptions) (R, error) {
	var zero R
	if s.cfg.Funcs.Get == nil {
		return zero, fmt.Errorf("store: no get operation for this domain")
	}

	key := id
	if opts.Params != nil {
		if pk := opts.Params.Key(); pk != "" {
			key = id + "?" + pk
		}
	}

	if s.cfg.Cache != nil && !opts.SkipCache {
		if raw, ok := s.cfg.Cache.Get(ctx, key); ok {
			var rec R
			if err := json.Unmarshal(raw, &rec); err == nil {
				return rec, nil
			}
			// Undecodable entries are dropped and refetched.
			s.cfg.Cache.Delete(ctx, key)
		}
	}

	rec, err := s.cfg.Funcs.Get(ctx, id, opts.Params)
	if err != nil {
		s.setErr(err)
		return zero, err
	}
	if s.cfg.Cache != nil {
		if raw, err := json.Marshal(rec); err == nil {
			s.cfg.Cache.Set(ctx, key, raw, s.cfg.TTL)
		}
	}
	return rec, nil
}

// Mutate applies patch to the mirrored record immediately, then confirms it
// with the server. On success the server's response replaces the guess; on
// failure the exact pre-mutation record is restored. The mirror is never
// left in a partial state.
func (s *Store[R]) Mutate(ctx context.Context, id string, patch map[string]any) (R, error) {
	var zero R
	if s.cfg.Funcs.Update == nil {
		return zero, fmt.Errorf("store: no update operation for this domain")
	}

	s.mu.Lock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return zero, fmt.Errorf("mutate %s: %w", id, ErrNotFound)
	}
	before := s.mirror.Items[idx]
	guess, err := applyPatch(before, patch)
	if err != nil {
		s.mu.Unlock()
		return zero, fmt.Errorf("mutate %s: %w", id, err)
	}
	s.mirror.Items[idx] = guess
	s.mu.Unlock()
	s.notify()

	rec, err := s.cfg.Funcs.Update(ctx, id, patch)

	s.mu.Lock()
	if err != nil {
		if idx := s.indexOfLocked(id); idx >= 0 {
			s.mirror.Items[idx] = before
		}
		s.err = err
		s.mu.Unlock()
		s.notify()
		return zero, err
	}
	if idx := s.indexOfLocked(id); idx >= 0 {
		s.mirror.Items[idx] = rec
	}
	s.err = nil
	s.mu.Unlock()
	s.notify()

	// The authoritative record changed; a cached single-record read is stale.
	s.Invalidate(ctx, id)
	return rec, nil
}

// Remove deletes the record optimistically. Ordering and total revert as a
// whole if the server rejects the delete.
func (s *Store[R]) Remove(ctx context.Context, id string) error {
	if s.cfg.Funcs.Delete == nil {
		return fmt.Errorf("store: no delete operation for this domain")
	}

	s.mu.Lock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	before := cloneMirror(s.mirror)
	s.mirror.Items = append(s.mirror.Items[:idx:idx], s.mirror.Items[idx+1:]...)
	if s.mirror.Total > 0 {
		s.mirror.Total--
	}
	s.mu.Unlock()
	s.notify()

	err := s.cfg.Funcs.Delete(ctx, id)

	s.mu.Lock()
	if err != nil {
		s.mirror = before
		s.err = err
		s.mu.Unlock()
		s.notify()
		return err
	}
	s.err = nil
	s.mu.Unlock()
	s.notify()

	s.Invalidate(ctx, id)
	return nil
}

// BatchResult partitions a batch's ids by outcome, in input order.
type BatchResult struct {
	Succeeded []string
	Failed    []string
}

// MutateEach runs op once per id, all in flight together, and waits for
// every one to settle. One id's failure never cancels the others, and the
// batch itself never fails; per-id mirror consistency follows the
// single-item rules of whatever op does.
func (s *Store[R]) MutateEach(ctx context.Context, ids []string, op func(ctx context.Context, id string) error) BatchResult {
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = op(ctx, id)
		}(i, id)
	}
	wg.Wait()

	var result BatchResult
	for i, id := range ids {
		if errs[i] != nil {
			result.Failed = append(result.Failed, id)
		} else {
			result.Succeeded = append(result.Succeeded, id)
		}
	}
	return result
}

// Guard claims id for an exclusive in-flight operation. It returns
// ErrAlreadyRunning while a previous claim is outstanding; otherwise the
// returned release must be called on every exit path (it is safe to call
// more than once).
func (s *Store[R]) Guard(id string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.pending[id]; busy {
		return nil, ErrAlreadyRunning
	}
	s.pending[id] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.pending, id)
			s.mu.Unlock()
		})
	}, nil
}

// InFlight reports whether id is currently claimed by Guard.
func (s *Store[R]) InFlight(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.pending[id]
	return busy
}

// Upsert applies an out-of-band record from the push channel: an existing
// entry is replaced in place, a new one is inserted at the head and counted
// into the total.
func (s *Store[R]) Upsert(rec R) {
	s.mu.Lock()
	if idx := s.indexOfLocked(rec.RecordID()); idx >= 0 {
		s.mirror.Items[idx] = rec
	} else {
		s.mirror.Items = append([]R{rec}, s.mirror.Items...)
		s.mirror.Total++
	}
	s.mu.Unlock()
	s.notify()
}

// ReplaceAll replaces the whole mirror from a push-channel snapshot. Unlike
// FetchList it takes no part in request supersession; the push channel is
// its own ordering domain.
func (s *Store[R]) ReplaceAll(m Mirror[R]) {
	s.mu.Lock()
	s.mirror = cloneMirror(m)
	s.mu.Unlock()
	s.notify()
}

// Invalidate drops the cached read for one id (all parameterizations share
// the bare-id key; parameterized keys expire on their own TTL).
func (s *Store[R]) Invalidate(ctx context.Context, id string) {
	if s.cfg.Cache != nil {
		s.cfg.Cache.Delete(ctx, id)
	}
}

// InvalidateAll clears the store's entire read cache.
func (s *Store[R]) InvalidateAll(ctx context.Context) {
	if s.cfg.Cache != nil {
		s.cfg.Cache.Flush(ctx)
	}
}

// Reset returns the store to its initial state: mirror, error slot, pending
// set, and cache are all cleared, and any in-flight list fetch is
// abandoned. Used on logout and view teardown.
func (s *Store[R]) Reset(ctx context.Context) {
	s.mu.Lock()
	if s.cancelList != nil {
		s.cancelList()
		s.cancelList = nil
	}
	s.generation++
	s.mirror = Mirror[R]{}
	s.err = nil
	s.loading = false
	s.pending = make(map[string]struct{})
	s.mu.Unlock()
	s.InvalidateAll(ctx)
	s.notify()
}

func (s *Store[R]) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Store[R]) indexOfLocked(id string) int {
	for i := range s.mirror.Items {
		if s.mirror.Items[i].RecordID() == id {
			return i
		}
	}
	return -1
}

func (s *Store[R]) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func cloneMirror[R Record](m Mirror[R]) Mirror[R] {
	dup := m
	if len(m.Items) > 0 {
		dup.Items = make([]R, len(m.Items))
		copy(dup.Items, m.Items)
	} else {
		dup.Items = nil
	}
	return dup
}

// applyPatch overlays wire-level patch fields onto a record by JSON
// round-trip, producing the client's optimistic guess. Patch keys must be
// the record's JSON field names; unknown keys are ignored by decoding.
func applyPatch[R Record](rec R, patch map[string]any) (R, error) {
	var zero R
	raw, err := json.Marshal(rec)
	if err != nil {
		return zero, fmt.Errorf("encode record: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return zero, fmt.Errorf("decode record: %w", err)
	}
	for k, v := range patch {
		fields[k] = v
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return zero, fmt.Errorf("encode patched record: %w", err)
	}
	var out R
	if err := json.Unmarshal(merged, &out); err != nil {
		return zero, fmt.Errorf("decode patched record: %w", err)
	}
	return out, nil
}
