package cache

import (
	"context"
	"sync"
	"time"
)

// Repository is a minimal key/value byte cache with per-entry TTL.
// Backed by an in-memory map by default; a Redis backend is available for
// deployments that share a cache across console instances.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Flush(ctx context.Context)
}

type memoryEntry struct {
	value    []byte
	expireAt time.Time // zero => no TTL
}

// Memory is an in-process Repository. Expiry is checked lazily on read;
// there is no background sweeper.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the value for key if present and not expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !entry.expireAt.IsZero() && !m.now().Before(entry.expireAt) {
		// Expired entries are treated as absent and dropped on the way out.
		m.mu.Lock()
		if cur, still := m.entries[key]; still && cur.expireAt.Equal(entry.expireAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key. A non-positive ttl stores the entry without
// expiry.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expireAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
}

// Delete removes key. Removing an absent key is a no-op.
func (m *Memory) Delete(_ context.Context, key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// Flush drops every entry.
func (m *Memory) Flush(_ context.Context) {
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
}

// SetClockForTest overrides the time source used for expiry checks.
func (m *Memory) SetClockForTest(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

var _ Repository = (*Memory)(nil)
