package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.Set(ctx, "foo", []byte("bar"), time.Hour)
	val, ok := m.Get(ctx, "foo")
	if !ok {
		t.Fatal("expected foo to be present")
	}
	if string(val) != "bar" {
		t.Fatalf("got %q, want bar", val)
	}

	m.Delete(ctx, "foo")
	if _, ok := m.Get(ctx, "foo"); ok {
		t.Fatal("expected foo to be deleted")
	}

	// Deleting an absent key is fine.
	m.Delete(ctx, "missing")
}

func TestMemory_LazyExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	now := time.Unix(1000, 0)
	m.SetClockForTest(func() time.Time { return now })

	m.Set(ctx, "e1", []byte("v"), 30*time.Second)

	now = now.Add(10 * time.Second)
	if _, ok := m.Get(ctx, "e1"); !ok {
		t.Fatal("entry expired before its TTL")
	}

	now = now.Add(21 * time.Second) // t=31s
	if _, ok := m.Get(ctx, "e1"); ok {
		t.Fatal("entry still present after TTL")
	}

	// The expired entry should have been dropped, not just hidden.
	m.mu.RLock()
	_, still := m.entries["e1"]
	m.mu.RUnlock()
	if still {
		t.Fatal("expired entry not removed on read")
	}
}

func TestMemory_ZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	now := time.Unix(1000, 0)
	m.SetClockForTest(func() time.Time { return now })

	m.Set(ctx, "pin", []byte("v"), 0)
	now = now.Add(1000 * time.Hour)
	if _, ok := m.Get(ctx, "pin"); !ok {
		t.Fatal("zero-TTL entry should not expire")
	}
}

func TestMemory_Flush(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.Set(ctx, "a", []byte("1"), time.Hour)
	m.Set(ctx, "b", []byte("2"), time.Hour)
	m.Flush(ctx)

	if _, ok := m.Get(ctx, "a"); ok {
		t.Fatal("a survived flush")
	}
	if _, ok := m.Get(ctx, "b"); ok {
		t.Fatal("b survived flush")
	}
}
