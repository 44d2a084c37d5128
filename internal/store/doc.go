// Package store implements the client-state primitive behind every listing
// in the console: a per-domain mirror of server-owned records kept
// consistent under concurrent reads and writes.
//
// # Overview
//
// A Store[R] owns one domain's Mirror (items, total, page, per-page) and
// funnels every change through its own methods. The UI reads snapshots and
// subscribes for change notification; it never mutates store state
// directly. One Store is instantiated per domain (entities, facet values,
// summaries, sources, notifications) over the same generic machinery, so
// the caching / optimistic-update / guard behavior cannot drift between
// domains.
//
// # Contracts
//
// FetchList: issuing a new fetch supersedes the previous in-flight one —
// the old request's context is cancelled and its result, should it still
// arrive, is discarded without touching the mirror or the error slot
// (ErrSuperseded). Only the most recently issued fetch may replace the
// mirror, regardless of response arrival order.
//
// FetchOne: single-record reads go through a TTL byte cache. A fresh cache
// entry short-circuits the network entirely; expiry is lazy, checked at
// read time by the cache backend. Concurrent misses for the same id each
// fetch on their own (accepted limitation, absorbed in practice by the
// cache).
//
// Mutate / Remove: optimistic. The local change lands in the mirror within
// the calling tick; the network call then either commits the server's
// authoritative record (server wins, even where it disagrees with the
// guess) or restores the exact pre-mutation state. Remove snapshots the
// whole mirror so ordering and total revert together. The end state is
// always server-consistent or fully rolled back, never a mix.
//
// MutateEach: all-settled parallel fan-out with a per-id success/failure
// partition. A failing id neither cancels nor blocks the rest.
//
// Guard: claims an id for an exclusive in-flight operation (favorite
// toggles, summary execution). A duplicate claim gets ErrAlreadyRunning and
// costs no network call; release runs on every exit path.
//
// # Error semantics
//
// Failures surface twice: returned to the caller for local handling, and
// recorded in the error slot for passive display. Superseded fetches and
// guard refusals are defined outcomes, not failures — they never set the
// error slot. Read failures leave the previous valid mirror intact; write
// failures always pair with the rollback of their own optimistic change,
// never a store-wide reset.
//
// # Concurrency
//
// One mutex guards all store state; mirror bookkeeping runs synchronously
// between network suspension points, so no two mutations interleave
// mid-update. Snapshots are defensive copies. Subscribers run outside the
// lock.
package store
