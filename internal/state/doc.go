// Package state bundles the per-domain stores the Canopy console runs on.
//
// NewStores instantiates one store per Arbor collection — entities, facet
// values, summaries, crawl sources, usage — plus the notification center,
// and wires each to its transport functions and read cache. The bundle is
// shared between the composition root, which hydrates and resets it, and
// the UI, which reads snapshots and subscribes for change signals.
//
// The guarded operations (ToggleFavorite, ExecuteSummary, CheckSource)
// live here rather than in the UI so that reentry protection and the
// favorites index stay consistent no matter who invokes them.
package state
