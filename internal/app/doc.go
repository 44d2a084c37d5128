// Package app is the composition root for the Canopy console.
//
// # Overview
//
// Run wires configuration, the Arbor HTTP client, the per-domain stores,
// the notification center, and the UI, then blocks until the context
// cancels. Business logic lives in the domain packages (arbor, store,
// notify, cache); app only connects them.
//
// # Startup sequence
//
//  1. Load ~/.config/canopy/config.toml and the user preferences
//  2. Build the Arbor client, with a static bearer token when configured
//  3. Pick the cache backend: Redis when redis_url is set, memory otherwise
//  4. Construct the state.Stores bundle, one store per domain
//  5. Start the notification center (stream first, polling fallback)
//  6. Hydrate every listing concurrently, then hand the terminal to the UI
//
// # Error handling
//
// Fatal (returned from Run): unreadable config, bad api_base. Recoverable
// (logged, the app keeps running): failed hydration fetches, an
// unreachable Redis, a dropped notification stream.
package app
