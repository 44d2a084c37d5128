// Package arbor implements the HTTP client for the Arbor admin API.
//
// The client is a thin, typed wrapper: every method issues one request and
// decodes either a bare record or the standard list envelope
// {items, total, page, per_page}. It holds no state beyond the base URL,
// the HTTP client, and a token source; caching, optimistic updates, and
// request supersession all live in the store layer on top of it.
//
// Non-2xx responses surface as *APIError with the status and (truncated)
// body. Context cancellation passes through wrapped but classifiable, so
// callers can separate "superseded" from "failed" with errors.Is.
package arbor
