package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and fetchers return these
// (optionally wrapped) so the coordinator and services can branch on them
// without inspecting messages.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entry absent (or stale, for TTL-bounded caches)
// - ErrUnavailable: backend temporarily unreachable (circuit open, timeout)
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
)
