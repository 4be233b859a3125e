// Package remote provides a resilient access layer for a rate-limited,
// intermittently reachable REST API.
//
// This package offers:
//   - Fault classification (network, rate limit, secondary rate limit)
//   - Response caching with stale fallback
//   - Primary rate limit tracking and a shared abuse cooldown
//   - Per-fault exponential retry
//   - Deferred operations replayed when connectivity returns
//
// # Quick Start
//
//	import "github.com/vietddude/reqtrack/internal/infra/remote"
//
//	gh := github.NewClient(github.Config{Token: token})
//	monitor := probe.NewMonitor(probe.NewHTTPProber(5*time.Second, "reqtrack"), probe.Config{})
//	c := remote.New(remote.Config{}, remote.Deps{Monitor: monitor})
//	monitor.Start(ctx)
//
//	issues, res, err := remote.Do[*github.Response](ctx, c, remote.Operation{
//	    Kind:   "issues",
//	    Invoke: gh.Invoker(http.MethodGet, "/repos/acme/widgets/issues", nil),
//	}, remote.Options{CacheKey: "issues:acme/widgets", CacheDuration: 5 * time.Minute})
//
// # Package Structure
//
//   - fault/   - Fault type, classifier, classified Error
//   - cache/   - Generic response cache
//   - quota/   - Rate limit guard and cooldown stores
//   - probe/   - Connectivity monitor and probers
//   - retry/   - Backoff schedule and retry executor
//   - queue/   - Deferred operation queue
//   - github/  - REST transport
//
// Most types are re-exported at the root level for convenience.
package remote

import (
	"github.com/vietddude/reqtrack/internal/core/domain"
	"github.com/vietddude/reqtrack/internal/infra/remote/fault"
)

// =============================================================================
// Re-exported types from fault package
// =============================================================================

// Fault is a failed call as reported by a transport.
type Fault = fault.Fault

// Error is a classified failure surfaced to callers.
type Error = fault.Error

// ErrCanceled is returned when the caller's context ends.
var ErrCanceled = fault.ErrCanceled

// Classify maps an error to one fault label.
var Classify = fault.Classify

// =============================================================================
// Re-exported priorities
// =============================================================================

const (
	PriorityLow    = domain.PriorityLow
	PriorityMedium = domain.PriorityMedium
	PriorityHigh   = domain.PriorityHigh
)
