// Package retry provides bounded retry with exponential backoff and a
// three-state circuit breaker for guarding model calls.
//
// # Overview
//
// A Handler re-runs a failing operation up to a configured number of
// retries, sleeping between attempts with exponentially growing,
// capped delays. Whether a failure is worth retrying is decided by its
// classified kind, never by inspecting message text at the call site.
//
// A CircuitBreaker cuts off calls to a dependency after consecutive
// failures. The open state decays to half-open lazily when a caller
// next asks, rather than on a timer; a single success while half-open
// closes the breaker again. Half-open deliberately admits every
// caller instead of a single probe, trading a thundering herd on
// recovery for simpler state.
package retry
