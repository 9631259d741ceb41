// Package goFlow bridges a poll-style custom-authentication protocol with an
// asynchronous external challenge service (Authsignal-compatible API). The
// identity platform invokes the same flow repeatedly with one correlation id;
// goFlow tracks in-flight challenges in a TTL store, serializes challenge
// initiation with a per-flow advisory lock, and reconciles racing invocations
// into a single deterministic outcome.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goFlow is the public surface. It exposes [Engine], [Builder], [Config], the
// request/response envelope types, and the audit/metrics value types. All
// internal coordination (flow persistence, locking, the resilient vendor
// client) lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store encodings, or vendor HTTP details in its
//     public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Decide vendor risk outcomes: unknown vendor states are always treated as
//     still pending, never as failures.
//
// # Consistency contract
//
// At most one flow record exists per flow id; Pending to Completed is the only
// transition and Completed is terminal. The per-flow lock covers initiation
// only; re-entry resolution is lock-free because vendor status reads are
// idempotent and the final save is a last-write-wins overwrite of the same
// computed outcome.
package goFlow
