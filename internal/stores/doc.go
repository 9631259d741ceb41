// Package stores contains the flow persistence backends used by the goFlow
// engine: a single-process in-memory map and a Redis-backed shared store.
// Both satisfy the same Store contract; the engine never branches on which
// one it was given.
//
// Flow records and advisory locks live in separate key namespaces so a lock
// expiring can never touch flow data. A record that fails to decode is
// reported as absent, not as an error: the flow simply restarts.
package stores
