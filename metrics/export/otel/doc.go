// Package otel bridges the flow engine's pull-style metrics snapshot into
// OpenTelemetry observable instruments. Collection is driven by the caller's
// meter provider; the engine is never blocked by an exporter.
package otel
