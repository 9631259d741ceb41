// Package server exposes the flow engine over HTTP: the authenticate
// endpoint polled by the identity platform, the vendor callback endpoint,
// and liveness/readiness probes. Only schema-validation failures (400) and
// guard rejections (401) use raw HTTP signaling; every reconciliation
// outcome travels in the structured 200 envelope.
package server
