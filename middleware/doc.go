// Package middleware authenticates inbound requests from the identity
// platform before they reach the flow engine. The credential is static and
// compared in constant time; supported modes are none, basic, bearer,
// api-key, and jwt (HS256 with a shared secret). Rejection is always a bare
// HTTP 401, never the structured envelope.
package middleware
