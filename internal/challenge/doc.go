// Package challenge wraps the external challenge service (an
// Authsignal-compatible HTTP API) behind a small client contract: initiate a
// challenge, read its status by idempotency key, or validate a callback
// token. Every call carries a hard timeout; transient failures (transport
// errors, timeouts, HTTP 429/5xx) are retried with capped exponential
// backoff, all other HTTP errors are permanent.
package challenge
