package goFlow

import "context"

type clientIPContextKey struct{}
type requestIDContextKey struct{}
type vendorCredentialContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine records it
// on audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithRequestID attaches a correlation id for the inbound HTTP request to
// ctx. Distinct from the flow id: one flow spans many requests.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// WithVendorCredential attaches a per-tenant vendor API credential to ctx.
// The Engine then calls the challenge service with a client cached for that
// credential instead of the process-wide one.
func WithVendorCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, vendorCredentialContextKey{}, credential)
}

func vendorCredentialFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	credential, _ := ctx.Value(vendorCredentialContextKey{}).(string)
	return credential
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	requestID, _ := ctx.Value(requestIDContextKey{}).(string)
	return requestID
}
