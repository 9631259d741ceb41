package goFlow

import "strings"

// StateBucket defines a public type used by goFlow APIs.
//
// StateBucket is the closed classification of vendor state strings. Vendor
// vocabularies grow without notice; anything we do not recognize lands in
// BucketUnknown and is handled like a still-pending challenge, never like an
// error.
type StateBucket uint8

const (
	// BucketPending is an exported constant or variable used by the flow engine.
	BucketPending StateBucket = iota
	// BucketSuccess is an exported constant or variable used by the flow engine.
	BucketSuccess
	// BucketFailed is an exported constant or variable used by the flow engine.
	BucketFailed
	// BucketUnknown is an exported constant or variable used by the flow engine.
	BucketUnknown
)

var successStates = map[string]struct{}{
	"challenge_succeeded": {},
	"allow":               {},
}

var failedStates = map[string]struct{}{
	"challenge_failed": {},
	"block":            {},
	"rejected":         {},
}

var pendingStates = map[string]struct{}{
	"challenge_required": {},
	"review":             {},
}

// ClassifyVendorState maps a vendor state string (case-insensitive) into a
// StateBucket. Pure function, no vendor SDK types.
func ClassifyVendorState(state string) StateBucket {
	s := strings.ToLower(strings.TrimSpace(state))
	if _, ok := successStates[s]; ok {
		return BucketSuccess
	}
	if _, ok := failedStates[s]; ok {
		return BucketFailed
	}
	if _, ok := pendingStates[s]; ok {
		return BucketPending
	}
	return BucketUnknown
}

// FailureReasonForState normalizes a vendor state into the stable failure
// reason reported to the identity platform.
func FailureReasonForState(state string) string {
	return "authsignal_" + strings.ToLower(strings.TrimSpace(state))
}
