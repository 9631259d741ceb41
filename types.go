package goFlow

import "strings"

// Status defines a public type used by goFlow APIs.
//
// Status values name the four envelope outcomes the identity platform can
// receive from Authenticate.
type Status string

const (
	// StatusSuccess is an exported constant or variable used by the flow engine.
	StatusSuccess Status = "SUCCESS"
	// StatusIncomplete is an exported constant or variable used by the flow engine.
	StatusIncomplete Status = "INCOMPLETE"
	// StatusFailed is an exported constant or variable used by the flow engine.
	StatusFailed Status = "FAILED"
	// StatusError is an exported constant or variable used by the flow engine.
	StatusError Status = "ERROR"
)

// Error codes carried by the ERROR envelope. These are part of the wire
// contract with the identity platform and must stay stable.
const (
	// ErrCodeInvalidRequest is an exported constant or variable used by the flow engine.
	ErrCodeInvalidRequest = "invalid_request"
	// ErrCodeMissingUser is an exported constant or variable used by the flow engine.
	ErrCodeMissingUser = "missing_user_identifier"
	// ErrCodeRedirectNotAllowed is an exported constant or variable used by the flow engine.
	ErrCodeRedirectNotAllowed = "redirect_not_allowed"
	// ErrCodeFlowBusy is an exported constant or variable used by the flow engine.
	ErrCodeFlowBusy = "flow_busy"
	// ErrCodeChallengeUnavailable is an exported constant or variable used by the flow engine.
	ErrCodeChallengeUnavailable = "challenge_unavailable"
	// ErrCodeChallengeRejected is an exported constant or variable used by the flow engine.
	ErrCodeChallengeRejected = "challenge_rejected"
	// ErrCodeInternal is an exported constant or variable used by the flow engine.
	ErrCodeInternal = "internal_error"
)

// OpRedirect is the only operation kind the engine ever asks of a caller.
const OpRedirect = "redirect"

// Operation defines a public type used by goFlow APIs.
//
// Operation instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Operation struct {
	Op  string `json:"op"`
	URL string `json:"url,omitempty"`
}

// AuthRequest defines a public type used by goFlow APIs.
//
// AuthRequest is the inbound authenticate call: one poll of one flow. The
// identity platform repeats it with the same FlowID until a terminal status
// comes back.
type AuthRequest struct {
	FlowID string `json:"flowId"`
	// ResumeURL is where the end user is sent back once the challenge
	// concludes. The callback variant stores it on the flow record.
	ResumeURL string `json:"resumeUrl,omitempty"`
	// AllowedOperations, when non-empty, limits what the engine may ask of
	// the caller. A set that excludes "redirect" makes any challenge flow
	// unanswerable.
	AllowedOperations []string               `json:"allowedOperations,omitempty"`
	Event             map[string]interface{} `json:"event,omitempty"`
}

// AuthResponse defines a public type used by goFlow APIs.
//
// Exactly one shape per status: SUCCESS carries nothing extra, INCOMPLETE
// carries operations, FAILED carries a reason pair, ERROR carries a code pair.
type AuthResponse struct {
	Status             Status      `json:"status"`
	Operations         []Operation `json:"operations,omitempty"`
	FailureReason      string      `json:"failureReason,omitempty"`
	FailureDescription string      `json:"failureDescription,omitempty"`
	ErrorCode          string      `json:"errorCode,omitempty"`
	ErrorDescription   string      `json:"errorDescription,omitempty"`
}

// AllowsRedirect reports whether the caller's declared capability set permits
// a redirect operation. An absent list means everything is allowed.
func (r *AuthRequest) AllowsRedirect() bool {
	if len(r.AllowedOperations) == 0 {
		return true
	}
	for _, op := range r.AllowedOperations {
		if strings.EqualFold(op, OpRedirect) {
			return true
		}
	}
	return false
}

// userExtractors is the ordered fallback chain over the loosely-typed event
// payload. First non-empty match wins; the order is part of the contract.
var userExtractors = []func(event map[string]interface{}) string{
	func(e map[string]interface{}) string { return nestedString(e, "user", "id") },
	func(e map[string]interface{}) string { return nestedString(e, "user", "username") },
	func(e map[string]interface{}) string { return nestedString(e, "user", "email") },
	func(e map[string]interface{}) string { return nestedString(e, "claims", "sub") },
	func(e map[string]interface{}) string { return stringField(e, "subject") },
}

var tenantExtractors = []func(event map[string]interface{}) string{
	func(e map[string]interface{}) string { return nestedString(e, "organization", "id") },
	func(e map[string]interface{}) string { return nestedString(e, "organization", "name") },
	func(e map[string]interface{}) string { return stringField(e, "tenantHint") },
}

// ResolveUserID walks the extractor chain and returns the first non-empty
// user identifier found in the event payload.
func ResolveUserID(event map[string]interface{}) string {
	for _, extract := range userExtractors {
		if v := extract(event); v != "" {
			return v
		}
	}
	return ""
}

// ResolveTenantHint returns the first non-empty tenant hint found in the event
// payload, or "" when the deployment is single-tenant.
func ResolveTenantHint(event map[string]interface{}) string {
	for _, extract := range tenantExtractors {
		if v := extract(event); v != "" {
			return v
		}
	}
	return ""
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

func nestedString(m map[string]interface{}, outer, inner string) string {
	if m == nil {
		return ""
	}
	sub, _ := m[outer].(map[string]interface{})
	return stringField(sub, inner)
}
