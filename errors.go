package goFlow

import "errors"

var (
	// ErrFlowIDMissing is an exported constant or variable used by the flow engine.
	ErrFlowIDMissing = errors.New("flow id missing")
	// ErrUserIdentifierMissing is an exported constant or variable used by the flow engine.
	ErrUserIdentifierMissing = errors.New("no resolvable user identifier in event payload")
	// ErrRedirectNotAllowed is an exported constant or variable used by the flow engine.
	ErrRedirectNotAllowed = errors.New("caller does not accept redirect operations")
	// ErrFlowBusy is an exported constant or variable used by the flow engine.
	ErrFlowBusy = errors.New("flow is being processed by a concurrent caller")
	// ErrChallengeUnavailable is an exported constant or variable used by the flow engine.
	ErrChallengeUnavailable = errors.New("challenge service unavailable")
	// ErrChallengeRejected is an exported constant or variable used by the flow engine.
	ErrChallengeRejected = errors.New("challenge service rejected the request")
	// ErrFlowNotFound is an exported constant or variable used by the flow engine.
	ErrFlowNotFound = errors.New("flow not found")
	// ErrStoreUnavailable is an exported constant or variable used by the flow engine.
	ErrStoreUnavailable = errors.New("flow store unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the flow engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
