package goFlow

import (
	"context"
	"errors"
	"log"
	"net/url"
	"time"

	"github.com/MrEthical07/goFlow/internal/challenge"
	"github.com/MrEthical07/goFlow/internal/stores"
)

// Engine defines a public type used by goFlow APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config      Config
	store       stores.Store
	challenge   challenge.Client
	clientCache *challenge.Cache
	audit       *auditDispatcher
	metrics     *Metrics
}

// clientFor picks the vendor client for this invocation. When the caller's
// middleware derived a per-tenant vendor credential, a cached client for that
// credential is used instead of the process-wide one.
func (e *Engine) clientFor(ctx context.Context) challenge.Client {
	credential := vendorCredentialFromContext(ctx)
	if credential == "" || e.clientCache == nil {
		return e.challenge
	}
	client, err := e.clientCache.Get(credential)
	if err != nil {
		log.Print("goFlow: per-credential client construction failed, using default")
		return e.challenge
	}
	return client
}

// Close describes the close operation and its observable behavior.
//
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			log.Print("goFlow: store close failed")
		}
	}
}

// Healthcheck probes the flow store. A failure here means the engine cannot
// make progress and readiness reporting must surface it.
func (e *Engine) Healthcheck(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	return e.store.Healthcheck(ctx)
}

// AuditDropped describes the auditdropped operation and its observable behavior.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Authenticate is the reconciliation entry point, invoked once per inbound
// poll of the identity platform. It always returns a structured envelope;
// unexpected faults are logged with the flow id and converted into a generic
// internal-error outcome.
//
// Authenticate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Authenticate(ctx context.Context, req *AuthRequest) *AuthResponse {
	if e == nil || e.store == nil || e.challenge == nil {
		return errorResponse(ErrCodeInternal, ErrEngineNotReady.Error())
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		// The duration must be computed at exit, not at the defer statement.
		defer func() {
			e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
		}()
	}
	if req == nil || req.FlowID == "" {
		return errorResponse(ErrCodeInvalidRequest, ErrFlowIDMissing.Error())
	}

	resp, err := e.reconcile(ctx, req)
	if err != nil {
		e.metricInc(MetricFlowError)
		log.Printf("goFlow: authenticate failed for flow %s: %v", req.FlowID, err)
		e.emitAudit(ctx, auditEventFlowError, false, req.FlowID, "", "", err, nil)
		return errorResponse(ErrCodeInternal, "internal error")
	}
	return resp
}

// reconcile runs the state machine: completed replay, pending delegation, or
// lock-protected initiation with a double-check against racing initiators.
func (e *Engine) reconcile(ctx context.Context, req *AuthRequest) (*AuthResponse, error) {
	record, err := e.store.Get(ctx, req.FlowID)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return e.resolveExisting(ctx, req, record)
	}

	ownerToken, err := e.store.AcquireLock(ctx, req.FlowID, e.config.Flow.LockTTL)
	if err != nil {
		return nil, err
	}

	if ownerToken == "" {
		// The holder is very likely mid-initiation; its record may already
		// be visible.
		record, err = e.store.Get(ctx, req.FlowID)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return e.resolveExisting(ctx, req, record)
		}
		e.metricInc(MetricLockContended)
		e.emitAudit(ctx, auditEventFlowLockContended, false, req.FlowID, "", "", ErrFlowBusy, nil)
		return errorResponse(ErrCodeFlowBusy, "flow is being processed, retry"), nil
	}

	defer func() {
		if releaseErr := e.store.ReleaseLock(ctx, req.FlowID, ownerToken); releaseErr != nil {
			log.Printf("goFlow: lock release failed for flow %s", req.FlowID)
		}
	}()

	// Closes the window between the first read and lock acquisition.
	record, err = e.store.Get(ctx, req.FlowID)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return e.resolveExisting(ctx, req, record)
	}

	return e.initiate(ctx, req)
}

// initiate resolves the subject, calls the vendor's track operation, and
// persists the resulting record. Runs only under the per-flow lock.
func (e *Engine) initiate(ctx context.Context, req *AuthRequest) (*AuthResponse, error) {
	userID := ResolveUserID(req.Event)
	if userID == "" {
		return errorResponse(ErrCodeMissingUser, ErrUserIdentifierMissing.Error()), nil
	}
	tenantHint := ResolveTenantHint(req.Event)
	resumeURL := buildResumeURL(req.ResumeURL, tenantHint)

	result, err := e.clientFor(ctx).Track(ctx, challenge.TrackRequest{
		UserID:      userID,
		Action:      e.config.Flow.Action,
		RedirectURL: e.vendorRedirectTarget(req.FlowID, resumeURL),
	})
	if err != nil {
		e.emitAudit(ctx, auditEventFlowInitiated, false, req.FlowID, userID, tenantHint, err, nil)
		switch {
		case errors.Is(err, challenge.ErrRejected):
			return errorResponse(ErrCodeChallengeRejected, "challenge service rejected the request"), nil
		case errors.Is(err, challenge.ErrUnavailable):
			e.metricInc(MetricChallengeUnavailable)
			return errorResponse(ErrCodeChallengeUnavailable, "challenge service unavailable"), nil
		}
		return nil, err
	}

	now := time.Now().Unix()
	record := &stores.FlowRecord{
		FlowID:     req.FlowID,
		UserID:     userID,
		ResumeURL:  resumeURL,
		TenantHint: tenantHint,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	switch ClassifyVendorState(result.State) {
	case BucketSuccess:
		// The vendor waived the challenge; the flow completes without ever
		// becoming pending.
		record.State = stores.FlowCompleted
		record.Outcome = stores.OutcomeSuccess
		if err := e.store.Save(ctx, record, e.config.Flow.TTL); err != nil {
			return nil, err
		}
		e.metricInc(MetricFlowSuccess)
		e.emitAudit(ctx, auditEventFlowCompleted, true, req.FlowID, userID, tenantHint, nil, nil)
		return successResponse(), nil
	case BucketFailed:
		record.State = stores.FlowCompleted
		record.Outcome = stores.OutcomeFailed
		record.FailureReason = FailureReasonForState(result.State)
		if err := e.store.Save(ctx, record, e.config.Flow.TTL); err != nil {
			return nil, err
		}
		e.metricInc(MetricFlowFailed)
		e.emitAudit(ctx, auditEventFlowCompleted, false, req.FlowID, userID, tenantHint, nil, func() map[string]string {
			return map[string]string{"reason": record.FailureReason}
		})
		return failedResponse(record.FailureReason), nil
	default:
		record.State = stores.FlowPending
		record.RedirectURL = result.URL
		record.IdempotencyKey = result.IdempotencyKey
		record.Action = e.config.Flow.Action
		if err := e.store.Save(ctx, record, e.config.Flow.TTL); err != nil {
			return nil, err
		}
		e.metricInc(MetricFlowInitiated)
		e.metricInc(MetricFlowPending)
		e.emitAudit(ctx, auditEventFlowInitiated, true, req.FlowID, userID, tenantHint, nil, func() map[string]string {
			return map[string]string{"state": result.State}
		})
		return e.redirectResponse(req, record.RedirectURL), nil
	}
}

// resolveExisting handles a flow that already has a record: terminal replay
// for completed flows, re-entry resolution for pending ones.
func (e *Engine) resolveExisting(ctx context.Context, req *AuthRequest, record *stores.FlowRecord) (*AuthResponse, error) {
	if record.State == stores.FlowCompleted {
		if record.Outcome == stores.OutcomeSuccess {
			return successResponse(), nil
		}
		return failedResponse(record.FailureReason), nil
	}

	e.metricInc(MetricFlowReentry)
	e.emitAudit(ctx, auditEventFlowReentry, true, record.FlowID, record.UserID, record.TenantHint, nil, nil)
	return e.resolvePending(ctx, req, record)
}

// vendorRedirectTarget is where the vendor sends the end user after the
// challenge concludes. The callback variant routes through our own callback
// endpoint so the terminal state lands before the user resumes; the polling
// variant sends the user straight back.
func (e *Engine) vendorRedirectTarget(flowID, resumeURL string) string {
	if e.config.Variant != VariantCallback || e.config.Flow.CallbackURL == "" {
		return resumeURL
	}
	target, err := url.Parse(e.config.Flow.CallbackURL)
	if err != nil {
		return resumeURL
	}
	q := target.Query()
	q.Set("flowId", flowID)
	target.RawQuery = q.Encode()
	return target.String()
}

func buildResumeURL(resumeURL, tenantHint string) string {
	if resumeURL == "" || tenantHint == "" {
		return resumeURL
	}
	parsed, err := url.Parse(resumeURL)
	if err != nil {
		return resumeURL
	}
	q := parsed.Query()
	q.Set("tenant", tenantHint)
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

// redirectResponse applies the caller's capability check last: by the time it
// runs, the challenge is already issued and the Pending record persisted. A
// refused caller therefore leaves a live vendor challenge behind, and a later
// poll that does allow redirects resumes it instead of issuing another.
func (e *Engine) redirectResponse(req *AuthRequest, redirectURL string) *AuthResponse {
	if !req.AllowsRedirect() {
		return errorResponse(ErrCodeRedirectNotAllowed, ErrRedirectNotAllowed.Error())
	}
	return &AuthResponse{
		Status:     StatusIncomplete,
		Operations: []Operation{{Op: OpRedirect, URL: redirectURL}},
	}
}

func successResponse() *AuthResponse {
	return &AuthResponse{Status: StatusSuccess}
}

func failedResponse(reason string) *AuthResponse {
	return &AuthResponse{
		Status:             StatusFailed,
		FailureReason:      reason,
		FailureDescription: descriptionForReason(reason),
	}
}

func errorResponse(code, description string) *AuthResponse {
	return &AuthResponse{
		Status:           StatusError,
		ErrorCode:        code,
		ErrorDescription: description,
	}
}

func descriptionForReason(reason string) string {
	switch reason {
	case "callback_token_missing":
		return "Challenge callback did not include a token"
	case "callback_token_invalid":
		return "Challenge callback token failed validation"
	default:
		return "Authsignal denied the action"
	}
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	flowID, userID, tenantHint string,
	cause error,
	metadata func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		FlowID:    flowID,
		UserID:    userID,
		TenantID:  tenantHint,
		IP:        clientIPFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		Success:   success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(ctx, event)
}
