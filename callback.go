package goFlow

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/MrEthical07/goFlow/internal/challenge"
	"github.com/MrEthical07/goFlow/internal/stores"
)

// HandleCallback processes the vendor's post-challenge redirect for the
// callback variant. It validates the vendor token, persists the terminal
// state, and returns the resume URL the end user should be redirected to.
//
// The resume URL is returned even when validation fails: the user always
// lands back on the identity platform, and the next authenticate poll
// reports the stored FAILED outcome. Only a missing flow id
// (ErrFlowIDMissing) or an unknown/expired flow (ErrFlowNotFound) prevent a
// redirect.
func (e *Engine) HandleCallback(ctx context.Context, flowID, token string) (string, error) {
	if e == nil || e.store == nil || e.challenge == nil {
		return "", ErrEngineNotReady
	}
	if flowID == "" {
		return "", ErrFlowIDMissing
	}

	record, err := e.store.Get(ctx, flowID)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", ErrFlowNotFound
	}
	if record.State == stores.FlowCompleted {
		// Duplicate callback; the outcome already landed.
		return record.ResumeURL, nil
	}

	e.metricInc(MetricCallbackReceived)

	if token == "" {
		// Never consult the vendor for a tokenless callback.
		e.metricInc(MetricCallbackTokenMissing)
		e.completeFromCallback(ctx, record, stores.OutcomeFailed, "callback_token_missing")
		return record.ResumeURL, nil
	}

	result, err := e.clientFor(ctx).ValidateToken(ctx, token)
	if err != nil {
		if errors.Is(err, challenge.ErrUnavailable) {
			// No verdict reached; leave the flow pending so a later poll or
			// retry can still settle it. The user resumes regardless.
			log.Printf("goFlow: callback validation unavailable for flow %s: %v", flowID, err)
			e.metricInc(MetricChallengeUnavailable)
			return record.ResumeURL, nil
		}
		e.completeFromCallback(ctx, record, stores.OutcomeFailed, "callback_token_invalid")
		return record.ResumeURL, nil
	}

	if !result.IsValid {
		e.completeFromCallback(ctx, record, stores.OutcomeFailed, "callback_token_invalid")
		return record.ResumeURL, nil
	}

	switch ClassifyVendorState(result.State) {
	case BucketFailed:
		e.completeFromCallback(ctx, record, stores.OutcomeFailed, FailureReasonForState(result.State))
	default:
		// A valid token with any non-failed state means the user passed the
		// challenge.
		e.completeFromCallback(ctx, record, stores.OutcomeSuccess, "")
	}
	return record.ResumeURL, nil
}

func (e *Engine) completeFromCallback(ctx context.Context, record *stores.FlowRecord, outcome stores.Outcome, reason string) {
	record.State = stores.FlowCompleted
	record.Outcome = outcome
	record.FailureReason = reason
	record.UpdatedAt = time.Now().Unix()

	if err := e.store.Save(ctx, record, e.config.Flow.TTL); err != nil {
		log.Printf("goFlow: callback save failed for flow %s", record.FlowID)
	}

	success := outcome == stores.OutcomeSuccess
	if success {
		e.metricInc(MetricFlowSuccess)
	} else {
		e.metricInc(MetricFlowFailed)
	}
	e.emitAudit(ctx, auditEventCallbackReceived, success, record.FlowID, record.UserID, record.TenantHint, nil, func() map[string]string {
		if reason == "" {
			return nil
		}
		return map[string]string{"reason": reason}
	})
}
