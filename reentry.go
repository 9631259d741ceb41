package goFlow

import (
	"context"
	"log"
	"time"

	"github.com/MrEthical07/goFlow/internal/stores"
)

// resolvePending decides the next externally-visible outcome of a pending
// flow without re-issuing a challenge.
//
// Polling variant: read the vendor's status by idempotency key and map it
// through the state buckets. A status-read failure or an unknown state fails
// open to pending: the outage of a risk vendor must not abort a login the
// user is mid-way through.
//
// Callback variant: the terminal state arrives out of band; a pending record
// just means the callback has not landed yet.
func (e *Engine) resolvePending(ctx context.Context, req *AuthRequest, record *stores.FlowRecord) (*AuthResponse, error) {
	if e.config.Variant == VariantCallback {
		return e.refreshPending(ctx, req, record)
	}

	status, err := e.clientFor(ctx).Status(ctx, record.UserID, record.Action, record.IdempotencyKey)
	if err != nil {
		log.Printf("goFlow: status read failed for flow %s, staying pending: %v", record.FlowID, err)
		e.metricInc(MetricReentryFailOpen)
		return e.refreshPending(ctx, req, record)
	}

	switch ClassifyVendorState(status.State) {
	case BucketSuccess:
		record.State = stores.FlowCompleted
		record.Outcome = stores.OutcomeSuccess
		record.UpdatedAt = time.Now().Unix()
		if err := e.store.Save(ctx, record, e.config.Flow.TTL); err != nil {
			return nil, err
		}
		e.metricInc(MetricFlowSuccess)
		e.emitAudit(ctx, auditEventFlowCompleted, true, record.FlowID, record.UserID, record.TenantHint, nil, nil)
		return successResponse(), nil
	case BucketFailed:
		record.State = stores.FlowCompleted
		record.Outcome = stores.OutcomeFailed
		record.FailureReason = FailureReasonForState(status.State)
		record.UpdatedAt = time.Now().Unix()
		if err := e.store.Save(ctx, record, e.config.Flow.TTL); err != nil {
			return nil, err
		}
		e.metricInc(MetricFlowFailed)
		e.emitAudit(ctx, auditEventFlowCompleted, false, record.FlowID, record.UserID, record.TenantHint, nil, func() map[string]string {
			return map[string]string{"reason": record.FailureReason}
		})
		return failedResponse(record.FailureReason), nil
	default:
		return e.refreshPending(ctx, req, record)
	}
}

// refreshPending bumps UpdatedAt so the record's TTL does not expire while
// the challenge is still outstanding, then re-issues the same redirect.
func (e *Engine) refreshPending(ctx context.Context, req *AuthRequest, record *stores.FlowRecord) (*AuthResponse, error) {
	record.UpdatedAt = time.Now().Unix()
	if err := e.store.Save(ctx, record, e.config.Flow.TTL); err != nil {
		// TTL refresh is best-effort; the record is still live.
		log.Printf("goFlow: pending refresh failed for flow %s", record.FlowID)
	}
	return e.redirectResponse(req, record.RedirectURL), nil
}
