package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	flowRecordVersion1 = 1
)

// ErrStoreBackend wraps transport-level failures of the backing store.
var ErrStoreBackend = errors.New("flow store backend unavailable")

// FlowState enumerates the two persisted flow states. Completed is terminal.
type FlowState uint8

const (
	// FlowPending marks a flow whose challenge is still outstanding.
	FlowPending FlowState = 1
	// FlowCompleted marks a flow with a terminal outcome.
	FlowCompleted FlowState = 2
)

// Outcome is the terminal result of a completed flow.
type Outcome uint8

const (
	// OutcomeNone is the zero outcome of a pending record.
	OutcomeNone Outcome = 0
	// OutcomeSuccess marks a successfully completed challenge.
	OutcomeSuccess Outcome = 1
	// OutcomeFailed marks a denied or failed challenge.
	OutcomeFailed Outcome = 2
)

// FlowRecord is the unit of persisted state, keyed by the caller-supplied
// flow id. Pending records carry the redirect target and, in the polling
// variant, the vendor idempotency handle; completed records carry the
// outcome and an optional failure reason.
type FlowRecord struct {
	FlowID         string
	UserID         string
	ResumeURL      string
	TenantHint     string
	State          FlowState
	Outcome        Outcome
	FailureReason  string
	RedirectURL    string
	IdempotencyKey string
	Action         string
	CreatedAt      int64
	UpdatedAt      int64
}

// Store is the persistence contract the engine consumes. Get never fails on a
// missing or undecodable key; AcquireLock never blocks; ReleaseLock is a
// no-op when the token no longer owns the lock.
type Store interface {
	Get(ctx context.Context, flowID string) (*FlowRecord, error)
	Save(ctx context.Context, record *FlowRecord, ttl time.Duration) error
	AcquireLock(ctx context.Context, flowID string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, flowID, ownerToken string) error
	Healthcheck(ctx context.Context) error
	Close() error
}

func encodeFlowRecord(record *FlowRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(flowRecordVersion1)
	buf.WriteByte(byte(record.State))
	buf.WriteByte(byte(record.Outcome))

	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.UpdatedAt); err != nil {
		return nil, err
	}

	fields := []string{
		record.FlowID,
		record.UserID,
		record.ResumeURL,
		record.TenantHint,
		record.FailureReason,
		record.RedirectURL,
		record.IdempotencyKey,
		record.Action,
	}
	for _, field := range fields {
		if len(field) > 65535 {
			return nil, errors.New("flow record field length exceeded")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodeFlowRecord(data []byte) (*FlowRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != flowRecordVersion1 {
		return nil, fmt.Errorf("invalid flow record version %d", version)
	}

	state, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	outcome, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &FlowRecord{
		State:   FlowState(state),
		Outcome: Outcome(outcome),
	}
	if record.State != FlowPending && record.State != FlowCompleted {
		return nil, fmt.Errorf("invalid flow record state %d", state)
	}

	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.UpdatedAt); err != nil {
		return nil, err
	}

	fields := []*string{
		&record.FlowID,
		&record.UserID,
		&record.ResumeURL,
		&record.TenantHint,
		&record.FailureReason,
		&record.RedirectURL,
		&record.IdempotencyKey,
		&record.Action,
	}
	for _, field := range fields {
		var length uint16
		if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
			return nil, err
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*field = string(raw)
	}

	return record, nil
}
