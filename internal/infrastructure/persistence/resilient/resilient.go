// Package resilient wraps the persistence boundaries with retry and circuit
// breaker protection. The Redis record store and the PostgreSQL ledger are
// shared infrastructure the portal does not own, so transient failures are
// retried and sustained outages trip a breaker instead of stalling requests.
package resilient

import (
	"context"
	"errors"
	"time"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/shared"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
	"github.com/bilim-hub/bilim-reward-hub/pkg/circuitbreaker"
	"github.com/bilim-hub/bilim-reward-hub/pkg/retry"
)

// isRecordDomainErr reports whether an error is a domain outcome rather than
// a storage failure. Domain outcomes pass through untouched: they must not
// be retried and must not trip the breaker.
func isRecordDomainErr(err error) bool {
	return errors.Is(err, student.ErrRecordNotFound) ||
		errors.Is(err, student.ErrStaleRecord) ||
		errors.Is(err, student.ErrMalformedRecord)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD STORE
// ══════════════════════════════════════════════════════════════════════════════

// RecordStore decorates a student.RecordRepository with retries and a
// circuit breaker.
type RecordStore struct {
	inner   student.RecordRepository
	breaker *circuitbreaker.CircuitBreaker
	retrier *retry.Retrier
}

// NewRecordStore wraps the given repository. A nil onStateChange is allowed.
// The breaker opens fast: every purchase goes through the record, and a
// degraded Redis should reject quickly instead of stalling the UI.
func NewRecordStore(inner student.RecordRepository, onStateChange func(name string, from, to circuitbreaker.State)) *RecordStore {
	breaker := circuitbreaker.New(
		"record-store",
		circuitbreaker.WithFailureThreshold(3),
		circuitbreaker.WithSuccessThreshold(2),
		circuitbreaker.WithTimeout(10*time.Second),
		circuitbreaker.WithOnStateChange(onStateChange),
		circuitbreaker.WithIsFailure(func(err error) bool { return !isRecordDomainErr(err) }),
	)
	return &RecordStore{
		inner:   inner,
		breaker: breaker,
		retrier: retry.New(
			retry.WithMaxAttempts(3),
			retry.WithInitialDelay(50*time.Millisecond),
			retry.WithMaxDelay(time.Second),
			retry.WithRetryIf(func(err error) bool { return !isRecordDomainErr(err) }),
		),
	}
}

// Load implements student.RecordRepository.
func (s *RecordStore) Load(ctx context.Context) (*student.Record, error) {
	var rec *student.Record
	err := s.execute(ctx, "Load", func(ctx context.Context) error {
		var opErr error
		rec, opErr = s.inner.Load(ctx)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Persist implements student.RecordRepository.
func (s *RecordStore) Persist(ctx context.Context, rec *student.Record) error {
	// No retry on persist: a version conflict needs a fresh read first,
	// and blind retries of a failed write could double-apply.
	return s.guard("Persist", s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.inner.Persist(ctx, rec)
	}))
}

// Clear implements student.RecordRepository.
func (s *RecordStore) Clear(ctx context.Context) error {
	return s.execute(ctx, "Clear", func(ctx context.Context) error {
		return s.inner.Clear(ctx)
	})
}

func (s *RecordStore) execute(ctx context.Context, op string, fn func(context.Context) error) error {
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.retrier.Do(ctx, fn)
	})
	return s.guard(op, err)
}

// guard translates breaker rejections into a storage-unavailable domain error
// so callers can classify it with shared.IsRetryable.
func (s *RecordStore) guard(op string, err error) error {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return shared.WrapError("student", op, shared.ErrStorageUnavailable, "record store circuit open", err)
	}
	return err
}

// BreakerState exposes the breaker state for health reporting.
func (s *RecordStore) BreakerState() circuitbreaker.State {
	return s.breaker.State()
}

// ══════════════════════════════════════════════════════════════════════════════
// AUDIT LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// Ledger decorates a student.AuditLedger with retries and a circuit breaker.
type Ledger struct {
	inner   student.AuditLedger
	breaker *circuitbreaker.CircuitBreaker
	retrier *retry.Retrier
}

// NewLedger wraps the given audit ledger. More tolerant than the record
// store: the ledger is append-only bookkeeping behind the purchase.
func NewLedger(inner student.AuditLedger, onStateChange func(name string, from, to circuitbreaker.State)) *Ledger {
	breaker := circuitbreaker.New(
		"audit-ledger",
		circuitbreaker.WithFailureThreshold(5),
		circuitbreaker.WithSuccessThreshold(1),
		circuitbreaker.WithTimeout(30*time.Second),
		circuitbreaker.WithMaxHalfOpenRequests(2),
		circuitbreaker.WithOnStateChange(onStateChange),
	)
	return &Ledger{
		inner:   inner,
		breaker: breaker,
		retrier: retry.LedgerRetrier(),
	}
}

// Append implements student.AuditLedger.
func (l *Ledger) Append(ctx context.Context, entry student.LedgerEntry) error {
	err := l.breaker.Execute(ctx, func(ctx context.Context) error {
		return l.retrier.Do(ctx, func(ctx context.Context) error {
			return retry.Retryable(l.inner.Append(ctx, entry))
		})
	})
	return l.guard("Append", err)
}

// History implements student.AuditLedger.
func (l *Ledger) History(ctx context.Context, studentID string, limit int) ([]student.LedgerEntry, error) {
	var entries []student.LedgerEntry
	err := l.breaker.Execute(ctx, func(ctx context.Context) error {
		return l.retrier.Do(ctx, func(ctx context.Context) error {
			var opErr error
			entries, opErr = l.inner.History(ctx, studentID, limit)
			return retry.Retryable(opErr)
		})
	})
	if err != nil {
		return nil, l.guard("History", err)
	}
	return entries, nil
}

func (l *Ledger) guard(op string, err error) error {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return shared.WrapError("ledger", op, shared.ErrStorageUnavailable, "audit ledger circuit open", err)
	}
	return err
}

// BreakerState exposes the breaker state for health reporting.
func (l *Ledger) BreakerState() circuitbreaker.State {
	return l.breaker.State()
}
