package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
)

// RecordStore implements student.RecordRepository on the shared Redis
// database. The record is stored as a single JSON string under the session
// key, exactly as other portal surfaces expect to find it.
//
// The store is shared and unlocked: another surface can rewrite the record
// between our read and write. Persist runs inside WATCH so a concurrent
// mutation surfaces as student.ErrStaleRecord instead of a lost update.
type RecordStore struct {
	store     *Store
	sessionID string
}

// NewRecordStore creates a RecordStore bound to one portal session.
func NewRecordStore(store *Store, sessionID string) *RecordStore {
	return &RecordStore{store: store, sessionID: sessionID}
}

// Load reads and decodes the record, running schema migrations if the
// stored payload is an older version. A migrated record is written back
// immediately so other surfaces see the current schema.
//
// A malformed payload is reported as student.ErrMalformedRecord; callers
// treat it the same as a missing record and never trust it partially.
func (r *RecordStore) Load(ctx context.Context) (*student.Record, error) {
	data, err := r.store.GetBytes(ctx, RecordKey(r.sessionID))
	if err != nil {
		if errors.Is(err, ErrKeyMiss) {
			return nil, student.ErrRecordNotFound
		}
		return nil, fmt.Errorf("load record: %w", err)
	}

	rec, migrated, err := student.DecodeRecord(data)
	if err != nil {
		return nil, err
	}

	if migrated {
		if err := r.Persist(ctx, rec); err != nil {
			return nil, fmt.Errorf("persist migrated record: %w", err)
		}
	}
	return rec, nil
}

// Persist writes the whole record back. The stored version stamp is compared
// under WATCH; a mismatch or a concurrent write aborts with ErrStaleRecord.
// On success the record's version stamp is incremented in place.
func (r *RecordStore) Persist(ctx context.Context, rec *student.Record) error {
	if rec == nil {
		return student.ErrMalformedRecord
	}
	key := RecordKey(r.sessionID)

	txn := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		if err == nil {
			stored, _, decodeErr := student.DecodeRecord(current)
			// A malformed stored record loses to the incoming write.
			if decodeErr == nil && stored.Version != rec.Version {
				return student.ErrStaleRecord
			}
		}

		next := rec.Clone()
		next.Version = rec.Version + 1
		data, err := student.EncodeRecord(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	err := r.store.Client().Watch(ctx, txn, key)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return student.ErrStaleRecord
		}
		return err
	}

	rec.Version++
	return nil
}

// Clear removes the record. Logging out disables the whole economy.
func (r *RecordStore) Clear(ctx context.Context) error {
	return r.store.Delete(ctx, RecordKey(r.sessionID))
}

var _ student.RecordRepository = (*RecordStore)(nil)
