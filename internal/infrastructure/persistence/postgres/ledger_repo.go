package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
)

// LedgerRepository implements student.AuditLedger on PostgreSQL.
// The ledger is append-only: rows are never updated or deleted.
type LedgerRepository struct {
	conn         *Connection
	queryTimeout time.Duration
}

// NewLedgerRepository creates a LedgerRepository. A non-positive
// queryTimeout defaults to ten seconds.
func NewLedgerRepository(conn *Connection, queryTimeout time.Duration) *LedgerRepository {
	if queryTimeout <= 0 {
		queryTimeout = 10 * time.Second
	}
	return &LedgerRepository{conn: conn, queryTimeout: queryTimeout}
}

// Append inserts a ledger entry. A missing id or timestamp is filled in.
func (r *LedgerRepository) Append(ctx context.Context, entry student.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_ledger (id, student_id, kind, amount, balance, source, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	_, err := r.conn.Exec(ctx, query,
		entry.ID,
		entry.StudentID,
		entry.Kind,
		entry.Amount,
		entry.Balance,
		entry.Source,
		entry.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// History returns the latest entries for a student, newest first.
func (r *LedgerRepository) History(ctx context.Context, studentID string, limit int) ([]student.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, student_id, kind, amount, balance, source, occurred_at
		FROM audit_ledger
		WHERE student_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.conn.Query(ctx, query, studentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query ledger history: %w", err)
	}
	defer rows.Close()

	entries := make([]student.LedgerEntry, 0, limit)
	for rows.Next() {
		var e student.LedgerEntry
		if err := rows.Scan(&e.ID, &e.StudentID, &e.Kind, &e.Amount, &e.Balance, &e.Source, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

var _ student.AuditLedger = (*LedgerRepository)(nil)
