// Package memory provides in-memory implementations of the persistence
// contracts. Used in tests and when the portal runs without Redis.
package memory

import (
	"context"
	"sync"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
)

// RecordStore implements student.RecordRepository in process memory.
// Version checks behave exactly like the Redis store so concurrency
// tests exercise the same stale-write path.
type RecordStore struct {
	mu  sync.Mutex
	rec *student.Record
}

// NewRecordStore creates an empty in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{}
}

// Seed installs a record directly, bypassing version checks.
func (s *RecordStore) Seed(rec *student.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = rec.Clone()
}

// Load returns a copy of the stored record.
func (s *RecordStore) Load(_ context.Context) (*student.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec == nil {
		return nil, student.ErrRecordNotFound
	}
	return s.rec.Clone(), nil
}

// Persist stores a copy of the record after a version check.
func (s *RecordStore) Persist(_ context.Context, rec *student.Record) error {
	if rec == nil {
		return student.ErrMalformedRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec != nil && s.rec.Version != rec.Version {
		return student.ErrStaleRecord
	}

	next := rec.Clone()
	next.Version = rec.Version + 1
	s.rec = next
	rec.Version++
	return nil
}

// Clear removes the record.
func (s *RecordStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = nil
	return nil
}

var _ student.RecordRepository = (*RecordStore)(nil)

// ThemeStore implements student.ThemeStore in process memory.
type ThemeStore struct {
	mu       sync.Mutex
	theme    string
	viewport int
}

// NewThemeStore creates an empty in-memory theme store.
func NewThemeStore() *ThemeStore {
	return &ThemeStore{}
}

// Theme returns the current theme value. Empty string means unset.
func (s *ThemeStore) Theme(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme, nil
}

// SetTheme writes the theme value.
func (s *ThemeStore) SetTheme(_ context.Context, theme string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.theme = theme
	return nil
}

// ViewportWidth returns the last recorded viewport width.
func (s *ThemeStore) ViewportWidth(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport, nil
}

// SetViewportWidth records the viewport width.
func (s *ThemeStore) SetViewportWidth(_ context.Context, width int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = width
	return nil
}

var _ student.ThemeStore = (*ThemeStore)(nil)

// AuditLedger implements student.AuditLedger in process memory.
type AuditLedger struct {
	mu      sync.Mutex
	entries []student.LedgerEntry
}

// NewAuditLedger creates an empty in-memory ledger.
func NewAuditLedger() *AuditLedger {
	return &AuditLedger{}
}

// Append adds an entry to the ledger.
func (l *AuditLedger) Append(_ context.Context, entry student.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

// History returns the latest entries for a student, newest first.
func (l *AuditLedger) History(_ context.Context, studentID string, limit int) ([]student.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]student.LedgerEntry, 0, limit)
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if l.entries[i].StudentID == studentID {
			out = append(out, l.entries[i])
		}
	}
	return out, nil
}

var _ student.AuditLedger = (*AuditLedger)(nil)
