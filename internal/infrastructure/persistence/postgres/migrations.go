package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE AUDIT LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create the currency audit ledger
-- Version: 001
-- Every debit and credit of the reward economy lands here, append-only.

CREATE TABLE IF NOT EXISTS audit_ledger (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    student_id VARCHAR(100) NOT NULL,
    kind VARCHAR(10) NOT NULL,
    amount INTEGER NOT NULL,
    balance INTEGER NOT NULL,
    source VARCHAR(50) NOT NULL,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_kind CHECK (kind IN ('debit', 'credit')),
    CONSTRAINT positive_amount CHECK (amount > 0),
    CONSTRAINT non_negative_balance CHECK (balance >= 0)
);

CREATE INDEX IF NOT EXISTS idx_audit_ledger_student ON audit_ledger(student_id);
CREATE INDEX IF NOT EXISTS idx_audit_ledger_student_at ON audit_ledger(student_id, occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_ledger_source ON audit_ledger(source);
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_audit_ledger",
			UpSQL:   migration001Up,
		},
	}
}
