package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
)

func TestRecordStore_LoadMissing(t *testing.T) {
	store := NewRecordStore()

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, student.ErrRecordNotFound)
}

func TestRecordStore_PersistIncrementsVersion(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	rec, err := student.NewRecord(student.NewRecordParams{ID: "s1", Name: "Aruzhan", InitialBalance: 100})
	require.NoError(t, err)

	require.NoError(t, store.Persist(ctx, rec))
	assert.Equal(t, int64(1), rec.Version)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.Version)
}

func TestRecordStore_StaleWriteRejected(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	rec, err := student.NewRecord(student.NewRecordParams{ID: "s1", Name: "Aruzhan", InitialBalance: 100})
	require.NoError(t, err)
	require.NoError(t, store.Persist(ctx, rec))

	// Две "вкладки" загружают одну версию.
	tabA, err := store.Load(ctx)
	require.NoError(t, err)
	tabB, err := store.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, tabA.Debit(30))
	require.NoError(t, store.Persist(ctx, tabA))

	require.NoError(t, tabB.Debit(50))
	err = store.Persist(ctx, tabB)
	assert.ErrorIs(t, err, student.ErrStaleRecord)

	// Сохранилась только первая запись.
	final, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, student.Aqcha(70), final.Aqcha)
}

func TestRecordStore_LoadReturnsCopy(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	rec, err := student.NewRecord(student.NewRecordParams{ID: "s1", Name: "Aruzhan", InitialBalance: 100})
	require.NoError(t, err)
	store.Seed(rec)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, loaded.Debit(100))

	again, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, student.Aqcha(100), again.Aqcha)
}

func TestAuditLedger_HistoryNewestFirst(t *testing.T) {
	ledger := NewAuditLedger()
	ctx := context.Background()

	for i, kind := range []string{"debit", "credit", "debit"} {
		require.NoError(t, ledger.Append(ctx, student.LedgerEntry{
			ID:        string(rune('a' + i)),
			StudentID: "s1",
			Kind:      kind,
			Amount:    10 * (i + 1),
		}))
	}
	require.NoError(t, ledger.Append(ctx, student.LedgerEntry{StudentID: "other", Amount: 999}))

	history, err := ledger.History(ctx, "s1", 2)
	require.NoError(t, err)

	require.Len(t, history, 2)
	assert.Equal(t, 30, history[0].Amount)
	assert.Equal(t, 20, history[1].Amount)
}
