package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerIsNew(t *testing.T) {
	l := &Ledger{}
	assert.True(t, l.IsNew("ord-1"))

	l.Advance("ord-1", time.Now())
	assert.False(t, l.IsNew("ord-1"))
	assert.True(t, l.IsNew("ord-2"))
}

func TestLedgerWatermarkMonotonic(t *testing.T) {
	l := &Ledger{}
	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	t0 := t1.Add(-time.Hour)

	l.Advance("ord-1", t1)
	assert.Equal(t, t1, l.LastSeen)

	// An older timestamp never moves the watermark back.
	l.Advance("ord-2", t0)
	assert.Equal(t, t1, l.LastSeen)

	// A zero timestamp records the id without touching the watermark.
	l.Advance("ord-3", time.Time{})
	assert.Equal(t, t1, l.LastSeen)
	assert.False(t, l.IsNew("ord-3"))
}

func TestLedgerEviction(t *testing.T) {
	l := &Ledger{}
	for i := 0; i < maxProcessedIDs+50; i++ {
		l.Advance(fmt.Sprintf("ord-%d", i), time.Now())
	}

	assert.Len(t, l.ProcessedIDs, maxProcessedIDs)
	// Oldest ids fall out of the dedup window; newest stay.
	assert.True(t, l.IsNew("ord-0"))
	assert.False(t, l.IsNew(fmt.Sprintf("ord-%d", maxProcessedIDs+49)))
}

func TestLedgerAdvanceIdempotent(t *testing.T) {
	l := &Ledger{}
	now := time.Now()
	l.Advance("ord-1", now)
	l.Advance("ord-1", now)
	assert.Len(t, l.ProcessedIDs, 1)
}

func TestFileLedgerStoreRoundTrip(t *testing.T) {
	store, err := NewFileLedgerStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	// Missing ledger is a zero ledger, not an error.
	l, err := store.Load(ctx, "decathlon")
	require.NoError(t, err)
	assert.True(t, l.LastSeen.IsZero())
	assert.Empty(t, l.ProcessedIDs)

	l.Advance("ord-1", time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, store.Save(ctx, "decathlon", l))

	got, err := store.Load(ctx, "decathlon")
	require.NoError(t, err)
	assert.Equal(t, l.LastSeen, got.LastSeen)
	assert.Equal(t, l.ProcessedIDs, got.ProcessedIDs)
}
