package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tradesim/internal/ops"
	"tradesim/internal/state"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSymbols(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, splitSymbols(" A, ,B,"))
	assert.Nil(t, splitSymbols(""))
}

const session = `{"type":"tick","symbol":"X","price":"100"}
{"type":"signal","strategy_id":"mr","symbol":"X","side":"buy","strength":0.3}
{"type":"tick","symbol":"X","price":"101"}
{"type":"signal","strategy_id":"mr","symbol":"X","side":"buy","strength":1}
`

func TestRunPlaysTapeAndWritesSnapshot(t *testing.T) {
	dir := t.TempDir()
	tapePath := filepath.Join(dir, "session.jsonl")
	require.NoError(t, os.WriteFile(tapePath, []byte(session), 0o644))

	loaded, err := ops.Load("")
	require.NoError(t, err)
	loaded.Order.FillDelay = time.Millisecond

	snapPath := filepath.Join(dir, "portfolio.json")
	require.NoError(t, run(t.Context(), loaded, options{
		tapePath:     tapePath,
		snapshotPath: snapPath,
	}))

	snap, err := state.ReadSnapshot(snapPath)
	require.NoError(t, err)

	// 30 @ ~100 fills; 100 @ ~101 is rejected by the 5000 order value limit.
	pos, ok := snap.Positions["X"]
	require.True(t, ok)
	assert.Equal(t, int64(30), pos.Quantity)
	assert.True(t, snap.Cash.LessThan(decimal.NewFromInt(100000)))
	assert.True(t, pos.CurrentPrice.Equal(decimal.NewFromInt(101)))
}

func TestRunRestoresSnapshot(t *testing.T) {
	dir := t.TempDir()
	tapePath := filepath.Join(dir, "empty.jsonl")
	require.NoError(t, os.WriteFile(tapePath, nil, 0o644))

	loaded, err := ops.Load("")
	require.NoError(t, err)

	snapPath := filepath.Join(dir, "portfolio.json")
	err = run(t.Context(), loaded, options{tapePath: tapePath, snapshotPath: snapPath, restore: true})
	require.Error(t, err)

	require.NoError(t, run(t.Context(), loaded, options{tapePath: tapePath, snapshotPath: snapPath}))
	require.NoError(t, run(t.Context(), loaded, options{tapePath: tapePath, snapshotPath: snapPath, restore: true}))

	snap, err := state.ReadSnapshot(snapPath)
	require.NoError(t, err)
	assert.True(t, snap.Cash.Equal(decimal.NewFromInt(100000)))
}
