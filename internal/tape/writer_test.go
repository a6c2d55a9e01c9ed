package tape

import (
	"bytes"
	"testing"
	"time"

	"tradesim/internal/schema"
	"tradesim/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []schema.Payload{
		schema.Tick{Symbol: "X", Price: decimal.RequireFromString("100.25"), Volume: 7, Timestamp: ts},
		schema.Signal{StrategyID: "mr", Symbol: "X", Side: schema.SideSell, Strength: 0.75, Timestamp: ts},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, r := range rows {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Flush())
	assert.Contains(t, buf.String(), `"type":"tick"`)
	assert.Contains(t, buf.String(), `"side":"sell"`)

	got, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	tick := got[0].(schema.Tick)
	assert.True(t, tick.Price.Equal(decimal.RequireFromString("100.25")))
	assert.True(t, tick.Timestamp.Equal(ts))
	assert.Equal(t, rows[1], got[1])
}

func TestWriterRejectsOtherPayloads(t *testing.T) {
	w := NewWriter(&bytes.Buffer{})
	err := w.Write(schema.Fill{})
	assert.ErrorIs(t, err, exception.ErrUnknownTapeRow)
}
