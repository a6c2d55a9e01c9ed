package main

import (
	"os"
	"path/filepath"
	"testing"

	"tradesim/internal/chaos"
	"tradesim/internal/tape"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerturbDuplicatesRows(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.jsonl")
	out := filepath.Join(dir, "out.jsonl")
	require.NoError(t, os.WriteFile(in, []byte(
		`{"type":"tick","symbol":"X","price":1}
{"type":"signal","symbol":"X","side":"buy","strength":0.5}
`), 0o644))

	engine, err := chaos.NewEngine(chaos.Config{Seed: 1, DuplicateRate: 1})
	require.NoError(t, err)

	read, written, err := perturb(in, out, engine)
	require.NoError(t, err)
	assert.Equal(t, 2, read)
	assert.Equal(t, 4, written)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := tape.ReadAll(f)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestPerturbRequiresPaths(t *testing.T) {
	_, _, err := perturb("", "", nil)
	assert.Error(t, err)
}
