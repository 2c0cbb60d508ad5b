package verify

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unsafeModification = `
name: CI
on:
  push:
    branches: [main]
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: evil/checkout@v3
      - run: go test ./...
`

func writeBatchDirs(t *testing.T) (origDir, modDir string) {
	t.Helper()
	origDir, modDir = t.TempDir(), t.TempDir()

	write := func(dir, name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	write(origDir, "safe.yml", baseWorkflow)
	write(modDir, "safe.yml", baseWorkflow)

	write(origDir, "unsafe.yml", baseWorkflow)
	write(modDir, "unsafe.yml", unsafeModification)

	write(origDir, "broken.yml", "{not yaml")
	write(modDir, "broken.yml", baseWorkflow)

	write(origDir, "orphan.yml", baseWorkflow)
	// no modDir counterpart for orphan.yml

	write(origDir, "notes.txt", "ignored")
	return origDir, modDir
}

func TestVerifyBatch(t *testing.T) {
	origDir, modDir := writeBatchDirs(t)

	v := newVerifier(t, Options{})
	report, err := v.VerifyBatch(context.Background(), origDir, modDir, BatchOptions{Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 1, report.Safe)
	assert.Equal(t, 1, report.Unsafe)
	assert.Equal(t, 1, report.Inconclusive, "malformed input is inconclusive, not an error")
	assert.Equal(t, 1, report.Errors, "missing counterpart is an error")
	assert.Len(t, report.Results, 4)
}

func TestVerifyBatchOnResult(t *testing.T) {
	origDir, modDir := writeBatchDirs(t)

	var calls atomic.Int32
	v := newVerifier(t, Options{})
	report, err := v.VerifyBatch(context.Background(), origDir, modDir, BatchOptions{
		Workers:  2,
		OnResult: func(FileResult) { calls.Add(1) },
	})
	require.NoError(t, err)
	assert.Equal(t, int32(report.Total), calls.Load())
}

func TestVerifyBatchCancellation(t *testing.T) {
	origDir, modDir := writeBatchDirs(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := newVerifier(t, Options{})
	report, err := v.VerifyBatch(ctx, origDir, modDir, BatchOptions{Workers: 1})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report, "partial results survive cancellation")
	assert.LessOrEqual(t, report.Total, 4)
}

func TestVerifyBatchMissingDirectory(t *testing.T) {
	v := newVerifier(t, Options{})
	_, err := v.VerifyBatch(context.Background(), filepath.Join(t.TempDir(), "nope"), t.TempDir(), BatchOptions{})
	require.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	origDir, modDir := writeBatchDirs(t)
	v := newVerifier(t, Options{})
	report, err := v.VerifyBatch(context.Background(), origDir, modDir, BatchOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, report))
	assert.Contains(t, buf.String(), `"total": 4`)
	assert.Contains(t, buf.String(), "unsafe.yml")
}

func TestWriteCSV(t *testing.T) {
	origDir, modDir := writeBatchDirs(t)
	v := newVerifier(t, Options{})
	report, err := v.VerifyBatch(context.Background(), origDir, modDir, BatchOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, report))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	assert.Len(t, lines, 5, "header plus one row per file")
	assert.Contains(t, string(lines[0]), "file,category,confidence")
}
