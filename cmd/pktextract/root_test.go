package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frozenpine/pktextract/internal/recordtest"
)

func writeInput(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "records.raw")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	return path
}

func runCLI(t *testing.T, args ...string) (int, string) {
	t.Helper()

	var stderr bytes.Buffer
	code := execute(context.Background(), newRootCmd(), args, &stderr)

	return code, stderr.String()
}

func TestExecuteUsage(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"only-input"},
		{"a", "b", "c"},
	} {
		code, stderr := runCLI(t, args...)

		assert.Equal(t, exitUsage, code, "args %v", args)
		assert.Contains(t, stderr, "Usage:")
	}
}

func TestExecuteUnknownFlag(t *testing.T) {
	code, _ := runCLI(t, "--bogus", "in", "out")

	assert.Equal(t, exitUsage, code)
}

func TestExecuteUsageDoesNotTouchOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.bin")

	code, _ := runCLI(t, writeInput(t, nil), out, "extra")

	assert.Equal(t, exitUsage, code)
	assert.NoFileExists(t, out)
}

func TestExecuteExtract(t *testing.T) {
	input, want := recordtest.Stream(t,
		recordtest.Record{Payload: []byte("hello ")},
		recordtest.Record{IPOptions: 8, TCPOptions: 4, Payload: []byte("world")},
	)
	out := filepath.Join(t.TempDir(), "out.bin")

	code, stderr := runCLI(t, writeInput(t, input), out, "--log-level", "debug")

	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stderr, "Record extracted")

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExecuteEmptyInputTruncatesOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(out, []byte("stale content"), 0o644))

	code, stderr := runCLI(t, writeInput(t, nil), out)

	require.Equal(t, exitOK, code, stderr)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExecuteTruncatedInput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.bin")

	code, stderr := runCLI(t, writeInput(t, make([]byte, 10)), out)

	assert.Equal(t, exitFail, code)
	assert.Contains(t, stderr, "couldn't read ip header")
	assert.Contains(t, stderr, "truncated record")
}

func TestExecuteMissingInput(t *testing.T) {
	dir := t.TempDir()

	code, stderr := runCLI(t, filepath.Join(dir, "missing.raw"), filepath.Join(dir, "out.bin"))

	assert.Equal(t, exitFail, code)
	assert.Contains(t, stderr, "couldn't open input")
	assert.NoFileExists(t, filepath.Join(dir, "out.bin"))
}

func TestExecuteBadOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "no", "such", "dir", "out.bin")

	code, stderr := runCLI(t, writeInput(t, nil), out)

	assert.Equal(t, exitFail, code)
	assert.Contains(t, stderr, "couldn't open output")
}

func TestExecuteUnderflowClamp(t *testing.T) {
	input := recordtest.Raw(5, 5, 20, nil, nil, nil)
	next, want := recordtest.Stream(t, recordtest.Record{Payload: []byte("tail")})
	input = append(input, next...)
	out := filepath.Join(t.TempDir(), "out.bin")

	code, stderr := runCLI(t, writeInput(t, input), out)
	assert.Equal(t, exitFail, code)
	assert.Contains(t, stderr, "total length smaller than headers")

	t.Setenv("PKTEXTRACT_UNDERFLOW", "clamp")

	code, stderr = runCLI(t, writeInput(t, input), out)
	require.Equal(t, exitOK, code, stderr)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExecuteInvalidSettings(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, nil)
	out := filepath.Join(dir, "out.bin")

	code, stderr := runCLI(t, input, out, "--underflow", "wrap")

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "couldn't load config")
	assert.Contains(t, stderr, "unknown underflow policy")
	assert.Contains(t, stderr, "Usage:")
	assert.NoFileExists(t, out)

	code, stderr = runCLI(t, input, out, "--config", filepath.Join(dir, "missing.yaml"))

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "couldn't load config")

	code, _ = runCLI(t, input, out, "--log-format", "xml")

	assert.Equal(t, exitUsage, code)
	assert.NoFileExists(t, out)
}
