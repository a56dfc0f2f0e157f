package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/tp-endpoint-poc/pkg/ndarray"
)

func TestRunConvertsAndVerifies(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.json")
	out := filepath.Join(dir, "out.npy")
	require.NoError(t, os.WriteFile(in, []byte(`[[0.5, 1.5], [2.5, 3.5]]`), 0o644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-verify", "-log-level", "error", in, out}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "shape [2 2], 4 elements, verified")

	got, err := ndarray.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, got.Shape)
	assert.Equal(t, []float64{0.5, 1.5, 2.5, 3.5}, got.Data)
}

func TestRunHonorsLogLevelEnv(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "a.json")
	out := filepath.Join(dir, "b.bin")
	require.NoError(t, os.WriteFile(in, []byte(`[1, 2]`), 0o644))

	t.Setenv("LOG_LEVEL", "debug")
	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run(context.Background(), []string{in, out}, &stdout, &stderr), stderr.String())
	assert.Contains(t, stderr.String(), `"message":"converted"`)

	// An explicit flag wins over the environment.
	stderr.Reset()
	require.Equal(t, 0, run(context.Background(), []string{"-log-level", "warn", in, out}, &stdout, &stderr))
	assert.NotContains(t, stderr.String(), `"message":"converted"`)
}

func TestRunUsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), []string{"only-one.json"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage: npyconv [flags] <input> <output>")
	assert.Contains(t, stderr.String(), ".bin, .json, .npy")

	stderr.Reset()
	assert.Equal(t, 2, run(context.Background(), []string{"-no-such-flag", "a.json", "b.npy"}, &stdout, &stderr))
}

func TestRunUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.json")
	out := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(in, []byte(`[1]`), 0o644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-log-level", "error", in, out}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "ERROR: output:")
	assert.NoFileExists(t, out)
}
