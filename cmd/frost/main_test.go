package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func runWith(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	status := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return status, stdout.String(), stderr.String()
}

func TestParse(t *testing.T) {
	status, stdout, stderr := runWith(t, `{ "a" : [1, 2] }`, "parse")
	assert.Equal(t, status, 0, stderr)
	assert.Equal(t, stdout, "{\"a\":[1,2]}\n")

	status, _, stderr = runWith(t, `{"a":`, "parse")
	assert.Equal(t, status, 1)
	assert.Assert(t, strings.HasPrefix(stderr, "frost: parse: "), stderr)
}

// Values printed before a failure reach the output.
func TestExtractFlushesOnError(t *testing.T) {
	status, stdout, stderr := runWith(t, `{"a": [1, {"$type": "Nope"}, 3]}`, "extract", "a")
	assert.Equal(t, status, 1)
	assert.Equal(t, stdout, "1\n")
	assert.Assert(t, strings.Contains(stderr, "Nope"), stderr)
}

func TestBeautifyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.json")
	assert.NilError(t, os.WriteFile(path, []byte(`{"a":{}}`), 0o600))
	status, stdout, stderr := runWith(t, "", "beautify", path)
	assert.Equal(t, status, 0, stderr)
	assert.Equal(t, stdout, "{\n   \"a\": {}\n}\n")

	status, _, stderr = runWith(t, "", "beautify", filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, status, 1)
	assert.Assert(t, strings.Contains(stderr, "open file"), stderr)
}

func TestUsage(t *testing.T) {
	status, _, stderr := runWith(t, "")
	assert.Equal(t, status, 1)
	assert.Assert(t, strings.Contains(stderr, "Usage:"))

	status, _, stderr = runWith(t, "", "frobnicate")
	assert.Equal(t, status, 1)
	assert.Assert(t, strings.Contains(stderr, "unknown command: frobnicate"))

	status, _, stderr = runWith(t, "", "-config")
	assert.Equal(t, status, 1)
	assert.Assert(t, strings.Contains(stderr, "missing file name"))
}
