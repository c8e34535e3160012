package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI runs the app with args and stdin, returning stdout.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DRAFTAGENT_PROVIDER", "local")
	t.Setenv("DRAFTAGENT_DB", "")
	var out bytes.Buffer
	app := newCLIApp(strings.NewReader(stdin), &out)
	err := app.Run(append([]string{"draftagent"}, args...))
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestTypesCommand(t *testing.T) {
	out, err := runCLI(t, "", "types")
	require.NoError(t, err)
	assert.Contains(t, out, "nda")
	assert.Contains(t, out, "residential_lease")
}

func TestSchemaCommand(t *testing.T) {
	out, err := runCLI(t, "", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "user_input")
	assert.Contains(t, out, "Patch input")
}

func TestPatchCommand(t *testing.T) {
	input := `{"document":"Hello [Name].","values":[{"id":"name","label":"Name","user_input":"Alice","field_type":"text","occurrences":[{"text":"[Name]","position":{"start":6,"end":12}}]}]}`

	out, err := runCLI(t, "", "patch", "--document-only", "--file", writeFile(t, "patch.json", input))
	require.NoError(t, err)
	assert.Equal(t, "Hello Alice.\n", out)

	out, err = runCLI(t, input, "patch")
	require.NoError(t, err)
	assert.Contains(t, out, `"updated_document": "Hello Alice."`)
}

func TestPatchCommand_RejectsEmptyInput(t *testing.T) {
	_, err := runCLI(t, "", "patch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_REQUEST")
}

func TestPreviewCommand(t *testing.T) {
	path := writeFile(t, "doc.md", "# Agreement\n\nBetween Acme and Bob.")
	out, err := runCLI(t, "", "preview", "--title", "NDA", path)
	require.NoError(t, err)
	assert.Contains(t, out, "<title>NDA</title>")
	assert.Contains(t, out, "<h1>Agreement</h1>")
}

func TestChatCommand(t *testing.T) {
	out, err := runCLI(t, "I need an NDA\n", "chat", "--session", "cli-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Session cli-1.")
	assert.Contains(t, out, "Non-Disclosure Agreement")
}

func TestChatCommand_CancelStartsNewSession(t *testing.T) {
	out, err := runCLI(t, "I need an NDA\ncancel\n", "chat", "--session", "cli-2")
	require.NoError(t, err)
	assert.Contains(t, out, "Drafting cancelled.")
	assert.Contains(t, out, "Session cli-2 is abandoned.")
}

func TestSessionsCommand_SQLiteStore(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "store:\n  driver: sqlite\n  path: " + filepath.Join(dir, "sessions.db") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	_, err := runCLI(t, "I need an NDA\n", "--config", cfgPath, "chat", "--session", "stored-1")
	require.NoError(t, err)

	out, err := runCLI(t, "", "--config", cfgPath, "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "stored-1")
	assert.Contains(t, out, "clarify_request")
}

func TestSessionsCommand_MemoryStore(t *testing.T) {
	_, err := runCLI(t, "", "sessions")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
}
