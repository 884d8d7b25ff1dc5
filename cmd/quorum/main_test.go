package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var expenseFlow = filepath.Join("..", "..", "pkg", "flow", "testdata", "expense.yaml")

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "quorum version")
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", expenseFlow)
	require.NoError(t, err)
	assert.Contains(t, out, "expense@1 is valid (7 nodes)")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"flow_id":"bad","version":"1","nodes":[
		{"id":"start","type":"start","next":"ghost"},
		{"id":"end","type":"end"}]}`), 0o644))

	out, err = execute(t, "validate", expenseFlow, bad)
	assert.ErrorContains(t, err, "1 of 2 flow(s) invalid")
	assert.Contains(t, out, "dangling_reference")
}

func TestRunAndTraceCommands(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "run", expenseFlow,
		"--store", "file", "--dir", dir,
		"--set", "amount=12000", "--instance", "cli-run", "--json")
	require.NoError(t, err)

	var res domain.ExecutionResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.Contains(t, res.Visited(), "cfo_approve")

	out, err = execute(t, "trace", "cli-run", "--store", "file", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "# Run `cli-run`")
	assert.Contains(t, out, "cfo_approve")

	out, err = execute(t, "graph", expenseFlow, "--trace", "cli-run", "--store", "file", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "class cfo_approve visited;")
}

func TestRunCommand_BadAssignment(t *testing.T) {
	_, err := execute(t, "run", expenseFlow, "--set", "amount")
	assert.ErrorContains(t, err, "expected key=value")
}
