package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: single_source
description: One source, one insert
merge_points:
  - name: Point
    sources:
      - {name: A, table: a, key: [s], attributes: [x]}
setup:
  - source: A
    rows: [{s: 3, x: hello}]
flow:
  - insert: [{s: 3}]
    expect: {inserted: 1}
assertions:
  - type: record_count
    count: 1
`

const failingScenario = `
name: wrong_count
description: Expects two records from one insert
merge_points:
  - name: Point
    sources:
      - {name: A, table: a, key: [s]}
setup:
  - source: A
    rows: [{s: 3}]
flow:
  - insert: [{s: 3}]
assertions:
  - type: record_count
    count: 2
`

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeScenarios(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentDir(t *testing.T) {
	_, err := runTestCommand(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := runTestCommand(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, err := runTestCommand(t, "text",
		filepath.Join("..", "harness", "testdata", "scenarios"),
		"--golden", filepath.Join("..", "harness", "testdata", "golden"),
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "\u2713 tracking_lifecycle")
	assert.Contains(t, out, "\u2713 purge_dangling")
	assert.Contains(t, out, "Test Summary: 3 passed, 0 failed, 3 total")
	assert.Contains(t, out, "\u2713 All scenarios passed")
}

func TestTestCommandFailure(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"a.yaml": passingScenario,
		"b.yaml": failingScenario,
	})

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "\u2713 single_source")
	assert.Contains(t, out, "\u2717 wrong_count")
	assert.Contains(t, out, "Assertion failed: record_count")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandJSON(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"a.yaml":   passingScenario,
		"b.yaml":   failingScenario,
		"c.yaml":   "name: broken\n",
		"notes.md": "ignored",
	})

	out, err := runTestCommand(t, "json", dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 3, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 2, resp.Data.Failed)

	require.Len(t, resp.Data.Scenarios, 3)
	assert.Equal(t, "c.yaml", resp.Data.Scenarios[2].Name)
	assert.Contains(t, resp.Data.Scenarios[2].Errors[0], "failed to load scenario")
}

func TestTestCommandFilter(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"pass_one.yaml": passingScenario,
		"fail_one.yaml": failingScenario,
	})

	out, err := runTestCommand(t, "text", dir, "--filter", "pass_*")
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"a.yaml": passingScenario})
	goldenPath := filepath.Join(dir, "golden", "single_source.golden")

	out, err := runTestCommand(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "(golden updated)")

	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "scenario: single_source")
	assert.Contains(t, string(data), "insert keys=1 inserted=1")

	_, err = runTestCommand(t, "text", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte("stale\n"), 0o644))
	out, err = runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "snapshot does not match golden file")
}
