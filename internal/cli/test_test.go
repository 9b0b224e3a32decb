package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inlineScenario = `name: inline
description: one purchase
now: 2000
steps:
  - deliver:
      verified: true
      transaction: { transactionId: "1", productId: com.app.pro, purchaseDate: 1000 }
assertions:
  - type: purchased
    product: com.app.pro
    expect: true
`

func TestTest_MissingDir(t *testing.T) {
	_, err := runCommand(t, NewTestCommand(textOpts()), "testdata/nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTest_EmptyDir(t *testing.T) {
	out, err := runCommand(t, NewTestCommand(textOpts()), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTest_HarnessScenariosPass(t *testing.T) {
	out, err := runCommand(t, NewTestCommand(jsonOpts()), "../harness/testdata")
	require.NoError(t, err, out)

	var result TestResult
	decodeEnvelope(t, out, &result)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Passed)
	assert.Zero(t, result.Failed)
}

func TestTest_Filter(t *testing.T) {
	out, err := runCommand(t, NewTestCommand(textOpts()), "../harness/testdata", "--filter", "refund*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ refund_revokes")
	assert.NotContains(t, out, "subscription_lifecycle")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	for _, name := range []string{"a.yaml", "b.yml", "notes.txt", "golden/c.yaml"} {
		require.NoError(t, writeFile(filepath.Join(dir, name), "x"))
	}

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yml")}, files)

	files, err = findScenarioFiles(dir, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yml")}, files)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
}

func TestTest_UpdateWritesGolden(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(dir, "inline.yaml"), inlineScenario))

	_, err := runCommand(t, NewTestCommand(textOpts()), dir, "--update")
	require.NoError(t, err)

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "inline.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"inline"`)

	// A second run compares against the file it just wrote.
	_, err = runCommand(t, NewTestCommand(textOpts()), dir)
	require.NoError(t, err)
}

func TestTest_GoldenMismatchFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(dir, "inline.yaml"), inlineScenario))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	require.NoError(t, writeFile(filepath.Join(dir, "golden", "inline.golden"), "{}"))

	out, err := runCommand(t, NewTestCommand(textOpts()), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "does not match golden file")
}
