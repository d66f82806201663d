package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// compiledDB compiles testdata/models into a fresh database twice and
// returns its path.
func compiledDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cvxir.db")
	for range 2 {
		out, err := executeCompile(t, "json", filepath.Join("testdata", "models"), "--db", dbPath)
		require.NoError(t, err, out)
	}
	return dbPath
}

func executeCache(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewCacheCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func decodeData[T any](t *testing.T, out string) T {
	t.Helper()
	var resp struct {
		Status string `json:"status"`
		Data   T      `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp.Data
}

func formsByModel(t *testing.T, db string) map[string]FormEntry {
	t.Helper()
	out, err := executeCache(t, "json", "list", "--db", db)
	require.NoError(t, err, out)
	out2 := make(map[string]FormEntry)
	for _, f := range decodeData[[]FormEntry](t, out) {
		out2[f.Model] = f
	}
	return out2
}

func TestCacheList(t *testing.T) {
	db := compiledDB(t)

	forms := formsByModel(t, db)
	assert.Len(t, forms, 4, "recompiling reuses every form")
	assert.Equal(t, 6, forms["lasso"].Constraints)
	assert.Equal(t, "maximize", forms["portfolio"].Sense)

	out, err := executeCache(t, "json", "list", "--db", db, "--model", "lasso")
	require.NoError(t, err)
	entries := decodeData[[]FormEntry](t, out)
	require.Len(t, entries, 1)
	assert.Equal(t, "lasso", entries[0].Model)

	out, err = executeCache(t, "text", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, forms["scalar"].Hash[:12])
}

func TestCacheList_Empty(t *testing.T) {
	out, err := executeCache(t, "text", "list", "--db", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "No cached forms.")
}

func TestCacheRequiresDB(t *testing.T) {
	_, err := executeCache(t, "text", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"db" not set`)
}

func TestCacheShow(t *testing.T) {
	db := compiledDB(t)
	lasso := formsByModel(t, db)["lasso"]

	out, err := executeCache(t, "json", "show", lasso.Hash, "--db", db)
	require.NoError(t, err, out)
	detail := decodeData[FormDetail](t, out)
	assert.Equal(t, lasso.Hash, detail.Hash)
	require.Len(t, detail.Runs, 2)
	assert.False(t, detail.Runs[0].CacheHit)
	assert.True(t, detail.Runs[1].CacheHit)
	assert.Len(t, detail.Leaves, 6, "four model leaves and two aux variables")

	out, err = executeCache(t, "text", "show", lasso.Hash, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Form "+lasso.Hash)
	assert.Contains(t, out, "Runs: 2")
}

func TestCacheShow_NotFound(t *testing.T) {
	db := compiledDB(t)
	_, err := executeCache(t, "text", "show", "deadbeef", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "form deadbeef not found")
}

func TestCacheRuns(t *testing.T) {
	db := compiledDB(t)

	out, err := executeCache(t, "json", "runs", "--db", db)
	require.NoError(t, err)
	assert.Len(t, decodeData[[]RunEntry](t, out), 8)

	out, err = executeCache(t, "json", "runs", "--db", db, "--model", "lasso")
	require.NoError(t, err)
	runs := decodeData[[]RunEntry](t, out)
	require.Len(t, runs, 2)
	assert.Less(t, runs[0].Seq, runs[1].Seq)
	assert.Equal(t, [][]float64{{0.5}}, runs[0].Parameters["gamma"])
	assert.Equal(t, [][]float64{{1}, {2}}, runs[0].Parameters["b"])
}

func TestCacheRun(t *testing.T) {
	db := compiledDB(t)

	out, err := executeCache(t, "json", "runs", "--db", db, "--model", "portfolio")
	require.NoError(t, err)
	runs := decodeData[[]RunEntry](t, out)
	require.NotEmpty(t, runs)
	id := runs[0].ID

	out, err = executeCache(t, "json", "run", id, "--db", db)
	require.NoError(t, err, out)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, id, resp.RunID)

	entry := decodeData[RunEntry](t, out)
	require.NotNil(t, entry.Complete)
	assert.False(t, *entry.Complete)
	assert.Equal(t, []string{"mu"}, entry.Unbound)

	out, err = executeCache(t, "text", "run", id, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "gamma = [[0.1]]")
	assert.Contains(t, out, "mu unbound")
}

func TestCacheRun_NotFound(t *testing.T) {
	db := compiledDB(t)
	_, err := executeCache(t, "json", "run", "nope", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCacheHistory(t *testing.T) {
	db := compiledDB(t)

	out, err := executeCache(t, "json", "history", "lasso", "gamma", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, [][][]float64{{{0.5}}, {{0.5}}}, decodeData[[][][]float64](t, out))

	out, err = executeCache(t, "text", "history", "lasso", "nothing", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No values recorded for lasso.nothing.")
}

func TestCachePending(t *testing.T) {
	db := compiledDB(t)

	out, err := executeCache(t, "text", "pending", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "(portfolio): unbound [mu]")

	out, err = executeCache(t, "text", "pending", "--db", db, "--model", "lasso")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Every run bound all parameters")
}
