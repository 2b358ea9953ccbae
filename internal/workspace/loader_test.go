package workspace_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-dutton/flowlens/internal/workspace"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadMergesWorkspaceAndMapFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "flow.workspace.json", `{
		"solutions": ["SolutionA.sln"],
		"services": {
			"ReportsApi": {"assembly_names": ["SolutionB"], "base_addresses": {"default": "http://reports.local"}}
		}
	}`)
	writeFile(t, dir, "flow.map.json", `{
		"services": {
			"ReportsApi": {"assembly_names": ["SolutionC"]}
		},
		"bindings": [{"client": "ReportsClient", "target_service": "ReportsApi"}]
	}`)

	ws := workspace.LoadWithEnv(dir, false)

	require.Contains(t, ws.SolutionPaths, filepath.Join(dir, "SolutionA.sln"))
	require.Contains(t, ws.Services, "ReportsApi")
	assert.ElementsMatch(t, []string{"SolutionB", "SolutionC"}, ws.Services["ReportsApi"].AssemblyNames)
	require.Len(t, ws.Bindings, 1)
	assert.Equal(t, "ReportsClient", ws.Bindings[0].Client)
}

func TestLoadFallsBackToSolutionDiscovery(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "bin"), 0o755))
	writeFile(t, dir, "Solution.sln", "")
	writeFile(t, filepath.Join(dir, "bin"), "Ignored.sln", "")

	ws := workspace.LoadWithEnv(dir, false)

	assert.Contains(t, ws.SolutionPaths, filepath.Join(dir, "Solution.sln"))
	for _, p := range ws.SolutionPaths {
		assert.NotContains(t, p, string(filepath.Separator)+"bin"+string(filepath.Separator))
	}
}

func TestLoadOnEmptyDirectoryIsValidEmptyWorkspace(t *testing.T) {
	dir := t.TempDir()
	ws := workspace.LoadWithEnv(dir, false)
	assert.Empty(t, ws.SolutionPaths)
	assert.NotNil(t, ws.Services)
}
