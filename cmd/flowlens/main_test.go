package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckOptionValuesMissingValue(t *testing.T) {
	err := checkOptionValues([]string{"--workspace"})
	require.Error(t, err)
	assert.Equal(t, "Option '--workspace' requires a value", err.Error())

	err = checkOptionValues([]string{"--workspace", "--dump-graph", "out.json"})
	require.Error(t, err)
	assert.Equal(t, "Option '--workspace' requires a value", err.Error())
}

func TestCheckOptionValuesOK(t *testing.T) {
	assert.NoError(t, checkOptionValues([]string{"--workspace", "."}))
	assert.NoError(t, checkOptionValues([]string{"--workspace=.", "--flows", "Reports*"}))
	assert.NoError(t, checkOptionValues([]string{"--help"}))
}

func TestParseConcurrency(t *testing.T) {
	n, err := parseConcurrency("4")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = parseConcurrency("-1")
	assert.Error(t, err)

	_, err = parseConcurrency("nope")
	assert.Error(t, err)
}

func TestMatchesAny(t *testing.T) {
	assert.True(t, matchesAny([]string{"Reports*"}, "ReportsApi"))
	assert.False(t, matchesAny([]string{"Reports*"}, "DashboardApi"))
	assert.False(t, matchesAny(nil, "anything")) // empty pattern list handled by caller, not here
}

func TestDiscoverProjectsFiltersByPatternAndExcludesVendorDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ReportsApi"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "DashboardApi"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ReportsApi", "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ReportsApi", "main.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ReportsApi", "bin", "generated.go"), []byte("package bin\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "DashboardApi", "main.go"), []byte("package main\n"), 0o644))

	all, err := discoverProjects(root, nil)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, p := range all {
		names[p.name] = true
		for _, f := range p.files {
			assert.NotContains(t, f, string(filepath.Separator)+"bin"+string(filepath.Separator))
		}
	}
	assert.True(t, names["ReportsApi"])
	assert.True(t, names["DashboardApi"])

	filtered, err := discoverProjects(root, []string{"Reports*"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "ReportsApi", filtered[0].name)
}

// buildProjectGraphs must preserve project order in its output
// regardless of the concurrency-bounded goroutines' completion order, so
// the composer's input doesn't become a source of nondeterminism on top
// of its own sorted emission.
func TestBuildProjectGraphsPreservesOrderUnderConcurrency(t *testing.T) {
	root := t.TempDir()
	var projects []discoveredProject
	for _, name := range []string{"Alpha", "Beta", "Gamma", "Delta"} {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		src := "package " + name + "\n\ntype " + name + "Service struct{}\n"
		path := filepath.Join(dir, "service.go")
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
		projects = append(projects, discoveredProject{name: name, root: dir, files: []string{path}})
	}

	opts := &options{concurrency: 3}
	graphs := buildProjectGraphs(projects, opts)
	require.Len(t, graphs, len(projects))
	for i, g := range graphs {
		require.NotNil(t, g)
		found := false
		for _, n := range g.Nodes {
			if n.Project == projects[i].name {
				found = true
				break
			}
		}
		assert.True(t, found, "expected a node tagged with project %s in graph index %d", projects[i].name, i)
	}
}
