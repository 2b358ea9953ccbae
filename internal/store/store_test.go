package store_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-dutton/flowlens/internal/flowgraph"
	"github.com/r-dutton/flowlens/internal/store"
)

func sampleGraph() *flowgraph.Graph {
	node := &flowgraph.Node{
		ID: "T:Demo.Widget", Type: "data.entity", Name: "Widget", Fqdn: "Demo.Widget",
		Tags: map[string]struct{}{}, Properties: map[string]string{},
	}
	return &flowgraph.Graph{Nodes: []*flowgraph.Node{node}}
}

func TestSaveAndLatestRoundTrip(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "snapshots.db")
	s, err := store.Open(dsn, false)
	require.NoError(t, err)
	defer s.Close()

	saved, err := s.Save("/workspace/demo", "2026-01-01T00:00:00Z", sampleGraph())
	require.NoError(t, err)
	assert.Equal(t, 1, saved.NodeCount)
	assert.Equal(t, 0, saved.EdgeCount)

	latest, err := s.Latest("/workspace/demo", "")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, saved.ID, latest.ID)
	assert.JSONEq(t, string(saved.Nodes), string(latest.Nodes))
}

func TestLatestReturnsNilWhenNoSnapshotExists(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "snapshots.db")
	s, err := store.Open(dsn, false)
	require.NoError(t, err)
	defer s.Close()

	latest, err := s.Latest("/workspace/unknown", "")
	require.NoError(t, err)
	assert.Nil(t, latest)
}
