package dump_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-dutton/flowlens/internal/dump"
	"github.com/r-dutton/flowlens/internal/flowgraph"
)

func sampleGraph() *flowgraph.Graph {
	node := &flowgraph.Node{
		ID: "T:Demo.Widget", Type: "data.entity", Name: "Widget", Fqdn: "Demo.Widget",
		Assembly: "Demo", Project: "Demo", HasSpan: true, StartLine: 3, EndLine: 5,
		Tags:       map[string]struct{}{"entity": {}, "dto": {}},
		Properties: map[string]string{"key": "value"},
	}
	edge := &flowgraph.Edge{
		From: "T:Demo.Widget", To: "T:Demo.Other", Kind: "flow", Source: "builder", Confidence: 1,
		Evidence: []flowgraph.Evidence{{Path: "widget.go", StartLine: 3, EndLine: 5}},
	}
	return &flowgraph.Graph{Nodes: []*flowgraph.Node{node}, Edges: []*flowgraph.Edge{edge}}
}

func TestWriteShapeAndTagOrdering(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, dump.Write(&buf, sampleGraph()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	nodes := decoded["nodes"].([]any)
	require.Len(t, nodes, 1)
	n := nodes[0].(map[string]any)
	assert.Equal(t, "T:Demo.Widget", n["Id"])
	assert.Equal(t, []any{"dto", "entity"}, n["Tags"])

	span := n["Span"].(map[string]any)
	assert.Equal(t, float64(3), span["StartLine"])

	edges := decoded["edges"].([]any)
	require.Len(t, edges, 1)
	e := edges[0].(map[string]any)
	assert.Equal(t, "flow", e["Kind"])
}

// TestWriteIsDeterministic: dumping the same graph twice produces
// byte-identical output.
func TestWriteIsDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, dump.Write(&a, sampleGraph()))
	require.NoError(t, dump.Write(&b, sampleGraph()))
	assert.Equal(t, a.String(), b.String())
}

func TestWriteEmptyGraphHasEmptySlicesNotNull(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, dump.Write(&buf, &flowgraph.Graph{}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, []any{}, decoded["nodes"])
	assert.Equal(t, []any{}, decoded["edges"])
}
