package compose_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-dutton/flowlens/internal/compose"
	"github.com/r-dutton/flowlens/internal/flowgraph"
)

func reportsClientGraph() *flowgraph.Graph {
	client := &flowgraph.Node{
		ID: "T:SolutionA.ReportsClient", Type: "infra.http_client",
		Name: "ReportsClient", Fqdn: "SolutionA.ReportsClient",
		Assembly: "SolutionA", Tags: map[string]struct{}{}, Properties: map[string]string{},
	}
	call := &flowgraph.Node{
		ID: "M:SolutionA.ReportsClient.GetReportsAsync:call", Type: "infra.http_call",
		Name: "call", Fqdn: "SolutionA.ReportsClient.GetReportsAsync:call",
		Assembly: "SolutionA", Tags: map[string]struct{}{},
		Properties: map[string]string{
			"caller_id":   "T:SolutionA.ReportsClient",
			"client_type": "ReportsClient",
			"http_method": "GET",
			"full_route":  "/reports",
		},
	}
	edge := &flowgraph.Edge{From: "T:SolutionA.ReportsClient", To: call.ID, Kind: "flow", Source: "builder", Confidence: 1}
	return &flowgraph.Graph{Nodes: []*flowgraph.Node{client, call}, Edges: []*flowgraph.Edge{edge}}
}

func dashboardControllerGraph() *flowgraph.Graph {
	action := &flowgraph.Node{
		ID: "M:SolutionB.ReportsController.Get", Type: "endpoint.controller_action",
		Name: "ReportsController.Get()", Fqdn: "SolutionB.ReportsController.Get",
		Assembly: "SolutionB", Tags: map[string]struct{}{},
		Properties: map[string]string{"http_method": "GET", "full_route": "/reports"},
	}
	return &flowgraph.Graph{Nodes: []*flowgraph.Node{action}}
}

// TestComposeRemoteAugmentation: a workspace
// binding from SolutionA.ReportsClient to a service whose assemblies
// include SolutionB should produce a single remote edge from the call to
// the action, in addition to the caller's flow edge.
func TestComposeRemoteAugmentation(t *testing.T) {
	ws := &compose.WorkspaceDefinition{
		Services: map[string]*compose.ServiceDefinition{
			"ReportsApi": {Name: "ReportsApi", AssemblyNames: []string{"SolutionB"}},
		},
		Bindings: []compose.Binding{
			{Client: "ReportsClient", TargetService: "ReportsApi"},
		},
	}

	g := compose.Compose([]*flowgraph.Graph{reportsClientGraph(), dashboardControllerGraph()}, ws)

	var httpCalls, remoteEdges, flowEdges int
	for _, n := range g.Nodes {
		if n.Type == "infra.http_call" {
			httpCalls++
		}
	}
	for _, e := range g.Edges {
		switch e.Kind {
		case "remote":
			remoteEdges++
			assert.Equal(t, "M:SolutionA.ReportsClient.GetReportsAsync:call", e.From)
			assert.Equal(t, "M:SolutionB.ReportsController.Get", e.To)
		case "flow":
			flowEdges++
		}
	}
	require.Equal(t, 1, httpCalls)
	assert.Equal(t, 1, remoteEdges)
	assert.Equal(t, 1, flowEdges)
}

// TestComposeMissingMetadataOnlyFlowEdges:
// an http_call node with no verb/route/client/base-url/assembly evidence
// produces no remote edge, only a flow edge from its caller.
func TestComposeMissingMetadataOnlyFlowEdges(t *testing.T) {
	caller := &flowgraph.Node{
		ID: "T:SolutionA.Unknown", Type: "code.type", Fqdn: "SolutionA.Unknown",
		Tags: map[string]struct{}{}, Properties: map[string]string{},
	}
	call := &flowgraph.Node{
		ID: "M:SolutionA.Unknown.Call:call", Type: "infra.http_call",
		Fqdn: "SolutionA.Unknown.Call:call",
		Tags: map[string]struct{}{}, Properties: map[string]string{"caller_id": "T:SolutionA.Unknown"},
	}
	edge := &flowgraph.Edge{From: caller.ID, To: call.ID, Kind: "flow", Source: "builder", Confidence: 1}
	g := &flowgraph.Graph{Nodes: []*flowgraph.Node{caller, call}, Edges: []*flowgraph.Edge{edge}}

	out := compose.Compose([]*flowgraph.Graph{g}, compose.EmptyWorkspace())

	for _, e := range out.Edges {
		assert.NotEqual(t, "remote", e.Kind)
	}
	require.Len(t, out.Edges, 1)
	assert.Equal(t, "flow", out.Edges[0].Kind)
}

func TestWorkspaceMergeIsAdditive(t *testing.T) {
	a := &compose.WorkspaceDefinition{
		Services: map[string]*compose.ServiceDefinition{
			"ReportsApi": {Name: "ReportsApi", AssemblyNames: []string{"SolutionB"}},
		},
	}
	b := &compose.WorkspaceDefinition{
		Services: map[string]*compose.ServiceDefinition{
			"ReportsApi": {Name: "ReportsApi", AssemblyNames: []string{"SolutionC"}},
		},
		Bindings: []compose.Binding{{Client: "X", TargetService: "ReportsApi"}},
	}
	a.Merge(b)

	require.Len(t, a.Services, 1)
	assert.ElementsMatch(t, []string{"SolutionB", "SolutionC"}, a.Services["ReportsApi"].AssemblyNames)
	assert.Len(t, a.Bindings, 1)
}
