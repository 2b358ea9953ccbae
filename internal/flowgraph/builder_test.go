package flowgraph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-dutton/flowlens/internal/flowgraph"
	"github.com/r-dutton/flowlens/internal/tree"
)

const controllerSource = `package demo

type ReportsController struct{}

func (c *ReportsController) Get() {}
`

// TestBuilderProducesControllerAndActionNodes: a controller's action
// method is tagged via its receiver type, since Go methods aren't AST
// descendants of their receiver's type_declaration.
func TestBuilderProducesControllerAndActionNodes(t *testing.T) {
	comp := tree.NewCompilation("SolutionB")
	require.NoError(t, comp.AddSource("reports_controller.go", []byte(controllerSource)))
	prov := tree.NewProvider(comp)

	b := flowgraph.NewBuilder(prov, "SolutionB", "SolutionB")
	g := b.Build(comp.SyntaxTrees(), comp.GlobalNamespace())

	var sawController, sawAction bool
	for _, n := range g.Nodes {
		if n.Type == "endpoint.controller" {
			sawController = true
			assert.Equal(t, "ReportsController", n.Name)
		}
		if n.Type == "endpoint.controller_action" {
			sawAction = true
		}
	}
	assert.True(t, sawController, "expected a controller node")
	assert.True(t, sawAction, "expected a controller action node")
}

// TestGraphEmissionIsSorted: nodes by fqdn, edges by (from,to,kind),
// ordinal.
func TestGraphEmissionIsSorted(t *testing.T) {
	comp := tree.NewCompilation("SolutionB")
	require.NoError(t, comp.AddSource("reports_controller.go", []byte(controllerSource)))
	prov := tree.NewProvider(comp)

	b := flowgraph.NewBuilder(prov, "SolutionB", "SolutionB")
	g := b.Build(comp.SyntaxTrees(), comp.GlobalNamespace())

	for i := 1; i < len(g.Nodes); i++ {
		assert.LessOrEqual(t, g.Nodes[i-1].Fqdn, g.Nodes[i].Fqdn)
	}
	for i := 1; i < len(g.Edges); i++ {
		prev, cur := g.Edges[i-1], g.Edges[i]
		if prev.From != cur.From {
			assert.LessOrEqual(t, prev.From, cur.From)
		}
	}
}

const mediatorSource = `package demo

type IRequest interface{}

type IRequestHandler[T any] interface {
	Handle(r T)
}

type CreateReport struct {
	IRequest
}

type CreateReportHandler struct {
	IRequestHandler[CreateReport]
}

type ReportsController struct{}

func (c *ReportsController) Post(r CreateReport) {}
`

// TestMediatorRequestPropagatesToHandler: a request type flows to the
// handler whose IRequestHandler type argument names it, even though the
// handler is never referenced syntactically from the request.
func TestMediatorRequestPropagatesToHandler(t *testing.T) {
	comp := tree.NewCompilation("Cqrs")
	require.NoError(t, comp.AddSource("mediator.go", []byte(mediatorSource)))
	prov := tree.NewProvider(comp)

	b := flowgraph.NewBuilder(prov, "Cqrs", "Cqrs")
	g := b.Build(comp.SyntaxTrees(), comp.GlobalNamespace())

	types := map[string]string{}
	for _, n := range g.Nodes {
		types[n.ID] = n.Type
	}
	assert.Equal(t, "cqrs.request", types["T:Cqrs.CreateReport"])
	assert.Equal(t, "cqrs.handler", types["T:Cqrs.CreateReportHandler"])

	var sawHandlerEdge bool
	for _, e := range g.Edges {
		if e.From == "T:Cqrs.CreateReport" && e.To == "T:Cqrs.CreateReportHandler" && e.Kind == "flow" {
			sawHandlerEdge = true
		}
	}
	assert.True(t, sawHandlerEdge, "expected a flow edge from the request to its mediator handler")
}

// TestBuildContextCancellation: on cancellation the partial state is
// discarded and no graph is emitted.
func TestBuildContextCancellation(t *testing.T) {
	comp := tree.NewCompilation("SolutionB")
	require.NoError(t, comp.AddSource("reports_controller.go", []byte(controllerSource)))
	prov := tree.NewProvider(comp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := flowgraph.NewBuilder(prov, "SolutionB", "SolutionB")
	g, err := b.BuildContext(ctx, comp.SyntaxTrees(), comp.GlobalNamespace())
	require.Error(t, err)
	assert.Nil(t, g)
}

// TestMaxDepthBoundsPropagation: a bounded builder never yields more
// nodes than an unbounded one over the same compilation.
func TestMaxDepthBoundsPropagation(t *testing.T) {
	build := func(maxDepth int) *flowgraph.Graph {
		comp := tree.NewCompilation("Cqrs")
		require.NoError(t, comp.AddSource("mediator.go", []byte(mediatorSource)))
		prov := tree.NewProvider(comp)
		b := flowgraph.NewBuilder(prov, "Cqrs", "Cqrs")
		b.MaxDepth = maxDepth
		return b.Build(comp.SyntaxTrees(), comp.GlobalNamespace())
	}

	unbounded := build(0)
	bounded := build(1)
	assert.LessOrEqual(t, len(bounded.Nodes), len(unbounded.Nodes))
	assert.LessOrEqual(t, len(bounded.Edges), len(unbounded.Edges))
}

// TestBuildDeterministic: building the same compilation twice produces
// an identical node/edge set.
func TestBuildDeterministic(t *testing.T) {
	build := func() *flowgraph.Graph {
		comp := tree.NewCompilation("SolutionB")
		require.NoError(t, comp.AddSource("reports_controller.go", []byte(controllerSource)))
		prov := tree.NewProvider(comp)
		b := flowgraph.NewBuilder(prov, "SolutionB", "SolutionB")
		return b.Build(comp.SyntaxTrees(), comp.GlobalNamespace())
	}

	g1 := build()
	g2 := build()
	require.Equal(t, len(g1.Nodes), len(g2.Nodes))
	for i := range g1.Nodes {
		assert.Equal(t, g1.Nodes[i].ID, g2.Nodes[i].ID)
		assert.Equal(t, g1.Nodes[i].Type, g2.Nodes[i].Type)
	}
}
