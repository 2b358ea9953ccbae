package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-dutton/flowlens/internal/resolve"
	"github.com/r-dutton/flowlens/internal/tree"
)

const sampleSource = `package demo

type Widget struct {
	Count int
}

func (w *Widget) Name() string { return "widget" }
`

func newContext(t *testing.T, src string, nodePicker func(tree.Provider, tree.Node) tree.Node) (*resolve.Context, tree.Provider) {
	t.Helper()
	comp := tree.NewCompilation("demo")
	require.NoError(t, comp.AddSource("demo.go", []byte(src)))
	prov := tree.NewProvider(comp)
	trees := comp.SyntaxTrees()
	require.Len(t, trees, 1)
	root := trees[0]
	node := nodePicker(prov, root)
	require.NotNil(t, node)
	return &resolve.Context{
		Node:     node,
		Scope:    root,
		Root:     root,
		Provider: prov,
		Metadata: resolve.NewMetadata(map[string]any{"Project": "demo.api"}),
		State:    resolve.NewMatchState(),
	}, prov
}

// findFirst returns the first descendant (including n itself) whose kind
// matches want.
func findFirst(prov tree.Provider, n tree.Node, want tree.Kind) tree.Node {
	if prov.KindOf(n) == want {
		return n
	}
	for _, c := range prov.ChildrenOf(n) {
		if found := findFirst(prov, c, want); found != nil {
			return found
		}
	}
	return nil
}

func TestResolveSymbolName(t *testing.T) {
	ctx, _ := newContext(t, sampleSource, func(p tree.Provider, root tree.Node) tree.Node {
		return findFirst(p, root, tree.KindTypeDeclaration)
	})
	v, ok := resolve.Resolve("Symbol.Name", ctx)
	require.True(t, ok)
	assert.Equal(t, "Widget", v)
}

func TestResolveDisplayString(t *testing.T) {
	ctx, _ := newContext(t, sampleSource, func(p tree.Provider, root tree.Node) tree.Node {
		return findFirst(p, root, tree.KindTypeDeclaration)
	})
	v, ok := resolve.Resolve("Symbol.DisplayString", ctx)
	require.True(t, ok)
	assert.NotEmpty(t, v)
}

func TestResolveMetadataRoot(t *testing.T) {
	ctx, _ := newContext(t, sampleSource, func(p tree.Provider, root tree.Node) tree.Node {
		return root
	})
	v, ok := resolve.Resolve("@project", ctx)
	require.True(t, ok)
	assert.Equal(t, "demo.api", v)
}

func TestResolveCaptureShadowsMetadata(t *testing.T) {
	ctx, _ := newContext(t, sampleSource, func(p tree.Provider, root tree.Node) tree.Node {
		return root
	})
	ctx.State.Set("project", "from-capture")
	v, ok := resolve.Resolve("@project", ctx)
	require.True(t, ok)
	assert.Equal(t, "from-capture", v)
}

func TestResolveUnknownPropertyFails(t *testing.T) {
	ctx, _ := newContext(t, sampleSource, func(p tree.Provider, root tree.Node) tree.Node {
		return findFirst(p, root, tree.KindTypeDeclaration)
	})
	_, ok := resolve.Resolve("Symbol.NoSuchMember", ctx)
	assert.False(t, ok)
}

func TestResolveIntNonNumericFails(t *testing.T) {
	ctx, _ := newContext(t, sampleSource, func(p tree.Provider, root tree.Node) tree.Node {
		return findFirst(p, root, tree.KindTypeDeclaration)
	})
	sym := ctx.Symbol()
	require.NotNil(t, sym)
	n, ok := resolve.ResolveInt("Symbol.Name", ctx)
	// "Widget" is not numeric, so this should fail to parse as an integer.
	assert.False(t, ok)
	assert.Zero(t, n)
}

func TestMatchStringOperators(t *testing.T) {
	cases := []struct {
		op              string
		value, literal  string
		caseInsensitive bool
		negate          bool
		want            bool
	}{
		{"=", "Foo", "Foo", false, false, true},
		{"=", "Foo", "foo", false, false, false},
		{"=", "Foo", "foo", true, false, true},
		{"*=", "GetReportsAsync", "Reports", false, false, true},
		{"^=", "GetReportsAsync", "Get", false, false, true},
		{"$=", "GetReportsAsync", "Async", false, false, true},
		{"~=", "abstract public", "public", false, false, true},
		{"~=", "abstractpublic", "public", false, false, false},
		{"|=", "en-US", "en", false, false, true},
		{"|=", "enUS", "en", false, false, false},
		{"=", "Foo", "Bar", false, true, true},
	}
	for _, c := range cases {
		got := resolve.MatchString(c.op, c.value, c.literal, c.caseInsensitive, c.negate)
		assert.Equalf(t, c.want, got, "op=%s value=%q literal=%q ci=%v neg=%v", c.op, c.value, c.literal, c.caseInsensitive, c.negate)
	}
}

func TestMatchNumericOperators(t *testing.T) {
	assert.True(t, resolve.MatchNumeric("=", 5, 5))
	assert.True(t, resolve.MatchNumeric("<", 4, 5))
	assert.True(t, resolve.MatchNumeric("<=", 5, 5))
	assert.True(t, resolve.MatchNumeric(">", 6, 5))
	assert.True(t, resolve.MatchNumeric(">=", 5, 5))
	assert.False(t, resolve.MatchNumeric(">", 5, 5))
}

func TestMatchStateChildShadowsParent(t *testing.T) {
	parent := resolve.NewMatchState()
	parent.Set("id", "outer")
	child := parent.Child()
	v, ok := child.Get("id")
	require.True(t, ok)
	assert.Equal(t, "outer", v)

	child.Set("id", "inner")
	v, ok = child.Get("id")
	require.True(t, ok)
	assert.Equal(t, "inner", v)

	// Parent is unaffected by the child's shadowing write.
	v, ok = parent.Get("id")
	require.True(t, ok)
	assert.Equal(t, "outer", v)
}
