package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-dutton/flowlens/internal/match"
	"github.com/r-dutton/flowlens/internal/rules"
	"github.com/r-dutton/flowlens/internal/tree"
)

// TestDefaultCatalogParses ensures every fixed rule's selector text is
// valid (the catalog is a fixed table; a bad selector there would
// silently drop a rule in flowgraph.Builder.runCatalog rather than fail
// loudly, so this guards the catalog itself).
func TestDefaultCatalogParses(t *testing.T) {
	for _, r := range rules.DefaultCatalog() {
		_, err := r.Selector()
		assert.NoErrorf(t, err, "rule %s selector %q failed to parse", r.Type, r.SelectorText)
	}
}

func TestCanonicalizeRoute(t *testing.T) {
	cases := []struct {
		route, controller, want string
	}{
		{"/reports", "ReportsController", "/reports"},
		{"reports", "ReportsController", "/reports"},
		{"[controller]/summary", "ReportsController", "/Reports/summary"},
		{"{controller}", "ReportsController", "/Reports"},
		{"//reports", "ReportsController", "/reports"},
		{"  /reports", "ReportsController", "/reports"},
	}
	for _, c := range cases {
		got := rules.CanonicalizeRoute(c.route, c.controller)
		assert.Equalf(t, c.want, got, "route=%q controller=%q", c.route, c.controller)
	}
}

const controllerSource = `package demo

// @Route("/reports")
type ReportsController struct{}

// @HttpGet("summary")
// @ProducesResponseType(200)
func (c *ReportsController) GetSummary() string { return "" }
`

func compile(t *testing.T, src string) (tree.Provider, tree.Node) {
	t.Helper()
	comp := tree.NewCompilation("demo")
	require.NoError(t, comp.AddSource("demo.go", []byte(src)))
	prov := tree.NewProvider(comp)
	trees := comp.SyntaxTrees()
	require.Len(t, trees, 1)
	return prov, trees[0]
}

func TestExtractControllerRoute(t *testing.T) {
	prov, root := compile(t, controllerSource)
	rule := rules.DefaultCatalog()[0] // TypeController
	sel, err := rule.Selector()
	require.NoError(t, err)

	matches := match.QueryMatches(prov, root, sel, nil)
	require.Len(t, matches, 1)

	props := rule.Extractor(prov, matches[0])
	assert.Equal(t, "/reports", props["route"])
	assert.Equal(t, "ReportsController", props["controller_name"])
}

func TestExtractControllerActionFullRoute(t *testing.T) {
	prov, root := compile(t, controllerSource)
	rule := rules.DefaultCatalog()[1] // TypeControllerAction
	sel, err := rule.Selector()
	require.NoError(t, err)

	matches := match.QueryMatches(prov, root, sel, nil)
	require.Len(t, matches, 1)

	props := rule.Extractor(prov, matches[0])
	assert.Equal(t, "GET", props["http_method"])
	assert.Equal(t, "/reports/summary", props["full_route"])
	assert.Equal(t, "200", props["status_code"])
}

const httpClientSource = `package demo

type ReportsHttpClient struct{}

func (c *ReportsHttpClient) GetJSON(path string) {}

type ReportsClient struct{}

func (r *ReportsClient) GetReports(c *ReportsHttpClient) {
	c.GetJSON("/reports")
}
`

func findRule(t *testing.T, typ rules.Type) *rules.Rule {
	t.Helper()
	for _, r := range rules.DefaultCatalog() {
		if r.Type == typ {
			return r
		}
	}
	t.Fatalf("no rule of type %s in catalog", typ)
	return nil
}

// TestExtractHTTPCall: verb from the called method's name prefix, route
// from the call's string argument, caller identity from the enclosing
// method.
func TestExtractHTTPCall(t *testing.T) {
	prov, root := compile(t, httpClientSource)
	rule := findRule(t, rules.TypeHttpCall)
	sel, err := rule.Selector()
	require.NoError(t, err)

	matches := match.QueryMatches(prov, root, sel, nil)
	require.Len(t, matches, 1)

	props := rule.Extractor(prov, matches[0])
	assert.Equal(t, "GET", props["verb"])
	assert.Equal(t, "/reports", props["route"])
	assert.Equal(t, "ReportsHttpClient", props["client_type"])
	assert.Equal(t, "ReportsClient", props["caller_type"])
	assert.Equal(t, "M:demo.ReportsClient.GetReports", props["caller_id"])
}

func TestControllerActionSelectorMatchesMethod(t *testing.T) {
	prov, root := compile(t, controllerSource)
	sel, err := rules.DefaultCatalog()[1].Selector() // TypeControllerAction
	require.NoError(t, err)

	matches := match.QueryMatches(prov, root, sel, nil)
	require.Len(t, matches, 1)
	assert.Equal(t, "GetSummary", prov.IdentifierTextOf(matches[0].Node))
}
