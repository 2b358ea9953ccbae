package diagnostics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-dutton/flowlens/internal/diagnostics"
	"github.com/r-dutton/flowlens/internal/tree"
)

func newProvider(t *testing.T, src string) (tree.Provider, tree.Node) {
	t.Helper()
	comp := tree.NewCompilation("demo")
	require.NoError(t, comp.AddSource("demo.go", []byte(src)))
	prov := tree.NewProvider(comp)
	trees := comp.SyntaxTrees()
	require.Len(t, trees, 1)
	return prov, trees[0]
}

// TestHostSimpleWarning: one rule, one matching class, one warning.
func TestHostSimpleWarning(t *testing.T) {
	prov, root := newProvider(t, `package demo

type ValidClassName struct{}

type InvalidClassName struct{}
`)
	h, err := diagnostics.NewHost([]diagnostics.RuleConfig{
		{Selector: `:class[Symbol.Name="InvalidClassName"]`, Message: "invalid class name", Severity: "warning"},
	})
	require.NoError(t, err)

	diags := h.Analyze(prov, root)
	require.Len(t, diags, 1)
	assert.Equal(t, diagnostics.SeverityWarning, diags[0].Severity)
}

// TestHostNestedSelector: a descendant selector flags only the nested match.
func TestHostNestedSelector(t *testing.T) {
	prov, root := newProvider(t, `package demo

type Widget struct {
	Valid   int
	Invalid int
}
`)
	h, err := diagnostics.NewHost([]diagnostics.RuleConfig{
		{Selector: `:struct[Symbol.Name="Widget"] field_declaration#Invalid`, Message: "bad field", Severity: "warning"},
	})
	require.NoError(t, err)

	diags := h.Analyze(prov, root)
	require.Len(t, diags, 1)
}

// TestHostPlaceholderRule: a class whose
// name-matching interface it does not implement gets flagged. Go has no
// "implements" declaration list, so ValidClassName satisfies the check by
// embedding IValidClassName (symtab.go's indexField registers an
// anonymous interface field as a direct interface); InvalidClassName
// embeds nothing and is flagged.
func TestHostPlaceholderRule(t *testing.T) {
	prov, root := newProvider(t, `package demo

type IValidClassName interface{}

type ValidClassName struct {
	IValidClassName
}

type InvalidClassName struct{}
`)
	h, err := diagnostics.NewHost([]diagnostics.RuleConfig{
		{
			Selector: `:struct`,
			Rule:     `:implements([Name="I{Name}"])`,
			Message:  "does not implement its expected interface",
			Severity: "warning",
		},
	})
	require.NoError(t, err)

	diags := h.Analyze(prov, root)
	require.Len(t, diags, 1)
	assert.Equal(t, diagnostics.SeverityWarning, diags[0].Severity)
}

func TestNewHostRejectsEmptyConfiguration(t *testing.T) {
	_, err := diagnostics.NewHost(nil)
	require.Error(t, err)
	var cfgErr *diagnostics.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestParseSeverityDefaultsToWarning(t *testing.T) {
	assert.Equal(t, diagnostics.SeverityError, diagnostics.ParseSeverity("Error"))
	assert.Equal(t, diagnostics.SeverityInfo, diagnostics.ParseSeverity("INFO"))
	assert.Equal(t, diagnostics.SeverityWarning, diagnostics.ParseSeverity("bogus"))
	assert.Equal(t, diagnostics.SeverityWarning, diagnostics.ParseSeverity(""))
}
