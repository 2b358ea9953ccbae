package selector

import (
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Canonical-form idempotence: parse(s) succeeds
// and stringify(parse(s)) == stringify(parse(stringify(parse(s)))).
func TestParseStringifyIdempotent(t *testing.T) {
	cases := []string{
		`:class`,
		`:struct[Symbol.Name$="Controller"]`,
		`:struct[Symbol.Name$="Controller"] :method`,
		`:class:not([Modifiers='abstract'])`,
		`:class:capture(id, Symbol.Name)`,
		`:class:is([Name='A'], [Name='B'])`,
		`a > b + c ~ d`,
		`:nth-child(2n+1)`,
		`:nth-child(odd)`,
		`[Name^="Get"][Name$="Async" i]`,
	}
	for _, text := range cases {
		t.Run(text, func(t *testing.T) {
			ast1, err := Parse(text)
			require.NoError(t, err)
			s1 := ast1.ToSelectorString()

			ast2, err := Parse(s1)
			require.NoError(t, err)
			s2 := ast2.ToSelectorString()

			if s1 != s2 {
				diff := unifiedDiff(s1, s2)
				t.Fatalf("canonical form not idempotent for %q:\n%s", text, diff)
			}
		})
	}
}

func unifiedDiff(a, b string) string {
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "first",
		ToFile:   "second",
		Context:  2,
	})
	return diff
}

func TestParseErrorReportsPosition(t *testing.T) {
	_, err := Parse(`:class[`)
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Greater(t, perr.Position, 0)
}

func TestParseComplexSelectorList(t *testing.T) {
	ast, err := Parse(`:class, :interface`)
	require.NoError(t, err)
	require.Len(t, ast.Items, 2)
}

func TestParseCombinators(t *testing.T) {
	ast, err := Parse(`a > b`)
	require.NoError(t, err)
	require.Len(t, ast.Items, 1)
	cs := ast.Items[0]
	require.Len(t, cs.Compounds, 2)
	assert.Equal(t, Child, cs.Combinators[0])
}

func TestParseNumericAttribute(t *testing.T) {
	ast, err := Parse(`[Count > 5]`)
	require.NoError(t, err)
	require.Len(t, ast.Items, 1)
}

func TestParsePseudoNot(t *testing.T) {
	ast, err := Parse(`:struct:not([Name$="Base"])`)
	require.NoError(t, err)
	str := ast.ToSelectorString()
	assert.Contains(t, str, ":not(")
}
