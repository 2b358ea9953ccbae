// Package match evaluates selector ASTs against a syntax tree,
// collecting matches with their captures; Dispatch batches many
// selectors through a single walk.
package match

import (
	"strings"

	"github.com/r-dutton/flowlens/internal/resolve"
	"github.com/r-dutton/flowlens/internal/selector"
	"github.com/r-dutton/flowlens/internal/tree"
)

// QueryContext carries the optional overrides query_all/query_matches
// accept: a custom symbol resolver and ambient metadata for the query.
type QueryContext struct {
	SymbolResolver func(tree.Provider, tree.Node) tree.Symbol
	Metadata       map[string]any
	Compilation    any
}

// Match is one matching node plus the context it matched under,
// including captures accumulated along the way.
type Match struct {
	Node    tree.Node
	Context *resolve.Context
}

// QueryMatches walks start's subtree pre-order and returns every node
// matching sel, alongside its match context. Traversal order is
// depth-first, source order; matches are never deduplicated.
func QueryMatches(prov tree.Provider, start tree.Node, sel *selector.ComplexSelectorList, qctx *QueryContext) []Match {
	if sel == nil || start == nil {
		return nil
	}
	e := &engine{prov: prov, root: start, scope: start, qctx: qctx, hints: topLevelKinds(sel)}
	rootCtx := e.newContext(start, resolve.NewMatchState())
	var out []Match
	e.walk(start, rootCtx, sel, &out)
	return out
}

// QueryAll is QueryMatches with only the node extracted, in the same
// order.
func QueryAll(prov tree.Provider, start tree.Node, sel *selector.ComplexSelectorList, qctx *QueryContext) []tree.Node {
	matches := QueryMatches(prov, start, sel, qctx)
	out := make([]tree.Node, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Node)
	}
	return out
}

// QueryFirst returns the first match, if any.
func QueryFirst(prov tree.Provider, start tree.Node, sel *selector.ComplexSelectorList, qctx *QueryContext) (Match, bool) {
	e := &engine{prov: prov, root: start, scope: start, qctx: qctx, hints: topLevelKinds(sel)}
	rootCtx := e.newContext(start, resolve.NewMatchState())
	var out []Match
	e.firstOnly = true
	e.walk(start, rootCtx, sel, &out)
	if len(out) == 0 {
		return Match{}, false
	}
	return out[0], true
}

type engine struct {
	prov      tree.Provider
	root      tree.Node
	scope     tree.Node
	qctx      *QueryContext
	hints     []tree.Kind // nil means global: always evaluate
	firstOnly bool
}

func (e *engine) newContext(n tree.Node, state *resolve.MatchState) *resolve.Context {
	var md *resolve.Metadata
	if e.qctx != nil && e.qctx.Metadata != nil {
		md = resolve.NewMetadata(e.qctx.Metadata)
	} else {
		md = resolve.NewMetadata(nil)
	}
	var comp any
	if e.qctx != nil {
		comp = e.qctx.Compilation
	}
	return &resolve.Context{
		Node:        n,
		Scope:       e.scope,
		Root:        e.root,
		Provider:    e.prov,
		Compilation: comp,
		Metadata:    md,
		State:       state,
	}
}

func (e *engine) symbolOf(n tree.Node) tree.Symbol {
	if e.qctx != nil && e.qctx.SymbolResolver != nil {
		if s := e.qctx.SymbolResolver(e.prov, n); s != nil {
			return s
		}
	}
	if s := e.prov.DeclaredSymbol(n); s != nil {
		return s
	}
	return e.prov.BoundSymbol(n)
}

// walk performs the pre-order traversal, skipping the yield (not the
// recursion) when the node's kind isn't in the top-level hint set.
func (e *engine) walk(n tree.Node, parentCtx *resolve.Context, sel *selector.ComplexSelectorList, out *[]Match) {
	if e.firstOnly && len(*out) > 0 {
		return
	}
	ctx := e.newContext(n, parentCtx.State.Child())

	if e.hints == nil || kindIn(e.prov.KindOf(n), e.hints) {
		if matched, finalCtx := matchList(e.prov, e, sel, n, ctx); matched {
			*out = append(*out, Match{Node: n, Context: finalCtx})
			if e.firstOnly {
				return
			}
		}
	}

	for _, c := range e.prov.ChildrenOf(n) {
		e.walk(c, ctx, sel, out)
		if e.firstOnly && len(*out) > 0 {
			return
		}
	}
}

func kindIn(k tree.Kind, hints []tree.Kind) bool {
	for _, h := range hints {
		if h == k {
			return true
		}
	}
	return false
}

// topLevelKinds computes the kind-hint set a selector list exposes: the
// union, across every ComplexSelector, of its outermost compound's
// required kind (a Type simple selector's kind, or a kind-alias's raw
// kind). If any branch has no fixed kind (neither of those, or a
// UniversalType), the whole selector is global (nil hints, meaning
// "always evaluate").
// TopLevelKinds exposes the top-level kind-hint computation used to prune
// the dispatcher's traversal, for callers like the diagnostic analyzer
// host that need to know
// whether a selector fixes a single node kind in order to choose between
// a per-node and a per-tree handler. Returns nil when the selector is
// "global" (no fixed top-level kind across all its alternatives).
func TopLevelKinds(list *selector.ComplexSelectorList) []tree.Kind {
	return topLevelKinds(list)
}

func topLevelKinds(list *selector.ComplexSelectorList) []tree.Kind {
	var kinds []tree.Kind
	for _, cs := range list.Items {
		if len(cs.Compounds) == 0 {
			return nil
		}
		last := cs.Compounds[len(cs.Compounds)-1]
		k, fixed := fixedKindOf(last)
		if !fixed {
			return nil
		}
		kinds = append(kinds, k)
	}
	return dedupKinds(kinds)
}

func fixedKindOf(c selector.CompoundSelector) (tree.Kind, bool) {
	for _, s := range c.Simple {
		switch s.Kind {
		case selector.KindType:
			return tree.Kind(s.TypeName), true
		case selector.KindUniversalType:
			return "", false
		case selector.KindPseudoClass:
			if s.Pseudo.Kind == selector.PseudoKindAlias {
				if alias, ok := tree.KindAliases[s.Pseudo.AliasName]; ok {
					return alias.RawKind, true
				}
			}
		}
	}
	return "", false
}

func dedupKinds(in []tree.Kind) []tree.Kind {
	seen := map[tree.Kind]bool{}
	var out []tree.Kind
	for _, k := range in {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// matchList reports whether any ComplexSelector in list matches at n
// (disjunction), returning the context carrying whatever captures that
// branch accumulated.
func matchList(prov tree.Provider, e *engine, list *selector.ComplexSelectorList, n tree.Node, ctx *resolve.Context) (bool, *resolve.Context) {
	for _, cs := range list.Items {
		if matchComplex(prov, e, cs, n, ctx) {
			return true, ctx
		}
	}
	return false, ctx
}

// matchComplex anchors cs's last compound on n, then walks earlier
// (compound, combinator) pairs outward against ancestors/siblings.
func matchComplex(prov tree.Provider, e *engine, cs selector.ComplexSelector, n tree.Node, ctx *resolve.Context) bool {
	if len(cs.Compounds) == 0 {
		return false
	}
	last := len(cs.Compounds) - 1
	if !matchCompound(prov, e, cs.Compounds[last], n, ctx) {
		return false
	}
	return matchChain(prov, e, cs, last-1, n, ctx)
}

// matchChain checks compound index i against some node related to cur by
// the combinator that joins it to i+1, recursing leftward.
func matchChain(prov tree.Provider, e *engine, cs selector.ComplexSelector, i int, cur tree.Node, ctx *resolve.Context) bool {
	if i < 0 {
		return true
	}
	comb := cs.Combinators[i]
	compound := cs.Compounds[i]

	switch comb {
	case selector.Child:
		parent := prov.ParentOf(cur)
		if parent == nil {
			return false
		}
		pctx := e.newContext(parent, ctx.State)
		return matchCompound(prov, e, compound, parent, pctx) && matchChain(prov, e, cs, i-1, parent, pctx)

	case selector.Descendant:
		for p := prov.ParentOf(cur); p != nil; p = prov.ParentOf(p) {
			pctx := e.newContext(p, ctx.State)
			if matchCompound(prov, e, compound, p, pctx) && matchChain(prov, e, cs, i-1, p, pctx) {
				return true
			}
		}
		return false

	case selector.NextSibling:
		prev, ok := precedingSibling(prov, cur)
		if !ok {
			return false
		}
		pctx := e.newContext(prev, ctx.State)
		return matchCompound(prov, e, compound, prev, pctx) && matchChain(prov, e, cs, i-1, prev, pctx)

	case selector.SubsequentSibling:
		for prev, ok := precedingSibling(prov, cur); ok; prev, ok = precedingSibling(prov, prev) {
			pctx := e.newContext(prev, ctx.State)
			if matchCompound(prov, e, compound, prev, pctx) && matchChain(prov, e, cs, i-1, prev, pctx) {
				return true
			}
		}
		return false
	}
	return false
}

func precedingSibling(prov tree.Provider, n tree.Node) (tree.Node, bool) {
	parent := prov.ParentOf(n)
	if parent == nil {
		return nil, false
	}
	siblings := prov.ChildrenOf(parent)
	for i, s := range siblings {
		if sameNode(prov, s, n) && i > 0 {
			return siblings[i-1], true
		}
	}
	return nil, false
}

func matchCompound(prov tree.Provider, e *engine, c selector.CompoundSelector, n tree.Node, ctx *resolve.Context) bool {
	for _, s := range c.Simple {
		if !matchSimple(prov, e, s, n, ctx) {
			return false
		}
	}
	return true
}

func matchSimple(prov tree.Provider, e *engine, s selector.SimpleSelector, n tree.Node, ctx *resolve.Context) bool {
	switch s.Kind {
	case selector.KindType:
		return prov.KindOf(n) == tree.Kind(s.TypeName)
	case selector.KindUniversalType:
		return true
	case selector.KindId:
		return strings.EqualFold(prov.IdentifierTextOf(n), s.Name)
	case selector.KindClass:
		for _, tag := range tagsFromMetadata(ctx) {
			if strings.EqualFold(tag, s.Name) {
				return true
			}
		}
		return false
	case selector.KindPropertyName:
		_, ok := resolve.Resolve(s.Path, ctx)
		return ok
	case selector.KindPropertyStringMatch:
		val, ok := resolve.ResolveString(s.Path, ctx)
		if !ok {
			return s.Negate
		}
		return resolve.MatchString(string(s.StringOp), val, s.Literal, s.CaseInsensitive, s.Negate)
	case selector.KindPropertyNumericMatch:
		val, ok := resolve.ResolveInt(s.Path, ctx)
		if !ok {
			return false
		}
		return resolve.MatchNumeric(string(s.NumericOp), val, s.Integer)
	case selector.KindPseudoClass:
		return matchPseudo(prov, e, s.Pseudo, n, ctx)
	}
	return false
}

// tagsFromMetadata reads a "tags" entry out of the query's metadata (the
// convention internal/rules uses to feed already-computed tags back into
// ".class"-style selectors, e.g. in a :has() sub-query), as either a
// []string or a whitespace-separated string.
func tagsFromMetadata(ctx *resolve.Context) []string {
	v, ok := ctx.Metadata.Get("tags")
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return t
	case string:
		return strings.Fields(t)
	default:
		return nil
	}
}
