package match

import (
	"github.com/r-dutton/flowlens/internal/resolve"
	"github.com/r-dutton/flowlens/internal/selector"
	"github.com/r-dutton/flowlens/internal/tree"
)

func matchPseudo(prov tree.Provider, e *engine, p *selector.PseudoClass, n tree.Node, ctx *resolve.Context) bool {
	switch p.Kind {
	case selector.PseudoNot:
		return !matchCompound(prov, e, *p.Compound, n, ctx)
	case selector.PseudoIs, selector.PseudoWhere:
		matched, _ := matchList(prov, e, p.List, n, ctx)
		return matched
	case selector.PseudoHas:
		return hasDescendantMatch(prov, e, p.List, n, ctx)
	case selector.PseudoImplements:
		return matchImplements(prov, e, p.List, n, ctx)
	case selector.PseudoNthChild:
		idx, ok := positionAmong(prov, n, siblingsOf(prov, n))
		return ok && nthMatches(p.Nth, idx)
	case selector.PseudoNthLastChild:
		sibs := siblingsOf(prov, n)
		idx, ok := positionAmong(prov, n, sibs)
		return ok && nthMatches(p.Nth, len(sibs)-idx+1)
	case selector.PseudoNthOfType:
		sibs := sameKindSiblings(prov, n)
		idx, ok := positionAmong(prov, n, sibs)
		return ok && nthMatches(p.Nth, idx)
	case selector.PseudoNthLastOfType:
		sibs := sameKindSiblings(prov, n)
		idx, ok := positionAmong(prov, n, sibs)
		return ok && nthMatches(p.Nth, len(sibs)-idx+1)
	case selector.PseudoFirstChild:
		idx, ok := positionAmong(prov, n, siblingsOf(prov, n))
		return ok && idx == 1
	case selector.PseudoLastChild:
		sibs := siblingsOf(prov, n)
		idx, ok := positionAmong(prov, n, sibs)
		return ok && idx == len(sibs)
	case selector.PseudoOnlyChild:
		return len(siblingsOf(prov, n)) == 1
	case selector.PseudoOnlyOfType:
		return len(sameKindSiblings(prov, n)) == 1
	case selector.PseudoEmpty:
		return len(prov.ChildrenOf(n)) == 0
	case selector.PseudoScope:
		return sameNode(prov, n, ctx.Scope)
	case selector.PseudoRoot:
		return sameNode(prov, n, ctx.Root)
	case selector.PseudoCapture:
		return matchCapture(prov, p, n, ctx)
	case selector.PseudoKindAlias:
		return matchKindAlias(prov, p.AliasName, n)
	}
	return false
}

func matchCapture(prov tree.Provider, p *selector.PseudoClass, n tree.Node, ctx *resolve.Context) bool {
	var value any
	if p.HasPath {
		v, ok := resolve.Resolve(p.CapturePath, ctx)
		if !ok {
			value = nil
		} else {
			value = v
		}
	} else if sym := ctx.Symbol(); sym != nil {
		value = prov.DisplayString(sym)
	} else {
		value = n
	}
	ctx.State.Set(p.CaptureAlias, value)
	return true
}

// matchKindAlias implements the shorthand kind-alias pseudo-classes
// (:class, :method, :property, :interface, :struct, :namespace, :lambda),
// including the struct/interface disambiguation under type_declaration.
func matchKindAlias(prov tree.Provider, alias string, n tree.Node) bool {
	spec, ok := tree.KindAliases[alias]
	if !ok {
		return false
	}
	if prov.KindOf(n) != spec.RawKind {
		return false
	}
	if spec.RequireUnder == "" {
		return true
	}
	for _, c := range prov.ChildrenOf(n) {
		for _, gc := range prov.ChildrenOf(c) {
			if prov.KindOf(gc) == spec.RequireUnder {
				return true
			}
		}
	}
	return false
}

func hasDescendantMatch(prov tree.Provider, e *engine, list *selector.ComplexSelectorList, n tree.Node, ctx *resolve.Context) bool {
	for _, c := range prov.ChildrenOf(n) {
		cctx := e.newContext(c, ctx.State.Child())
		if matched, _ := matchList(prov, e, list, c, cctx); matched {
			return true
		}
		if hasDescendantMatch(prov, e, list, c, cctx) {
			return true
		}
	}
	return false
}

// matchImplements checks whether n (a type declaration) has a base-list
// entry matching list as a base-type reference. This walks only the
// direct base list, not the transitive closure.
func matchImplements(prov tree.Provider, e *engine, list *selector.ComplexSelectorList, n tree.Node, ctx *resolve.Context) bool {
	sym := e.symbolOf(n)
	if sym == nil {
		return false
	}
	for _, base := range prov.DirectInterfacesOf(sym) {
		if baseMatchesList(prov, e, list, base, ctx) {
			return true
		}
	}
	for _, base := range prov.BaseTypesOf(sym) {
		if baseMatchesList(prov, e, list, base, ctx) {
			return true
		}
	}
	return false
}

func baseMatchesList(prov tree.Provider, e *engine, list *selector.ComplexSelectorList, base tree.Symbol, ctx *resolve.Context) bool {
	if !prov.HasSourceLocation(base) {
		return matchesByName(prov, list, base)
	}
	node := prov.DeclaringNodeOf(base)
	if node == nil {
		return matchesByName(prov, list, base)
	}
	bctx := e.newContext(node, ctx.State.Child())
	matched, _ := matchList(prov, e, list, node, bctx)
	return matched
}

// matchesByName is the fallback when the base type has no source
// declaration to match a full selector against (e.g. an external
// interface reference): it reports whether any PropertyStringMatch in
// list has a literal equal to the base's display string, whatever that
// match's path or operator.
func matchesByName(prov tree.Provider, list *selector.ComplexSelectorList, base tree.Symbol) bool {
	name := prov.DisplayString(base)
	for _, cs := range list.Items {
		for _, compound := range cs.Compounds {
			for _, simple := range compound.Simple {
				if simple.Kind == selector.KindPropertyStringMatch && simple.Literal == name {
					return true
				}
			}
		}
	}
	return false
}

func siblingsOf(prov tree.Provider, n tree.Node) []tree.Node {
	parent := prov.ParentOf(n)
	if parent == nil {
		return []tree.Node{n}
	}
	return prov.ChildrenOf(parent)
}

func sameKindSiblings(prov tree.Provider, n tree.Node) []tree.Node {
	kind := prov.KindOf(n)
	var out []tree.Node
	for _, s := range siblingsOf(prov, n) {
		if prov.KindOf(s) == kind {
			out = append(out, s)
		}
	}
	return out
}

// positionAmong returns n's 1-based position within sibs.
func positionAmong(prov tree.Provider, n tree.Node, sibs []tree.Node) (int, bool) {
	for i, s := range sibs {
		if sameNode(prov, s, n) {
			return i + 1, true
		}
	}
	return 0, false
}

func sameNode(prov tree.Provider, a, b tree.Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	sa, oka := a.(interface{ Equal(tree.Node) bool })
	if oka {
		return sa.Equal(b)
	}
	return prov.SpanOf(a) == prov.SpanOf(b) && prov.KindOf(a) == prov.KindOf(b) && prov.FilePathOf(a) == prov.FilePathOf(b)
}

// nthMatches implements the An+B rule: pos matches iff (pos-B)/A is a
// non-negative integer when A != 0, or pos == B when A == 0.
func nthMatches(nth selector.NthExpr, pos int) bool {
	if nth.A == 0 {
		return pos == nth.B
	}
	diff := pos - nth.B
	if diff%nth.A != 0 {
		return false
	}
	return diff/nth.A >= 0
}
