package match

import (
	"github.com/r-dutton/flowlens/internal/resolve"
	"github.com/r-dutton/flowlens/internal/selector"
	"github.com/r-dutton/flowlens/internal/tree"
)

// Dispatch evaluates every selector in sels against a single pre-order
// walk of start's subtree, pruning each selector's
// evaluation at a node whose kind isn't in that selector's top-level kind
// hint set. callback fires at most once per (selector, visited node)
// match, in selector-index order at each node, children in source order.
func Dispatch(prov tree.Provider, start tree.Node, sels []*selector.ComplexSelectorList, qctx *QueryContext, callback func(index int, m Match)) {
	if start == nil || len(sels) == 0 {
		return
	}
	d := &dispatcher{
		engine: engine{prov: prov, root: start, scope: start, qctx: qctx},
		sels:   sels,
		hints:  make([][]tree.Kind, len(sels)),
		cb:     callback,
	}
	for i, sel := range sels {
		d.hints[i] = topLevelKinds(sel)
	}
	rootCtx := d.newContext(start, resolve.NewMatchState())
	d.walk(start, rootCtx)
}

type dispatcher struct {
	engine
	sels  []*selector.ComplexSelectorList
	hints [][]tree.Kind
	cb    func(index int, m Match)
}

func (d *dispatcher) walk(n tree.Node, parentCtx *resolve.Context) {
	ctx := d.newContext(n, parentCtx.State.Child())
	kind := d.prov.KindOf(n)

	for i, sel := range d.sels {
		if d.hints[i] != nil && !kindIn(kind, d.hints[i]) {
			continue
		}
		if matched, finalCtx := matchList(d.prov, &d.engine, sel, n, ctx); matched {
			d.cb(i, Match{Node: n, Context: finalCtx})
		}
	}

	for _, c := range d.prov.ChildrenOf(n) {
		d.walk(c, ctx)
	}
}
