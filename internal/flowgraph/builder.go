package flowgraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/r-dutton/flowlens/internal/match"
	"github.com/r-dutton/flowlens/internal/rules"
	"github.com/r-dutton/flowlens/internal/selector"
	"github.com/r-dutton/flowlens/internal/tree"
)

// Builder runs the Rule Catalog over one compilation's syntax trees and
// produces its flow graph. A Builder is single-use and single-threaded
// per compilation; callers run many Builders in parallel, each owning
// its own state.
type Builder struct {
	Provider tree.Provider
	Catalog  []*rules.Rule

	// DefaultAssembly/DefaultProject seed Node.Assembly/Project when a
	// symbol carries no containing-assembly information of its own.
	DefaultAssembly string
	DefaultProject  string

	// MaxDepth bounds how many propagation hops away from a catalog-seeded
	// node new targets are enqueued. 0 means unlimited.
	MaxDepth int

	derivedByBase map[string][]string // base docID -> subclass docIDs
	implsByIface  map[string][]string // interface docID -> implementor docIDs
	typeByID      map[string]tree.Symbol

	// mediatorRequestHandlers maps a message type's docID to the handler
	// types whose IRequestHandler/IRequestProcessor/IPipelineBehavior type
	// argument names that message; mediatorNotificationHandlers does the
	// same for INotificationHandler.
	mediatorRequestHandlers      map[string][]string
	mediatorNotificationHandlers map[string][]string

	nodes     map[string]*Node
	symbols   map[string]tree.Symbol // docID -> symbol, for anything we created a Node for
	snapshots map[string][]tree.Node // id -> matched syntax nodes, for anonymous propagation
	edges     map[string]*Edge       // "from\x00to\x00kind" -> edge
	queue     []queued               // ids pending propagation
	visited   map[string]bool
}

type queued struct {
	id    string
	depth int
}

// NewBuilder constructs a Builder over prov using the default rule
// catalog.
func NewBuilder(prov tree.Provider, defaultAssembly, defaultProject string) *Builder {
	return &Builder{
		Provider:                     prov,
		Catalog:                      rules.DefaultCatalog(),
		DefaultAssembly:              defaultAssembly,
		DefaultProject:               defaultProject,
		derivedByBase:                map[string][]string{},
		implsByIface:                 map[string][]string{},
		typeByID:                     map[string]tree.Symbol{},
		mediatorRequestHandlers:      map[string][]string{},
		mediatorNotificationHandlers: map[string][]string{},
		nodes:                        map[string]*Node{},
		symbols:                      map[string]tree.Symbol{},
		snapshots:                    map[string][]tree.Node{},
		edges:                        map[string]*Edge{},
		visited:                      map[string]bool{},
	}
}

// Build runs Phase A (indexing), Phase B (propagation) and Phase C
// (emission) over trees, whose declared types must already be reachable
// via globalTypes.
func (b *Builder) Build(trees []tree.Node, globalTypes []tree.Symbol) *Graph {
	g, _ := b.BuildContext(context.Background(), trees, globalTypes)
	return g
}

// BuildContext is Build with cooperative cancellation: ctx is re-checked
// at each tree boundary and at the top of the propagation queue. On
// cancellation, partial state is discarded and no graph is emitted.
func (b *Builder) BuildContext(ctx context.Context, trees []tree.Node, globalTypes []tree.Symbol) (*Graph, error) {
	b.indexTypeRelations(globalTypes)
	if err := b.runCatalog(ctx, trees); err != nil {
		return nil, err
	}
	if err := b.propagate(ctx); err != nil {
		return nil, err
	}
	return b.emit(), nil
}

// --- Phase A: indexing --------------------------------------------------

var mediatorRequestIfaces = map[string]bool{
	"IRequestHandler":   true,
	"IRequestProcessor": true,
	"IPipelineBehavior": true,
}

func (b *Builder) indexTypeRelations(globalTypes []tree.Symbol) {
	for _, t := range globalTypes {
		docID := b.Provider.DocumentationID(t)
		if docID == "" {
			continue
		}
		b.typeByID[docID] = t
		for _, base := range b.Provider.BaseTypesOf(t) {
			baseID := b.Provider.DocumentationID(base)
			if baseID != "" {
				b.derivedByBase[baseID] = appendUnique(b.derivedByBase[baseID], docID)
			}
		}
		for _, iface := range b.Provider.InterfacesOf(t) {
			ifaceID := b.Provider.DocumentationID(iface)
			if ifaceID != "" {
				b.implsByIface[ifaceID] = appendUnique(b.implsByIface[ifaceID], docID)
			}
			b.indexMediatorHandler(t, docID, iface)
		}
	}
}

// indexMediatorHandler records t as a handler for its mediator
// interface's message-type argument: IRequestHandler[Msg] and friends go
// into mediatorRequestHandlers, INotificationHandler[Msg] into
// mediatorNotificationHandlers.
func (b *Builder) indexMediatorHandler(t tree.Symbol, handlerID string, iface tree.Symbol) {
	name := simpleTypeName(b.Provider.DisplayString(iface))
	isRequest := mediatorRequestIfaces[name]
	isNotification := name == "INotificationHandler"
	if !isRequest && !isNotification {
		return
	}
	args := b.Provider.TypeArgumentsOf(iface)
	if len(args) == 0 {
		return
	}
	msgID := b.Provider.DocumentationID(args[0])
	if msgID == "" {
		return
	}
	if isRequest {
		b.mediatorRequestHandlers[msgID] = appendUnique(b.mediatorRequestHandlers[msgID], handlerID)
	} else {
		b.mediatorNotificationHandlers[msgID] = appendUnique(b.mediatorNotificationHandlers[msgID], handlerID)
	}
}

// simpleTypeName strips a display string like "IRequestHandler[CreateReport]"
// down to its base type name.
func simpleTypeName(display string) string {
	if i := strings.IndexByte(display, '['); i >= 0 {
		display = display[:i]
	}
	if i := strings.LastIndexByte(display, '.'); i >= 0 {
		display = display[i+1:]
	}
	return display
}

func appendUnique(in []string, s string) []string {
	for _, existing := range in {
		if existing == s {
			return in
		}
	}
	return append(in, s)
}

// --- rule catalog pass ---------------------------------------------------

func (b *Builder) runCatalog(ctx context.Context, trees []tree.Node) error {
	type compiled struct {
		rule *rules.Rule
		sel  *selector.ComplexSelectorList
	}
	var compiledRules []compiled
	for _, r := range b.Catalog {
		sel, err := r.Selector()
		if err != nil {
			continue
		}
		compiledRules = append(compiledRules, compiled{rule: r, sel: sel})
	}
	sels := make([]*selector.ComplexSelectorList, len(compiledRules))
	for i, c := range compiledRules {
		sels[i] = c.sel
	}

	for _, root := range trees {
		if err := ctx.Err(); err != nil {
			return err
		}
		match.Dispatch(b.Provider, root, sels, nil, func(index int, m match.Match) {
			b.applyRule(compiledRules[index].rule, m)
		})
	}
	return nil
}

// applyRule merges one matching rule's contribution into its target
// NodeBuilder, keyed by symbol identity when the rule requests it.
func (b *Builder) applyRule(r *rules.Rule, m match.Match) {
	var sym tree.Symbol
	if r.UseSymbolIdentity {
		sym = b.Provider.DeclaredSymbol(m.Node)
		if sym == nil {
			sym = b.Provider.BoundSymbol(m.Node)
		}
	}

	id := b.idFor(sym, m.Node)
	node, isNew := b.nodeFor(id)
	if isNew {
		b.seedDefaults(node, sym, m.Node)
	}
	if sym != nil {
		b.symbols[id] = sym
	}
	b.snapshots[id] = append(b.snapshots[id], m.Node)

	if node.Type == "" {
		node.Type = string(r.Type)
	}
	for _, tag := range r.Tags {
		node.Tags[tag] = struct{}{}
	}
	if r.Extractor != nil {
		for k, v := range r.Extractor(b.Provider, m) {
			if s, ok := asPropertyString(v); ok {
				if existing, has := node.Properties[k]; !has || existing == "" {
					if s != "" {
						node.Properties[k] = s
					}
				}
			}
		}
	}

	b.enqueue(id, 0)
}

func asPropertyString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	default:
		return fmt.Sprintf("%v", t), true
	}
}

// idFor implements the node-id stability invariant: the
// symbol's documentation id when available, otherwise a synthetic
// "{path}:{startOffset}-{endOffset}" id.
func (b *Builder) idFor(sym tree.Symbol, n tree.Node) string {
	if sym != nil {
		if id := b.Provider.DocumentationID(sym); id != "" {
			return id
		}
	}
	span := b.Provider.SpanOf(n)
	return fmt.Sprintf("%s:%d-%d", b.Provider.FilePathOf(n), span.StartByte, span.EndByte)
}

func (b *Builder) nodeFor(id string) (*Node, bool) {
	if n, ok := b.nodes[id]; ok {
		return n, false
	}
	n := newNode(id)
	b.nodes[id] = n
	return n, true
}

func (b *Builder) seedDefaults(node *Node, sym tree.Symbol, n tree.Node) {
	node.FilePath = b.Provider.FilePathOf(n)
	span := b.Provider.SpanOf(n)
	node.HasSpan = true
	node.StartLine, node.EndLine = span.StartLine, span.EndLine

	if sym != nil {
		node.Name = b.Provider.DisplayString(sym)
		node.Fqdn = node.Name
		node.SymbolID = b.Provider.DocumentationID(sym)
		node.Assembly = b.Provider.ContainingAssemblyOf(sym)
	} else {
		node.Name = b.Provider.IdentifierTextOf(n)
		node.Fqdn = node.ID
	}
	if node.Assembly == "" {
		node.Assembly = b.DefaultAssembly
	}
	node.Project = b.DefaultProject
}

func (b *Builder) enqueue(id string, depth int) {
	if b.visited[id] {
		return
	}
	if b.MaxDepth > 0 && depth > b.MaxDepth {
		return
	}
	b.visited[id] = true
	b.queue = append(b.queue, queued{id: id, depth: depth})
}

// --- Phase B: propagation -------------------------------------------------

func (b *Builder) propagate(ctx context.Context) error {
	for len(b.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := b.queue[0]
		b.queue = b.queue[1:]
		b.propagateOne(item.id, item.depth)
	}
	return nil
}

func (b *Builder) propagateOne(id string, depth int) {
	node := b.nodes[id]
	sym := b.symbols[id]

	var refs []tree.Symbol
	if sym != nil {
		if !b.Provider.HasSourceLocation(sym) {
			return
		}
		declNode := b.Provider.DeclaringNodeOf(sym)
		if declNode == nil {
			return
		}
		refs = b.gatherReferencedSymbols(declNode, false)
		refs = append(refs, b.expandOriginRelations(sym)...)
	} else {
		// Anonymous node (no origin symbol): gather over each recorded
		// match snapshot instead of a declaring subtree.
		for _, snap := range b.snapshots[id] {
			refs = append(refs, b.gatherReferencedSymbols(snap, true)...)
		}
	}

	seen := map[string]bool{}
	for _, ref := range refs {
		if ref == nil || !b.Provider.HasSourceLocation(ref) {
			continue
		}
		if b.Provider.SymbolKind(ref) == tree.SymbolKindNamespace {
			continue
		}
		if sym != nil && b.Provider.SymbolEquals(ref, sym) {
			continue
		}
		targetID := b.Provider.DocumentationID(ref)
		if targetID == "" || targetID == id || seen[targetID] {
			continue
		}
		seen[targetID] = true

		target, isNew := b.nodeFor(targetID)
		if isNew {
			refNode := b.Provider.DeclaringNodeOf(ref)
			if refNode != nil {
				b.seedDefaults(target, ref, refNode)
			} else {
				target.Name = b.Provider.DisplayString(ref)
				target.Fqdn = target.Name
				target.SymbolID = targetID
			}
		}
		b.symbols[targetID] = ref
		if target.Type == "" {
			target.Type = defaultTypeForKind(b.Provider.SymbolKind(ref))
		}

		b.addEdge(id, targetID, "flow", node)
		b.enqueue(targetID, depth+1)
	}
}

func defaultTypeForKind(k tree.SymbolKind) string {
	switch k {
	case tree.SymbolKindType:
		return "code.type"
	case tree.SymbolKindMethod:
		return "code.method"
	case tree.SymbolKindField:
		return "code.field"
	case tree.SymbolKindProperty:
		return "code.property"
	default:
		return "code.symbol"
	}
}

func (b *Builder) addEdge(from, to, kind string, originNode *Node) {
	key := from + "\x00" + to + "\x00" + kind
	if _, ok := b.edges[key]; ok {
		return
	}
	e := &Edge{From: from, To: to, Kind: kind, Source: "builder", Confidence: 1.0}
	if originNode != nil && originNode.FilePath != "" {
		e.Evidence = []Evidence{{Path: originNode.FilePath, StartLine: originNode.StartLine, EndLine: originNode.EndLine}}
	}
	b.edges[key] = e
}

// gatherReferencedSymbols walks a subtree once, collecting the bound
// symbol for every descendant the provider can resolve one for, then
// expands each candidate per the per-kind expansion rules.
// includeSelf controls whether the root node's own binding is gathered
// too (snapshots are reference sites, declaring subtrees are not).
func (b *Builder) gatherReferencedSymbols(root tree.Node, includeSelf bool) []tree.Symbol {
	var direct []tree.Symbol
	var walk func(n tree.Node)
	walk = func(n tree.Node) {
		if sym := b.Provider.BoundSymbol(n); sym != nil {
			direct = append(direct, sym)
		}
		for _, c := range b.Provider.ChildrenOf(n) {
			walk(c)
		}
	}
	if includeSelf {
		walk(root)
	} else {
		for _, c := range b.Provider.ChildrenOf(root) {
			walk(c)
		}
	}

	var out []tree.Symbol
	for _, sym := range direct {
		out = append(out, sym)
		out = append(out, b.expandByKind(sym)...)
	}
	return out
}

// expandByKind implements: Method -> containing type, return type,
// parameter types; Property/Field/Event -> containing type + value type;
// Type -> base types, direct interfaces, type arguments.
func (b *Builder) expandByKind(sym tree.Symbol) []tree.Symbol {
	var out []tree.Symbol
	switch b.Provider.SymbolKind(sym) {
	case tree.SymbolKindMethod:
		if t := b.Provider.ContainingTypeOf(sym); t != nil {
			out = append(out, t)
		}
		if rt := b.Provider.ReturnTypeOf(sym); rt != nil {
			out = append(out, rt)
		}
		out = append(out, b.Provider.ParameterTypesOf(sym)...)
		if rf := b.Provider.ReducedFromOf(sym); rf != nil {
			out = append(out, rf)
		}
		out = append(out, b.Provider.PartialImplementationsOf(sym)...)
	case tree.SymbolKindProperty, tree.SymbolKindField, tree.SymbolKindEvent:
		if t := b.Provider.ContainingTypeOf(sym); t != nil {
			out = append(out, t)
		}
		if vt := b.Provider.ValueTypeOf(sym); vt != nil {
			out = append(out, vt)
		}
	case tree.SymbolKindType:
		out = append(out, b.Provider.BaseTypesOf(sym)...)
		out = append(out, b.Provider.DirectInterfacesOf(sym)...)
		out = append(out, b.Provider.TypeArgumentsOf(sym)...)
	}
	return out
}

// expandOriginRelations implements the origin-side relation expansion:
// an interface member pulls in each implementing type and
// its implementation of that member; a named type pulls in its derived
// types and implementers, plus mediator handlers for any IRequest /
// INotification it transitively implements.
func (b *Builder) expandOriginRelations(sym tree.Symbol) []tree.Symbol {
	var out []tree.Symbol
	docID := b.Provider.DocumentationID(sym)
	if docID == "" {
		return nil
	}

	switch b.Provider.SymbolKind(sym) {
	case tree.SymbolKindMethod, tree.SymbolKindProperty:
		out = append(out, b.expandInterfaceMember(sym)...)
	case tree.SymbolKindType:
		for _, subID := range b.derivedByBase[docID] {
			if s := b.typeByID[subID]; s != nil {
				out = append(out, s)
			}
		}
		for _, implID := range b.implsByIface[docID] {
			if s := b.typeByID[implID]; s != nil {
				out = append(out, s)
			}
		}
		out = append(out, b.mediatorHandlersFor(sym, docID)...)
	}
	return out
}

// expandInterfaceMember adds, for a member declared on an interface, each
// implementing type plus that type's implementation of the member.
func (b *Builder) expandInterfaceMember(member tree.Symbol) []tree.Symbol {
	owner := b.Provider.ContainingTypeOf(member)
	if owner == nil {
		return nil
	}
	ownerID := b.Provider.DocumentationID(owner)
	impls := b.implsByIface[ownerID]
	if len(impls) == 0 {
		return nil
	}
	var memberName string
	if v, ok := b.Provider.InvokeMember(member, "name"); ok {
		memberName, _ = v.(string)
	}

	var out []tree.Symbol
	for _, implID := range impls {
		impl := b.typeByID[implID]
		if impl == nil {
			continue
		}
		out = append(out, impl)
		if memberName != "" {
			if m, ok := b.Provider.MemberAccess(impl, memberName); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

// mediatorHandlersFor resolves the request/notification handlers bound to
// a message type when that type transitively implements IRequest or
// INotification.
func (b *Builder) mediatorHandlersFor(sym tree.Symbol, docID string) []tree.Symbol {
	var isRequest, isNotification bool
	for _, iface := range b.Provider.InterfacesOf(sym) {
		switch simpleTypeName(b.Provider.DisplayString(iface)) {
		case "IRequest":
			isRequest = true
		case "INotification":
			isNotification = true
		}
	}

	var handlerIDs []string
	if isRequest {
		handlerIDs = append(handlerIDs, b.mediatorRequestHandlers[docID]...)
	}
	if isNotification {
		handlerIDs = append(handlerIDs, b.mediatorNotificationHandlers[docID]...)
	}

	var out []tree.Symbol
	for _, hid := range handlerIDs {
		if h := b.typeByID[hid]; h != nil {
			out = append(out, h)
		}
	}
	return out
}

// --- Phase C: emission ----------------------------------------------------

func (b *Builder) emit() *Graph {
	nodes := make([]*Node, 0, len(b.nodes))
	for _, n := range b.nodes {
		if n.Type == "" {
			n.Type = "code.symbol"
		}
		nodes = append(nodes, n)
	}
	edges := make([]*Edge, 0, len(b.edges))
	for _, e := range b.edges {
		edges = append(edges, e)
	}
	return sortGraph(nodes, edges)
}
