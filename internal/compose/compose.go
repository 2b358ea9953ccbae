// Package compose implements the graph composer: a thread-safe
// accumulator that merges per-project flow graphs and augments the
// merge with cross-service "remote" edges synthesized from HTTP-call
// evidence and workspace bindings.
package compose

import (
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/r-dutton/flowlens/internal/flowgraph"
)

// nodeAccumulator holds one node identity's merged state across however
// many per-project graphs contributed to it.
type nodeAccumulator struct {
	node *flowgraph.Node
}

// Composition is the concurrent accumulator:
// AddGraph is safe under concurrent callers, Build emits the merged and
// remote-augmented graph.
type Composition struct {
	mu        sync.Mutex
	nodes     map[string]*nodeAccumulator
	edges     map[string]*flowgraph.Edge
	Workspace *WorkspaceDefinition
	Logger    *log.Logger
}

// NewComposition creates an empty composer. A nil ws is treated as a
// valid, empty workspace.
func NewComposition(ws *WorkspaceDefinition) *Composition {
	return &Composition{
		nodes:     map[string]*nodeAccumulator{},
		edges:     map[string]*flowgraph.Edge{},
		Workspace: ws,
		Logger:    log.Default(),
	}
}

// AddGraph merges g's nodes and edges into the accumulator. Safe for
// concurrent use; g may be nil.
func (c *Composition) AddGraph(g *flowgraph.Graph) {
	if g == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range g.Nodes {
		if acc, ok := c.nodes[n.ID]; ok {
			mergeNode(acc.node, n)
		} else {
			c.nodes[n.ID] = &nodeAccumulator{node: cloneNode(n)}
		}
	}
	for _, e := range g.Edges {
		key := edgeKey(e.From, e.To, e.Kind)
		if _, ok := c.edges[key]; !ok {
			c.edges[key] = cloneEdge(e)
		}
	}
}

func edgeKey(from, to, kind string) string { return from + "\x00" + to + "\x00" + kind }

func cloneNode(n *flowgraph.Node) *flowgraph.Node {
	out := &flowgraph.Node{
		ID: n.ID, Type: n.Type, Name: n.Name, Fqdn: n.Fqdn,
		Assembly: n.Assembly, Project: n.Project, FilePath: n.FilePath,
		HasSpan: n.HasSpan, StartLine: n.StartLine, EndLine: n.EndLine,
		SymbolID: n.SymbolID,
		Tags:     map[string]struct{}{},
		Properties: map[string]string{},
	}
	for t := range n.Tags {
		out.Tags[t] = struct{}{}
	}
	for k, v := range n.Properties {
		out.Properties[k] = v
	}
	return out
}

func cloneEdge(e *flowgraph.Edge) *flowgraph.Edge {
	out := &flowgraph.Edge{From: e.From, To: e.To, Kind: e.Kind, Source: e.Source, Confidence: e.Confidence}
	out.Evidence = append(out.Evidence, e.Evidence...)
	return out
}

// mergeNode implements the node-merge invariant: first
// non-empty scalar wins, tag/property sets union (first non-empty value
// per property key).
func mergeNode(dst, src *flowgraph.Node) {
	if dst.Type == "" {
		dst.Type = src.Type
	}
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if dst.Fqdn == "" {
		dst.Fqdn = src.Fqdn
	}
	if dst.Assembly == "" {
		dst.Assembly = src.Assembly
	}
	if dst.Project == "" {
		dst.Project = src.Project
	}
	if dst.FilePath == "" {
		dst.FilePath = src.FilePath
	}
	if !dst.HasSpan && src.HasSpan {
		dst.HasSpan, dst.StartLine, dst.EndLine = true, src.StartLine, src.EndLine
	}
	if dst.SymbolID == "" {
		dst.SymbolID = src.SymbolID
	}
	for t := range src.Tags {
		dst.Tags[t] = struct{}{}
	}
	for k, v := range src.Properties {
		if existing, ok := dst.Properties[k]; (!ok || existing == "") && v != "" {
			dst.Properties[k] = v
		}
	}
}

// Build emits the merged graph in canonical order and then applies
// remote-edge augmentation.
func (c *Composition) Build() *flowgraph.Graph {
	c.mu.Lock()
	nodes := make([]*flowgraph.Node, 0, len(c.nodes))
	for _, acc := range c.nodes {
		nodes = append(nodes, acc.node)
	}
	edges := make([]*flowgraph.Edge, 0, len(c.edges))
	for _, e := range c.edges {
		edges = append(edges, e)
	}
	c.mu.Unlock()

	g := sortedGraph(nodes, edges)
	return c.augmentRemote(g)
}

func sortedGraph(nodes []*flowgraph.Node, edges []*flowgraph.Edge) *flowgraph.Graph {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Fqdn < nodes[j].Fqdn })
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		return edges[i].Kind < edges[j].Kind
	})
	return &flowgraph.Graph{Nodes: nodes, Edges: edges}
}

// Compose merges an arbitrary list of graphs in one call. Merging is
// commutative and associative: any permutation of graphs produces the
// same emitted output.
func Compose(graphs []*flowgraph.Graph, ws *WorkspaceDefinition) *flowgraph.Graph {
	c := NewComposition(ws)
	for _, g := range graphs {
		c.AddGraph(g)
	}
	return c.Build()
}

const (
	httpCallType          = "infra.http_call"
	controllerActionType  = "endpoint.controller_action"
)

// augmentRemote implements remote-edge augmentation:
// resolve each infra.http_call node's candidate target service and
// action set from workspace bindings/assembly/base-url/verb/route
// evidence, then emit flow (caller->call) and remote (call->action)
// edges.
func (c *Composition) augmentRemote(g *flowgraph.Graph) *flowgraph.Graph {
	ws := c.Workspace
	if ws == nil {
		ws = EmptyWorkspace()
	}

	byID := map[string]*flowgraph.Node{}
	var actions []*flowgraph.Node
	actionsByAssembly := map[string][]*flowgraph.Node{}
	actionsByVerbRoute := map[string][]*flowgraph.Node{}
	actionsByVerb := map[string][]*flowgraph.Node{}
	actionsByRoute := map[string][]*flowgraph.Node{}

	for _, n := range g.Nodes {
		byID[n.ID] = n
		if n.Type != controllerActionType {
			continue
		}
		actions = append(actions, n)
		if n.Assembly != "" {
			actionsByAssembly[n.Assembly] = append(actionsByAssembly[n.Assembly], n)
		}
		verb := n.Properties["http_method"]
		route := canonicalRoute(n.Properties["full_route"])
		if verb != "" && route != "" {
			actionsByVerbRoute[verb+"\x00"+route] = append(actionsByVerbRoute[verb+"\x00"+route], n)
		}
		if verb != "" {
			actionsByVerb[verb] = append(actionsByVerb[verb], n)
		}
		if route != "" {
			actionsByRoute[route] = append(actionsByRoute[route], n)
		}
	}

	edgeKeys := map[string]bool{}
	nodes := append([]*flowgraph.Node{}, g.Nodes...)
	edges := append([]*flowgraph.Edge{}, g.Edges...)
	for _, e := range edges {
		edgeKeys[edgeKey(e.From, e.To, e.Kind)] = true
	}

	loggedSkip := false
	for _, call := range g.Nodes {
		if call.Type != httpCallType {
			continue
		}
		if !hasAnyRemoteSignal(call) {
			if !loggedSkip {
				c.Logger.Printf("compose: skipping remote augmentation for %s: no verb/route/client/caller/base-url/assembly evidence", call.ID)
				loggedSkip = true
			}
			if callerID := call.Properties["caller_id"]; callerID != "" {
				if _, ok := byID[callerID]; ok {
					addEdge(&edges, edgeKeys, callerID, call.ID, "flow", call)
				}
			}
			continue
		}

		targetServices := c.candidateServices(ws, call)
		candidates := c.candidateActions(ws, targetServices, call, actionsByAssembly, actionsByVerbRoute, actionsByVerb, actionsByRoute, actions)
		refined := refineActions(candidates, call)

		if callerID := call.Properties["caller_id"]; callerID != "" {
			if _, ok := byID[callerID]; ok {
				addEdge(&edges, edgeKeys, callerID, call.ID, "flow", call)
			}
		}
		for _, action := range refined {
			addEdge(&edges, edgeKeys, call.ID, action.ID, "remote", call)
		}
	}

	return sortedGraph(nodes, edges)
}

func hasAnyRemoteSignal(call *flowgraph.Node) bool {
	for _, k := range []string{"http_method", "verb", "route", "full_route", "client_type", "caller_type", "base_url"} {
		if call.Properties[k] != "" {
			return true
		}
	}
	return call.Assembly != ""
}

func addEdge(edges *[]*flowgraph.Edge, keys map[string]bool, from, to, kind string, origin *flowgraph.Node) {
	key := edgeKey(from, to, kind)
	if keys[key] {
		return
	}
	keys[key] = true
	e := &flowgraph.Edge{From: from, To: to, Kind: kind, Source: "compose", Confidence: 1.0}
	if origin != nil && origin.FilePath != "" {
		e.Evidence = []flowgraph.Evidence{{Path: origin.FilePath, StartLine: origin.StartLine, EndLine: origin.EndLine}}
	}
	*edges = append(*edges, e)
}

// candidateServices determines target services in priority order:
// client-type binding, caller-type binding, base-address
// match, assembly match.
func (c *Composition) candidateServices(ws *WorkspaceDefinition, call *flowgraph.Node) []*ServiceDefinition {
	var out []*ServiceDefinition
	seen := map[string]bool{}
	add := func(s *ServiceDefinition) {
		if s == nil || seen[s.Name] {
			return
		}
		seen[s.Name] = true
		out = append(out, s)
	}

	if clientType := call.Properties["client_type"]; clientType != "" {
		for _, b := range ws.Bindings {
			if b.Client == clientType {
				add(ws.Services[b.TargetService])
			}
		}
	}
	if callerType := call.Properties["caller_type"]; callerType != "" {
		for _, b := range ws.Bindings {
			if b.Caller == callerType {
				add(ws.Services[b.TargetService])
			}
		}
	}
	if baseURL := normalizeBaseURL(call.Properties["base_url"]); baseURL != "" {
		if svc, ok := ws.servicesByBaseURL()[baseURL]; ok {
			for _, s := range svc {
				add(s)
			}
		}
	}
	if call.Assembly != "" {
		if svc, ok := ws.servicesByAssembly()[call.Assembly]; ok {
			for _, s := range svc {
				add(s)
			}
		}
	}
	return out
}

func (c *Composition) candidateActions(
	ws *WorkspaceDefinition,
	services []*ServiceDefinition,
	call *flowgraph.Node,
	byAssembly, byVerbRoute, byVerb, byRoute map[string][]*flowgraph.Node,
	allActions []*flowgraph.Node,
) []*flowgraph.Node {
	seen := map[string]bool{}
	var out []*flowgraph.Node
	add := func(ns []*flowgraph.Node) {
		for _, n := range ns {
			if !seen[n.ID] {
				seen[n.ID] = true
				out = append(out, n)
			}
		}
	}

	narrowed := false
	for _, svc := range services {
		for _, asm := range svc.AssemblyNames {
			if ns, ok := byAssembly[asm]; ok {
				narrowed = true
				add(ns)
			}
		}
	}
	verb := call.Properties["http_method"]
	if verb == "" {
		verb = call.Properties["verb"]
	}
	route := canonicalRoute(call.Properties["full_route"])
	if route == "" {
		route = canonicalRoute(call.Properties["route"])
	}
	if verb != "" && route != "" {
		if ns, ok := byVerbRoute[verb+"\x00"+route]; ok {
			narrowed = true
			add(ns)
		}
	}
	if verb != "" {
		if ns, ok := byVerb[verb]; ok {
			narrowed = true
			add(ns)
		}
	}
	if route != "" {
		if ns, ok := byRoute[route]; ok {
			narrowed = true
			add(ns)
		}
	}
	if !narrowed {
		return append([]*flowgraph.Node{}, allActions...)
	}
	return out
}

// refineActions narrows candidates: prefer route+verb, then
// route-only, then verb-only, else unchanged.
func refineActions(candidates []*flowgraph.Node, call *flowgraph.Node) []*flowgraph.Node {
	verb := call.Properties["http_method"]
	if verb == "" {
		verb = call.Properties["verb"]
	}
	route := canonicalRoute(call.Properties["full_route"])
	if route == "" {
		route = canonicalRoute(call.Properties["route"])
	}
	if verb == "" && route == "" {
		return candidates
	}

	var both, routeOnly, verbOnly []*flowgraph.Node
	for _, a := range candidates {
		aVerb := a.Properties["http_method"]
		aRoute := canonicalRoute(a.Properties["full_route"])
		matchVerb := verb != "" && aVerb == verb
		matchRoute := route != "" && aRoute == route
		switch {
		case matchVerb && matchRoute:
			both = append(both, a)
		case matchRoute:
			routeOnly = append(routeOnly, a)
		case matchVerb:
			verbOnly = append(verbOnly, a)
		}
	}
	if len(both) > 0 {
		return both
	}
	if len(routeOnly) > 0 {
		return routeOnly
	}
	if len(verbOnly) > 0 {
		return verbOnly
	}
	return candidates
}

func canonicalRoute(r string) string {
	return strings.TrimRight(r, "/")
}

func normalizeBaseURL(u string) string {
	u = strings.ToLower(strings.TrimSpace(u))
	u = strings.TrimSuffix(u, "/")
	return u
}
