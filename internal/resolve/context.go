// Package resolve evaluates dotted property-path expressions against a
// match context, and implements the CSS-style
// string/numeric matcher semantics used by attribute selectors.
package resolve

import (
	"strings"

	"github.com/r-dutton/flowlens/internal/tree"
)

// Context is the per-evaluation-point match context: the
// current node, the query's starting scope and tree root, optional
// semantic-model handles, metadata, and the capture chain.
type Context struct {
	Node     tree.Node
	Scope    tree.Node
	Root     tree.Node
	Provider tree.Provider

	// Compilation is an opaque handle to whatever compilation-level value
	// callers want exposed under the "Compilation" property root; flowlens
	// itself never inspects it beyond passing it through.
	Compilation any

	Metadata *Metadata
	State    *MatchState

	symbol    tree.Symbol
	symbolSet bool
}

// Symbol lazily derives the bound symbol for ctx.Node, preferring the
// declared symbol and falling back to the bound symbol.
func (c *Context) Symbol() tree.Symbol {
	if c.symbolSet {
		return c.symbol
	}
	c.symbolSet = true
	if c.Provider == nil || c.Node == nil {
		return nil
	}
	if s := c.Provider.DeclaredSymbol(c.Node); s != nil {
		c.symbol = s
		return s
	}
	c.symbol = c.Provider.BoundSymbol(c.Node)
	return c.symbol
}

// Child derives a context for a subtree rooted at n, inheriting scope,
// root, provider, compilation and metadata, with a fresh capture child
// state (copy-on-write).
func (c *Context) Child(n tree.Node) *Context {
	return &Context{
		Node:        n,
		Scope:       c.Scope,
		Root:        c.Root,
		Provider:    c.Provider,
		Compilation: c.Compilation,
		Metadata:    c.Metadata,
		State:       c.State.Child(),
	}
}

// Metadata is a case-insensitive string-keyed value map.
type Metadata struct {
	entries map[string]any  // lower(key) -> value
	display map[string]string // lower(key) -> original-case key
}

// NewMetadata builds a Metadata from a plain map, lower-casing keys for
// lookup while preserving first-seen original casing for iteration.
func NewMetadata(m map[string]any) *Metadata {
	md := &Metadata{entries: make(map[string]any), display: make(map[string]string)}
	for k, v := range m {
		md.Set(k, v)
	}
	return md
}

func (m *Metadata) Set(key string, value any) {
	if m == nil {
		return
	}
	lk := strings.ToLower(key)
	m.entries[lk] = value
	if _, ok := m.display[lk]; !ok {
		m.display[lk] = key
	}
}

func (m *Metadata) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.entries[strings.ToLower(key)]
	return v, ok
}

// MatchState is a tree-structured capture store: each
// child context inherits parent captures and may shadow them on lookup.
type MatchState struct {
	parent  *MatchState
	own     map[string]any
	display map[string]string
}

// NewMatchState starts a fresh top-level capture chain for one query.
func NewMatchState() *MatchState {
	return &MatchState{}
}

// Child derives a copy-on-write child state: reads fall through to the
// parent until this state's own map gains an entry of the same name.
func (s *MatchState) Child() *MatchState {
	return &MatchState{parent: s}
}

// Set stores a capture in this state's own frame, shadowing any parent
// capture of the same name for this subtree.
func (s *MatchState) Set(name string, value any) {
	if s.own == nil {
		s.own = make(map[string]any)
		s.display = make(map[string]string)
	}
	s.own[name] = value
	s.display[strings.ToLower(name)] = name
}

// Get resolves name by walking from this state up through parents,
// child entries shadowing same-named ancestors.
func (s *MatchState) Get(name string) (any, bool) {
	for st := s; st != nil; st = st.parent {
		if st.own == nil {
			continue
		}
		if v, ok := st.own[name]; ok {
			return v, ok
		}
	}
	return nil, false
}

// All returns the merged view of every capture visible at this state,
// child entries taking precedence over same-named ancestors.
func (s *MatchState) All() map[string]any {
	out := make(map[string]any)
	chain := []*MatchState{}
	for st := s; st != nil; st = st.parent {
		chain = append(chain, st)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].own {
			out[k] = v
		}
	}
	return out
}
