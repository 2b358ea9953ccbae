package tree

import (
	"context"
	"fmt"
	"sort"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	golang "github.com/smacker/go-tree-sitter/golang"
)

// FileUnit is one parsed source file within a Compilation.
type FileUnit struct {
	Path   string
	Source []byte
	Tree   *sitter.Tree
	Root   sitter.Node
}

// Compilation owns one parsed tree-sitter tree per source file plus the
// SymbolTable built by walking them. NewProvider wraps it as a Provider so
// the selector/matcher/flowgraph packages can treat it as an opaque tree
// and symbol provider.
type Compilation struct {
	mu       sync.Mutex
	Project  string
	Assembly string
	files    map[string]*FileUnit
	order    []string
	nodeFile map[sitter.Node]*FileUnit
	symbols  *SymbolTable
}

// NewCompilation creates an empty compilation for the given project name
// (used as the default "project" metadata and assembly name).
func NewCompilation(project string) *Compilation {
	return &Compilation{
		Project:  project,
		Assembly: project,
		files:    make(map[string]*FileUnit),
		nodeFile: make(map[sitter.Node]*FileUnit),
		symbols:  newSymbolTable(),
	}
}

// AddSource parses src under path and adds it to the compilation,
// rebuilding the symbol table. Safe to call after construction; adding
// a path that is already present replaces its tree.
func (c *Compilation) AddSource(path string, src []byte) error {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	t, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return fmt.Errorf("tree: parse %s: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.files[path]; !exists {
		c.order = append(c.order, path)
	}
	fu := &FileUnit{Path: path, Source: src, Tree: t, Root: *t.RootNode()}
	c.files[path] = fu
	c.rebuildLocked()
	return nil
}

// HasFile reports whether path is already part of the compilation.
func (c *Compilation) HasFile(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.files[path]
	return ok
}

// Files returns the compilation's files in the order they were added.
func (c *Compilation) Files() []*FileUnit {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*FileUnit, 0, len(c.order))
	for _, p := range c.order {
		out = append(out, c.files[p])
	}
	return out
}

// SyntaxTrees returns the root node of every file, in deterministic
// (path-sorted) order.
func (c *Compilation) SyntaxTrees() []Node {
	files := c.Files()
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	out := make([]Node, 0, len(files))
	for _, f := range files {
		out = append(out, f.Root)
	}
	return out
}

// GlobalNamespace returns every named type symbol declared across the
// compilation, used by the flow-graph builder's indexing phase.
func (c *Compilation) GlobalNamespace() []Symbol {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.symbols.allTypes()
}

// rebuildLocked re-walks every file and rebuilds the symbol table and the
// node->file ownership index. Called with mu held.
func (c *Compilation) rebuildLocked() {
	c.nodeFile = make(map[sitter.Node]*FileUnit)
	c.symbols = newSymbolTable()
	for _, path := range c.order {
		f := c.files[path]
		registerNodeOwnership(f.Root, f, c.nodeFile)
	}
	c.symbols.build(c)
}

func registerNodeOwnership(n sitter.Node, f *FileUnit, out map[sitter.Node]*FileUnit) {
	out[n] = f
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil {
			registerNodeOwnership(*child, f, out)
		}
	}
}

func (c *Compilation) fileFor(n sitter.Node) *FileUnit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodeFile[n]
}
