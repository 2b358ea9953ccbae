package tree

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// CompilationProvider adapts a *Compilation to the Provider interface.
// Nothing above Provider imports go-tree-sitter directly.
type CompilationProvider struct {
	c *Compilation
}

// NewProvider wraps c as a Provider.
func NewProvider(c *Compilation) *CompilationProvider {
	return &CompilationProvider{c: c}
}

func asNode(n Node) (sitter.Node, bool) {
	sn, ok := n.(sitter.Node)
	return sn, ok
}

func asSymbol(s Symbol) *symbolImpl {
	if s == nil {
		return nil
	}
	impl, _ := s.(*symbolImpl)
	return impl
}

func (p *CompilationProvider) KindOf(n Node) Kind {
	sn, ok := asNode(n)
	if !ok {
		return ""
	}
	return Kind(sn.Type())
}

func (p *CompilationProvider) ChildrenOf(n Node) []Node {
	sn, ok := asNode(n)
	if !ok {
		return nil
	}
	out := make([]Node, 0, sn.ChildCount())
	for i := 0; i < int(sn.ChildCount()); i++ {
		c := sn.Child(i)
		if c != nil {
			out = append(out, Node(*c))
		}
	}
	return out
}

func (p *CompilationProvider) ParentOf(n Node) Node {
	sn, ok := asNode(n)
	if !ok {
		return nil
	}
	parent := sn.Parent()
	if parent == nil {
		return nil
	}
	return Node(*parent)
}

func (p *CompilationProvider) SpanOf(n Node) Span {
	sn, ok := asNode(n)
	if !ok {
		return Span{}
	}
	return Span{
		StartByte: int(sn.StartByte()),
		EndByte:   int(sn.EndByte()),
		StartLine: int(sn.StartPoint().Row) + 1,
		EndLine:   int(sn.EndPoint().Row) + 1,
	}
}

func (p *CompilationProvider) FilePathOf(n Node) string {
	sn, ok := asNode(n)
	if !ok {
		return ""
	}
	if f := p.c.fileFor(sn); f != nil {
		return f.Path
	}
	return ""
}

func (p *CompilationProvider) IdentifierTextOf(n Node) string {
	sn, ok := asNode(n)
	if !ok {
		return ""
	}
	f := p.c.fileFor(sn)
	if f == nil {
		return ""
	}
	switch sn.Type() {
	case string(KindTypeDeclaration):
		for i := 0; i < int(sn.NamedChildCount()); i++ {
			spec := sn.NamedChild(i)
			if spec != nil && spec.Type() == string(KindTypeSpec) {
				if nameNode := spec.ChildByFieldName("name"); nameNode != nil {
					return string(f.Source[nameNode.StartByte():nameNode.EndByte()])
				}
			}
		}
	case string(KindTypeSpec), string(KindFunctionDecl), string(KindMethodDecl):
		if nameNode := sn.ChildByFieldName("name"); nameNode != nil {
			return string(f.Source[nameNode.StartByte():nameNode.EndByte()])
		}
	case string(KindFieldDeclaration):
		names := fieldNames(f, sn)
		if len(names) > 0 {
			return names[0]
		}
	}
	return ""
}

func (p *CompilationProvider) DeclaredSymbol(n Node) Symbol {
	sn, ok := asNode(n)
	if !ok {
		return nil
	}
	switch sn.Type() {
	case string(KindTypeDeclaration):
		for i := 0; i < int(sn.NamedChildCount()); i++ {
			spec := sn.NamedChild(i)
			if spec != nil && spec.Type() == string(KindTypeSpec) {
				if sym, ok := p.c.symbols.byDocID[p.docIDForTypeSpec(*spec)]; ok {
					return Symbol(sym)
				}
			}
		}
	case string(KindTypeSpec):
		// A base type's DeclaringNodeOf is the bare type_spec (symtab.go
		// indexes types by spec, not by the wrapping type_declaration),
		// so :implements needs this node handled directly too.
		if sym, ok := p.c.symbols.byDocID[p.docIDForTypeSpec(sn)]; ok {
			return Symbol(sym)
		}
	case string(KindFunctionDecl), string(KindMethodDecl):
		for _, sym := range p.c.symbols.funcs {
			if sym.node == sn {
				return Symbol(sym)
			}
		}
	}
	return nil
}

func (p *CompilationProvider) docIDForTypeSpec(spec sitter.Node) string {
	for _, s := range p.c.symbols.types {
		if s.node == spec {
			return s.docID
		}
	}
	return ""
}

// BoundSymbol resolves what a reference node (identifier, selector
// expression, call target) refers to by name lookup against the
// compilation's symbol table; this is the "approximate semantic model"
// flowlens substitutes for full binder resolution.
func (p *CompilationProvider) BoundSymbol(n Node) Symbol {
	sn, ok := asNode(n)
	if !ok {
		return nil
	}
	f := p.c.fileFor(sn)
	if f == nil {
		return nil
	}
	text := strings.TrimSpace(string(f.Source[sn.StartByte():sn.EndByte()]))
	text = strings.TrimPrefix(text, "*")
	if idx := strings.LastIndexByte(text, '.'); idx >= 0 {
		text = text[idx+1:]
	}
	if idx := strings.IndexByte(text, '('); idx >= 0 {
		text = text[:idx]
	}
	if sym, ok := p.c.symbols.byName[text]; ok {
		return Symbol(sym)
	}
	for _, sym := range p.c.symbols.funcs {
		if sym.name == text {
			return Symbol(sym)
		}
	}
	return nil
}

func (p *CompilationProvider) TypeInfoOf(n Node) Symbol      { return p.BoundSymbol(n) }
func (p *CompilationProvider) ConvertedTypeOf(n Node) Symbol { return p.BoundSymbol(n) }

func (p *CompilationProvider) ConstantValueOf(n Node) (any, bool) {
	sn, ok := asNode(n)
	if !ok {
		return nil, false
	}
	if sn.Type() != "interpreted_string_literal" && sn.Type() != "int_literal" {
		return nil, false
	}
	f := p.c.fileFor(sn)
	if f == nil {
		return nil, false
	}
	return string(f.Source[sn.StartByte():sn.EndByte()]), true
}

func (p *CompilationProvider) AttributesOf(s Symbol) []Attribute {
	impl := asSymbol(s)
	if impl == nil {
		return nil
	}
	return impl.attributes
}

func symbolSlice(in []*symbolImpl) []Symbol {
	out := make([]Symbol, 0, len(in))
	for _, s := range in {
		if s != nil {
			out = append(out, Symbol(s))
		}
	}
	return out
}

func (p *CompilationProvider) BaseTypesOf(s Symbol) []Symbol {
	impl := asSymbol(s)
	if impl == nil {
		return nil
	}
	return symbolSlice(impl.baseTypes)
}

func (p *CompilationProvider) InterfacesOf(s Symbol) []Symbol {
	impl := asSymbol(s)
	if impl == nil {
		return nil
	}
	return symbolSlice(impl.allInterfacesCache)
}

func (p *CompilationProvider) DirectInterfacesOf(s Symbol) []Symbol {
	impl := asSymbol(s)
	if impl == nil {
		return nil
	}
	return symbolSlice(impl.directInterfaces)
}

func (p *CompilationProvider) MembersOf(s Symbol) []Symbol {
	impl := asSymbol(s)
	if impl == nil {
		return nil
	}
	return symbolSlice(impl.members)
}

func (p *CompilationProvider) DocumentationID(s Symbol) string {
	impl := asSymbol(s)
	if impl == nil {
		return ""
	}
	return impl.docID
}

func (p *CompilationProvider) DisplayString(s Symbol) string {
	impl := asSymbol(s)
	if impl == nil {
		return ""
	}
	return impl.display
}

func (p *CompilationProvider) SymbolKind(s Symbol) SymbolKind {
	impl := asSymbol(s)
	if impl == nil {
		return SymbolKindUnknown
	}
	return impl.kind
}

func (p *CompilationProvider) SymbolEquals(a, b Symbol) bool {
	ia, ib := asSymbol(a), asSymbol(b)
	if ia == nil || ib == nil {
		return ia == ib
	}
	return ia.docID == ib.docID
}

func (p *CompilationProvider) HasSourceLocation(s Symbol) bool {
	impl := asSymbol(s)
	return impl != nil && impl.hasNode
}

func (p *CompilationProvider) SourceSpanOf(s Symbol) (Span, bool) {
	impl := asSymbol(s)
	if impl == nil || !impl.hasNode {
		return Span{}, false
	}
	return p.SpanOf(Node(impl.node)), true
}

func (p *CompilationProvider) DeclaringNodeOf(s Symbol) Node {
	impl := asSymbol(s)
	if impl == nil || !impl.hasNode {
		return nil
	}
	return Node(impl.node)
}

func (p *CompilationProvider) ContainingTypeOf(s Symbol) Symbol {
	impl := asSymbol(s)
	if impl == nil || impl.containingType == nil {
		return nil
	}
	return Symbol(impl.containingType)
}

func (p *CompilationProvider) ContainingAssemblyOf(s Symbol) string {
	impl := asSymbol(s)
	if impl == nil {
		return ""
	}
	return impl.containingAssembly
}

func (p *CompilationProvider) ReturnTypeOf(s Symbol) Symbol {
	impl := asSymbol(s)
	if impl == nil || impl.returnType == nil {
		return nil
	}
	return Symbol(impl.returnType)
}

func (p *CompilationProvider) ValueTypeOf(s Symbol) Symbol {
	impl := asSymbol(s)
	if impl == nil || impl.valueType == nil {
		return nil
	}
	return Symbol(impl.valueType)
}

func (p *CompilationProvider) ParameterTypesOf(s Symbol) []Symbol {
	impl := asSymbol(s)
	if impl == nil {
		return nil
	}
	return symbolSlice(impl.paramTypes)
}

func (p *CompilationProvider) TypeArgumentsOf(s Symbol) []Symbol {
	impl := asSymbol(s)
	if impl == nil {
		return nil
	}
	return symbolSlice(impl.typeArgs)
}

func (p *CompilationProvider) ReducedFromOf(s Symbol) Symbol { return nil }

func (p *CompilationProvider) PartialImplementationsOf(s Symbol) []Symbol { return nil }

func (p *CompilationProvider) MemberAccess(s Symbol, name string) (Symbol, bool) {
	impl := asSymbol(s)
	if impl == nil {
		return nil, false
	}
	for _, m := range impl.members {
		if strings.EqualFold(m.name, name) {
			return Symbol(m), true
		}
	}
	return nil, false
}

func (p *CompilationProvider) InvokeMember(s Symbol, name string) (any, bool) {
	impl := asSymbol(s)
	if impl == nil {
		return nil, false
	}
	switch strings.ToLower(name) {
	case "displaystring":
		return impl.display, true
	case "name":
		return impl.name, true
	case "documentationid":
		return impl.docID, true
	}
	return nil, false
}
