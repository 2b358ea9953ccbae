package tree

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// symbolImpl is the concrete backing type behind every Symbol this package
// hands out. Fields mirror what Provider needs to expose; there is no
// encapsulation beyond the package boundary because Provider already is
// the encapsulation boundary for the rest of flowlens.
type symbolImpl struct {
	kind        SymbolKind
	name        string
	docID       string
	display     string
	isInterface bool

	file *FileUnit
	node sitter.Node
	hasNode bool

	containingType     *symbolImpl
	containingAssembly string
	baseTypes          []*symbolImpl
	directInterfaces   []*symbolImpl
	allInterfacesCache []*symbolImpl
	members            []*symbolImpl
	returnType         *symbolImpl
	valueType          *symbolImpl
	paramTypes         []*symbolImpl
	typeArgs           []*symbolImpl
	attributes         []Attribute
}

// SymbolTable indexes every type, method, and field symbol discovered in a
// Compilation, keyed for the lookups Provider and the flow-graph builder
// need (by name for receiver/embedding resolution, by documentation id for
// node identity in the emitted graph).
type SymbolTable struct {
	byName  map[string]*symbolImpl
	byDocID map[string]*symbolImpl
	types   []*symbolImpl
	funcs   []*symbolImpl
}

func newSymbolTable() *SymbolTable {
	return &SymbolTable{
		byName:  make(map[string]*symbolImpl),
		byDocID: make(map[string]*symbolImpl),
	}
}

func (t *SymbolTable) allTypes() []Symbol {
	out := make([]Symbol, 0, len(t.types))
	for _, s := range t.types {
		out = append(out, Symbol(s))
	}
	return out
}

// build indexes in two passes: first every named type, then
// methods/fields/embeddings, which may reference a type declared in a
// different file.
func (t *SymbolTable) build(c *Compilation) {
	for _, path := range c.order {
		f := c.files[path]
		t.indexTypes(c, f)
	}
	for _, path := range c.order {
		f := c.files[path]
		t.indexMembers(c, f)
	}
	t.indexFields(c)
	t.resolveEmbeddings()
}

func (t *SymbolTable) indexTypes(c *Compilation, f *FileUnit) {
	walkChildren(f.Root, func(n sitter.Node) {
		if n.Type() != string(KindTypeDeclaration) {
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			spec := n.NamedChild(i)
			if spec == nil || spec.Type() != string(KindTypeSpec) {
				continue
			}
			nameNode := spec.ChildByFieldName("name")
			typeNode := spec.ChildByFieldName("type")
			if nameNode == nil || typeNode == nil {
				continue
			}
			name := string(f.Source[nameNode.StartByte():nameNode.EndByte()])
			sym := &symbolImpl{
				kind:               SymbolKindType,
				name:               name,
				docID:              fmt.Sprintf("T:%s.%s", c.Project, name),
				display:            name,
				isInterface:        typeNode.Type() == string(KindInterfaceType),
				file:               f,
				node:               *spec,
				hasNode:            true,
				containingAssembly: c.Assembly,
				attributes:         parseAnnotations(commentsBefore(f, n)),
			}
			t.byName[name] = sym
			t.byDocID[sym.docID] = sym
			t.types = append(t.types, sym)
		}
	})
}

func (t *SymbolTable) indexMembers(c *Compilation, f *FileUnit) {
	walkChildren(f.Root, func(n sitter.Node) {
		switch n.Type() {
		case string(KindFunctionDecl):
			t.indexFunction(c, f, n, nil)
		case string(KindMethodDecl):
			recv := n.ChildByFieldName("receiver")
			recvType := receiverTypeName(f, recv)
			owner := t.byName[recvType]
			t.indexFunction(c, f, n, owner)
		}
	})
}

// indexFields walks every struct type once (after all files' functions
// are in) and indexes its field_declarations, resolving embeddings into
// base-type/interface entries.
func (t *SymbolTable) indexFields(c *Compilation) {
	for _, sym := range t.types {
		if sym.isInterface || !sym.hasNode {
			continue
		}
		typeNode := sym.node.ChildByFieldName("type")
		if typeNode == nil || typeNode.Type() != string(KindStructType) {
			continue
		}
		// The grammar nests fields one level down:
		// struct_type -> field_declaration_list -> field_declaration.
		for i := 0; i < int(typeNode.NamedChildCount()); i++ {
			list := typeNode.NamedChild(i)
			if list == nil || list.Type() != string(KindFieldDeclarationList) {
				continue
			}
			for j := 0; j < int(list.NamedChildCount()); j++ {
				fd := list.NamedChild(j)
				if fd == nil || fd.Type() != string(KindFieldDeclaration) {
					continue
				}
				t.indexField(c, sym, *fd)
			}
		}
	}
}

func (t *SymbolTable) indexFunction(c *Compilation, f *FileUnit, n sitter.Node, owner *symbolImpl) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := string(f.Source[nameNode.StartByte():nameNode.EndByte()])

	docID := fmt.Sprintf("M:%s.%s", c.Project, name)
	display := name + "()"
	if owner != nil {
		docID = fmt.Sprintf("M:%s.%s.%s", c.Project, owner.name, name)
		display = owner.name + "." + name + "()"
	}

	sym := &symbolImpl{
		kind:               SymbolKindMethod,
		name:                name,
		docID:               docID,
		display:             display,
		file:                f,
		node:                n,
		hasNode:             true,
		containingType:      owner,
		containingAssembly:  c.Assembly,
		attributes:          parseAnnotations(commentsBefore(f, n)),
	}

	resultNode := n.ChildByFieldName("result")
	if resultNode != nil {
		if rt, ok := t.byName[typeText(f, *resultNode)]; ok {
			sym.returnType = rt
		}
	}

	if params := n.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			p := params.NamedChild(i)
			if p == nil {
				continue
			}
			if pt := p.ChildByFieldName("type"); pt != nil {
				if rt, ok := t.byName[typeText(f, *pt)]; ok {
					sym.paramTypes = append(sym.paramTypes, rt)
				} else {
					sym.paramTypes = append(sym.paramTypes, nil)
				}
			}
		}
	}

	t.byDocID[sym.docID] = sym
	t.funcs = append(t.funcs, sym)
	if owner != nil {
		owner.members = append(owner.members, sym)
	}
}

func (t *SymbolTable) indexField(c *Compilation, owner *symbolImpl, n sitter.Node) {
	typeNode := n.ChildByFieldName("type")
	typeName := ""
	if typeNode != nil {
		typeName = typeText(owner.file, *typeNode)
	}
	baseName, argNames := splitGenericType(typeName)

	names := fieldNames(owner.file, n)
	anonymous := len(names) == 0
	if anonymous {
		names = []string{baseName}
	}

	for _, name := range names {
		sym := &symbolImpl{
			kind:               SymbolKindField,
			name:               name,
			docID:              fmt.Sprintf("F:%s.%s.%s", c.Project, owner.name, name),
			display:             owner.name + "." + name,
			file:                owner.file,
			node:                n,
			hasNode:             true,
			containingType:      owner,
			containingAssembly:  c.Assembly,
			attributes:          parseAnnotations(commentsBefore(owner.file, n)),
		}
		if vt, ok := t.byName[baseName]; ok {
			sym.valueType = vt
			if anonymous {
				use := vt
				if len(argNames) > 0 {
					use = t.instantiate(vt, argNames, typeName)
				}
				owner.baseTypes = append(owner.baseTypes, use)
				if vt.isInterface {
					owner.directInterfaces = append(owner.directInterfaces, use)
				}
			}
		}
		t.byDocID[sym.docID] = sym
		owner.members = append(owner.members, sym)
	}
}

// instantiate builds a constructed-generic view of base with its type
// arguments resolved, so an embedding like IRequestHandler[CreateReport]
// exposes CreateReport through Provider.TypeArgumentsOf. The constructed
// symbol shares base's documentation id so identity (SymbolEquals, graph
// node keys) is unaffected by instantiation.
func (t *SymbolTable) instantiate(base *symbolImpl, argNames []string, display string) *symbolImpl {
	inst := &symbolImpl{
		kind:               base.kind,
		name:               base.name,
		docID:              base.docID,
		display:            display,
		isInterface:        base.isInterface,
		file:               base.file,
		node:               base.node,
		hasNode:            base.hasNode,
		containingAssembly: base.containingAssembly,
		baseTypes:          base.baseTypes,
		directInterfaces:   base.directInterfaces,
		members:            base.members,
	}
	for _, an := range argNames {
		if arg, ok := t.byName[strings.TrimSpace(an)]; ok {
			inst.typeArgs = append(inst.typeArgs, arg)
		}
	}
	return inst
}

// splitGenericType splits "IRequestHandler[CreateReport]" into its base
// name and type-argument names; a non-generic name comes back unchanged
// with no arguments.
func splitGenericType(typeName string) (string, []string) {
	i := strings.IndexByte(typeName, '[')
	if i < 0 || !strings.HasSuffix(typeName, "]") {
		return typeName, nil
	}
	base := typeName[:i]
	inner := typeName[i+1 : len(typeName)-1]
	if strings.TrimSpace(inner) == "" {
		return base, nil
	}
	return base, strings.Split(inner, ",")
}

// resolveEmbeddings expands InterfacesOf transitively through embedded
// struct base types. :implements matching stays direct-only; Provider
// reports the full transitive closure so callers can choose.
func (t *SymbolTable) resolveEmbeddings() {
	var allInterfaces func(s *symbolImpl, seen map[*symbolImpl]bool) []*symbolImpl
	allInterfaces = func(s *symbolImpl, seen map[*symbolImpl]bool) []*symbolImpl {
		if seen[s] {
			return nil
		}
		seen[s] = true
		out := append([]*symbolImpl{}, s.directInterfaces...)
		for _, base := range s.baseTypes {
			out = append(out, allInterfaces(base, seen)...)
		}
		return out
	}
	for _, s := range t.types {
		s.allInterfacesCache = allInterfaces(s, map[*symbolImpl]bool{})
	}
}

func walkChildren(n sitter.Node, visit func(sitter.Node)) {
	visit(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil {
			walkChildren(*c, visit)
		}
	}
}

func typeText(f *FileUnit, n sitter.Node) string {
	text := string(f.Source[n.StartByte():n.EndByte()])
	return strings.TrimPrefix(text, "*")
}

func receiverTypeName(f *FileUnit, recv *sitter.Node) string {
	if recv == nil || recv.NamedChildCount() == 0 {
		return ""
	}
	p := recv.NamedChild(0)
	if p == nil {
		return ""
	}
	tn := p.ChildByFieldName("type")
	if tn == nil {
		return ""
	}
	return typeText(f, *tn)
}

func fieldNames(f *FileUnit, n sitter.Node) []string {
	var names []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c != nil && c.Type() == "field_identifier" {
			names = append(names, string(f.Source[c.StartByte():c.EndByte()]))
		}
	}
	return names
}

// commentsBefore collects the raw text of comment nodes immediately
// preceding n among its parent's children, stopping at the first
// non-comment sibling.
func commentsBefore(f *FileUnit, n sitter.Node) []string {
	parent := n.Parent()
	if parent == nil {
		return nil
	}
	idx := -1
	for i := 0; i < int(parent.ChildCount()); i++ {
		c := parent.Child(i)
		if c != nil && c.StartByte() == n.StartByte() && c.EndByte() == n.EndByte() {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return nil
	}
	var lines []string
	for i := idx - 1; i >= 0; i-- {
		c := parent.Child(i)
		if c == nil || c.Type() != string(KindComment) {
			break
		}
		lines = append([]string{string(f.Source[c.StartByte():c.EndByte()])}, lines...)
	}
	return lines
}
