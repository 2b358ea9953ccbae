// Package tree is the boundary between flowlens and the underlying
// syntax-tree / semantic-model library. Everything above this package
// (selector, resolve, match, rules, flowgraph, compose) talks only to the
// small interface below; it never imports go-tree-sitter directly.
package tree

// Kind is a syntax node's raw grammar kind, as produced by the tree
// provider (e.g. "function_declaration", "type_declaration").
type Kind string

// Node is an opaque syntax tree node handle. Providers decide what
// concrete type backs it; callers only pass it back into the Provider
// methods below.
type Node any

// Span is a half-open byte range plus 1-based line numbers.
type Span struct {
	StartByte, EndByte int
	StartLine, EndLine int
}

// Symbol is an opaque bound-symbol handle (a declared type, method,
// field, parameter, ...). Two symbols are the same entity iff Provider's
// SymbolEquals reports true for them; callers must never compare them by
// identity.
type Symbol any

// Provider is the boundary to the tree/semantic-model backend: property
// resolution and matching are expressed only in terms of these methods, never against a concrete AST library.
type Provider interface {
	// KindOf returns the raw grammar kind of a node.
	KindOf(n Node) Kind

	// ChildrenOf returns n's children in source order.
	ChildrenOf(n Node) []Node

	// ParentOf returns n's parent, or nil at the root.
	ParentOf(n Node) Node

	// SpanOf returns n's source span.
	SpanOf(n Node) Span

	// FilePathOf returns the path of the file n was parsed from.
	FilePathOf(n Node) string

	// IdentifierTextOf returns the declared name text for a declaration
	// node (class, method, interface, property, field, ...), or "" if n
	// is not a named declaration.
	IdentifierTextOf(n Node) string

	// DeclaredSymbol returns the symbol n declares, if any.
	DeclaredSymbol(n Node) Symbol

	// BoundSymbol returns the symbol n refers to (an identifier, member
	// access, invocation, ...), if any.
	BoundSymbol(n Node) Symbol

	// TypeInfoOf returns the static type of an expression node.
	TypeInfoOf(n Node) Symbol

	// ConvertedTypeOf returns the converted (as-used) type of an
	// expression node, which may differ from TypeInfoOf for implicit
	// conversions.
	ConvertedTypeOf(n Node) Symbol

	// ConstantValueOf returns the compile-time constant value of n, and
	// whether n is constant at all.
	ConstantValueOf(n Node) (value any, ok bool)

	// AttributesOf returns the attributes/annotations/decorators applied
	// to a symbol.
	AttributesOf(s Symbol) []Attribute

	// BaseTypesOf returns s's declared base types (superclass-like
	// entries in a base list), in declaration order.
	BaseTypesOf(s Symbol) []Symbol

	// InterfacesOf returns all interfaces s implements, direct and
	// inherited.
	InterfacesOf(s Symbol) []Symbol

	// DirectInterfacesOf returns only the interfaces listed directly on
	// s's base list.
	DirectInterfacesOf(s Symbol) []Symbol

	// MembersOf returns s's declared members (methods, fields,
	// properties, ...).
	MembersOf(s Symbol) []Symbol

	// DocumentationID returns s's canonical stable documentation-comment
	// id (e.g. "M:Foo.Bar.Baz(System.Int32)"), or "" if unavailable.
	DocumentationID(s Symbol) string

	// DisplayString returns s's canonical human-readable display string.
	DisplayString(s Symbol) string

	// SymbolKind classifies s (method, property, field, type, ...).
	SymbolKind(s Symbol) SymbolKind

	// SymbolEquals reports whether two symbols denote the same entity.
	// Keyed lookups by symbol must use this, never Go's == on the
	// underlying handle.
	SymbolEquals(a, b Symbol) bool

	// HasSourceLocation reports whether s was declared in source
	// available to this provider (as opposed to an external/metadata
	// assembly reference).
	HasSourceLocation(s Symbol) bool

	// SourceSpanOf returns s's declaration span, if HasSourceLocation.
	SourceSpanOf(s Symbol) (Span, bool)

	// DeclaringNodeOf returns the syntax node that declares s, if
	// HasSourceLocation.
	DeclaringNodeOf(s Symbol) Node

	// ContainingTypeOf returns the type symbol that declares s as a
	// member, or nil for top-level/namespace symbols.
	ContainingTypeOf(s Symbol) Symbol

	// ContainingAssemblyOf returns the short name of the assembly/module
	// s's declaration belongs to.
	ContainingAssemblyOf(s Symbol) string

	// ReturnTypeOf returns a callable symbol's return type, or nil for
	// non-callables.
	ReturnTypeOf(s Symbol) Symbol

	// ValueTypeOf returns a field/property/event/parameter's value type.
	ValueTypeOf(s Symbol) Symbol

	// ParameterTypesOf returns a callable's parameter types in order.
	ParameterTypesOf(s Symbol) []Symbol

	// TypeArgumentsOf returns a constructed generic type's type
	// arguments.
	TypeArgumentsOf(s Symbol) []Symbol

	// ReducedFromOf returns the generic method definition a constructed
	// (instantiated) method symbol was reduced from, or nil.
	ReducedFromOf(s Symbol) Symbol

	// PartialImplementationsOf returns the other partial-declaration
	// parts of a partial method/type symbol.
	PartialImplementationsOf(s Symbol) []Symbol

	// MemberAccess resolves a named member on s by case-insensitive name.
	MemberAccess(s Symbol, name string) (Symbol, bool)

	// InvokeMember reflectively invokes a zero-arg member named name on
	// s, returning its result and whether the member exists and is
	// invocable.
	InvokeMember(s Symbol, name string) (any, bool)
}

// SymbolKind classifies a bound Symbol.
type SymbolKind string

const (
	SymbolKindType      SymbolKind = "type"
	SymbolKindMethod    SymbolKind = "method"
	SymbolKindProperty  SymbolKind = "property"
	SymbolKindField     SymbolKind = "field"
	SymbolKindEvent     SymbolKind = "event"
	SymbolKindParameter SymbolKind = "parameter"
	SymbolKindNamespace SymbolKind = "namespace"
	SymbolKindLocal     SymbolKind = "local"
	SymbolKindUnknown   SymbolKind = "unknown"
)

// Attribute is a single attribute/annotation/decorator application.
type Attribute struct {
	// ClassName is the attribute type's simple name, e.g. "HttpGet" for
	// an attribute written [HttpGet("/x")].
	ClassName string

	// ConstructorArguments are the attribute's positional arguments,
	// normalized to Go values (string, int64, bool, or nil).
	ConstructorArguments []any

	// Symbol is the attribute class's symbol, for further resolution
	// (e.g. ContainingTypeOf on the attribute constructor).
	Symbol Symbol
}
