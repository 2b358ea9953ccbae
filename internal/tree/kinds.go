package tree

// Raw syntax kinds produced by the tree-sitter Go grammar that the rest of
// flowlens matches against. Kept as a closed vocabulary here so selector
// kind literals ("type_declaration", etc.) and pseudo-class aliases have
// one canonical source of truth.
const (
	KindSourceFile      Kind = "source_file"
	KindPackageClause   Kind = "package_clause"
	KindImportSpec      Kind = "import_spec"
	KindTypeDeclaration Kind = "type_declaration"
	KindTypeSpec        Kind = "type_spec"
	KindStructType      Kind = "struct_type"
	KindInterfaceType   Kind = "interface_type"
	KindFieldDeclaration Kind = "field_declaration"
	KindFieldDeclarationList Kind = "field_declaration_list"
	KindFunctionDecl    Kind = "function_declaration"
	KindMethodDecl      Kind = "method_declaration"
	KindFuncLiteral     Kind = "func_literal"
	KindParameterDecl   Kind = "parameter_declaration"
	KindCallExpression  Kind = "call_expression"
	KindArgumentList    Kind = "argument_list"
	KindVarDeclaration  Kind = "var_declaration"
	KindConstDeclaration Kind = "const_declaration"
	KindAssignment      Kind = "assignment_statement"
	KindIfStatement     Kind = "if_statement"
	KindForStatement    Kind = "for_statement"
	KindBlock           Kind = "block"
	KindComment         Kind = "comment"
	KindReturnStatement Kind = "return_statement"
)

// kindAliases maps the shorthand kind-alias pseudo-classes
// (:class, :method, :property, :interface, :struct, :namespace, :lambda)
// onto predicates over the Go grammar's raw kinds. Because Go has no
// class/struct distinction or native property syntax, :class and :struct
// both resolve to a struct-backed type_declaration, and :property
// approximates a C#-style property as a struct field.
type kindAlias struct {
	RawKind      Kind
	RequireUnder Kind // if non-empty, the type_spec's type child must have this kind
}

var KindAliases = map[string]kindAlias{
	"class":     {RawKind: KindTypeDeclaration, RequireUnder: KindStructType},
	"struct":    {RawKind: KindTypeDeclaration, RequireUnder: KindStructType},
	"interface": {RawKind: KindTypeDeclaration, RequireUnder: KindInterfaceType},
	"method":    {RawKind: KindMethodDecl},
	"property":  {RawKind: KindFieldDeclaration},
	"namespace": {RawKind: KindPackageClause},
	"lambda":    {RawKind: KindFuncLiteral},
}
