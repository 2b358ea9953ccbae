// Package selector implements the CSS4-inspired selector language: a
// hand-written recursive-descent parser producing an
// immutable selector AST, plus canonical stringification.
package selector

import (
	"fmt"
	"strings"
)

// Combinator joins two compound selectors within a ComplexSelector.
type Combinator int

const (
	// Descendant is the implicit whitespace combinator: some transitive
	// ancestor of the current node matches the left compound.
	Descendant Combinator = iota
	// Child is ">": the immediate parent matches the left compound.
	Child
	// NextSibling is "+": the immediately preceding sibling matches.
	NextSibling
	// SubsequentSibling is "~": some preceding sibling matches.
	SubsequentSibling
)

func (c Combinator) String() string {
	switch c {
	case Child:
		return ">"
	case NextSibling:
		return "+"
	case SubsequentSibling:
		return "~"
	default:
		return " "
	}
}

// StringOperator is the comparison operator for PropertyStringMatch.
type StringOperator string

const (
	OpEquals     StringOperator = "="
	OpSubstring  StringOperator = "*="
	OpPrefix     StringOperator = "^="
	OpSuffix     StringOperator = "$="
	OpWhitespace StringOperator = "~="
	OpDashMatch  StringOperator = "|="
)

// NumericOperator is the comparison operator for PropertyNumericMatch.
type NumericOperator string

const (
	NumEquals NumericOperator = "="
	NumLess   NumericOperator = "<"
	NumLessEq NumericOperator = "<="
	NumGt     NumericOperator = ">"
	NumGtEq   NumericOperator = ">="
)

// ComplexSelectorList is the top-level disjunction: the parse result of
// any selector text.
type ComplexSelectorList struct {
	Items []ComplexSelector
}

// ComplexSelector is a left-to-right chain of compound selectors joined by
// combinators, with an implicit terminal compound (the one anchored on the
// current node during matching).
type ComplexSelector struct {
	// Compounds holds every compound in source order; len(Compounds) ==
	// len(Combinators)+1.
	Compounds []CompoundSelector
	// Combinators[i] joins Compounds[i] to Compounds[i+1].
	Combinators []Combinator
}

// CompoundSelector is a conjunction of simple selectors matched against a
// single node.
type CompoundSelector struct {
	Simple []SimpleSelector
}

// SimpleSelector is the sum type of every atomic selector term. Exactly
// one of the fields is populated; Kind discriminates which.
type SimpleSelector struct {
	Kind SimpleKind

	// Type / UniversalType
	TypeName string

	// Id / Class
	Name string

	// PropertyName
	Path string

	// PropertyStringMatch
	StringOp        StringOperator
	Literal         string
	CaseInsensitive bool
	Negate          bool

	// PropertyNumericMatch
	NumericOp NumericOperator
	Integer   int64

	// PseudoClass
	Pseudo *PseudoClass
}

// SimpleKind discriminates a SimpleSelector's populated variant.
type SimpleKind int

const (
	KindType SimpleKind = iota
	KindUniversalType
	KindId
	KindClass
	KindPropertyName
	KindPropertyStringMatch
	KindPropertyNumericMatch
	KindPseudoClass
)

// PseudoKind discriminates a PseudoClass's variant.
type PseudoKind int

const (
	PseudoNot PseudoKind = iota
	PseudoIs
	PseudoWhere
	PseudoHas
	PseudoImplements
	PseudoNthChild
	PseudoNthLastChild
	PseudoNthOfType
	PseudoNthLastOfType
	PseudoFirstChild
	PseudoLastChild
	PseudoOnlyChild
	PseudoOnlyOfType
	PseudoEmpty
	PseudoScope
	PseudoRoot
	PseudoCapture
	PseudoKindAlias // :class, :method, :property, :interface, :struct, :namespace, :lambda
)

// NthExpr is a parsed "An+B" expression.
type NthExpr struct {
	A, B int
}

// PseudoClass is the payload for SimpleKind == KindPseudoClass.
type PseudoClass struct {
	Kind PseudoKind

	// Not
	Compound *CompoundSelector

	// Is / Where / Has / Implements
	List *ComplexSelectorList

	// NthChild / NthLastChild / NthOfType / NthLastOfType
	Nth NthExpr

	// Capture
	CaptureAlias string
	CapturePath  string // "" if no property path was given
	HasPath      bool

	// PseudoKindAlias
	AliasName string // "class", "method", "property", "interface", "struct", "namespace", "lambda"
}

// ToSelectorString renders the canonical textual form of list. Parsing
// this output always reproduces an AST whose own ToSelectorString is
// identical (idempotent canonical form).
func (l ComplexSelectorList) ToSelectorString() string {
	s := ""
	for i, cs := range l.Items {
		if i > 0 {
			s += ", "
		}
		s += cs.ToSelectorString()
	}
	return s
}

func (cs ComplexSelector) ToSelectorString() string {
	s := ""
	for i, compound := range cs.Compounds {
		if i > 0 {
			comb := cs.Combinators[i-1]
			if comb == Descendant {
				s += " "
			} else {
				s += " " + comb.String() + " "
			}
		}
		s += compound.ToSelectorString()
	}
	return s
}

func (c CompoundSelector) ToSelectorString() string {
	s := ""
	for _, simple := range c.Simple {
		s += simple.ToSelectorString()
	}
	return s
}

func (s SimpleSelector) ToSelectorString() string {
	switch s.Kind {
	case KindType:
		return s.TypeName
	case KindUniversalType:
		return "*"
	case KindId:
		return "#" + s.Name
	case KindClass:
		return "." + s.Name
	case KindPropertyName:
		return "[" + s.Path + "]"
	case KindPropertyStringMatch:
		neg := ""
		if s.Negate {
			neg = "!"
		}
		ci := ""
		if s.CaseInsensitive {
			ci = " i"
		}
		// The parser has no escape sequences, so the literal is written
		// verbatim inside whichever quote it does not contain.
		quoted := `"` + s.Literal + `"`
		if strings.Contains(s.Literal, `"`) {
			quoted = "'" + s.Literal + "'"
		}
		return fmt.Sprintf("[%s%s%s%s%s]", s.Path, neg, s.StringOp, quoted, ci)
	case KindPropertyNumericMatch:
		return fmt.Sprintf("[%s %s %d]", s.Path, s.NumericOp, s.Integer)
	case KindPseudoClass:
		return s.Pseudo.ToSelectorString()
	default:
		return ""
	}
}

func (p *PseudoClass) ToSelectorString() string {
	switch p.Kind {
	case PseudoNot:
		return ":not(" + p.Compound.ToSelectorString() + ")"
	case PseudoIs:
		return ":is(" + p.List.ToSelectorString() + ")"
	case PseudoWhere:
		return ":where(" + p.List.ToSelectorString() + ")"
	case PseudoHas:
		return ":has(" + p.List.ToSelectorString() + ")"
	case PseudoImplements:
		return ":implements(" + p.List.ToSelectorString() + ")"
	case PseudoNthChild:
		return ":nth-child(" + p.Nth.String() + ")"
	case PseudoNthLastChild:
		return ":nth-last-child(" + p.Nth.String() + ")"
	case PseudoNthOfType:
		return ":nth-of-type(" + p.Nth.String() + ")"
	case PseudoNthLastOfType:
		return ":nth-last-of-type(" + p.Nth.String() + ")"
	case PseudoFirstChild:
		return ":first-child"
	case PseudoLastChild:
		return ":last-child"
	case PseudoOnlyChild:
		return ":only-child"
	case PseudoOnlyOfType:
		return ":only-of-type"
	case PseudoEmpty:
		return ":empty"
	case PseudoScope:
		return ":scope"
	case PseudoRoot:
		return ":root"
	case PseudoCapture:
		if p.HasPath {
			return fmt.Sprintf(":capture(%s, %s)", p.CaptureAlias, p.CapturePath)
		}
		return fmt.Sprintf(":capture(%s)", p.CaptureAlias)
	case PseudoKindAlias:
		return ":" + p.AliasName
	default:
		return ""
	}
}

func (n NthExpr) String() string {
	if n.A == 0 {
		return fmt.Sprintf("%d", n.B)
	}
	switch {
	case n.B > 0:
		return fmt.Sprintf("%dn+%d", n.A, n.B)
	case n.B < 0:
		return fmt.Sprintf("%dn%d", n.A, n.B)
	default:
		return fmt.Sprintf("%dn", n.A)
	}
}
