package selector

import (
	"strconv"
	"strings"
)

// Parse parses selector text into an immutable ComplexSelectorList. It
// fails fast with a *ParseError carrying a 1-based position the caller
// can point a diagnostic at.
func Parse(text string) (*ComplexSelectorList, error) {
	p := &parser{text: text}
	list, err := p.parseList()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, newParseError(p, "unexpected trailing input")
	}
	return list, nil
}

type parser struct {
	text string
	pos  int
}

func (p *parser) eof() bool { return p.pos >= len(p.text) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.text[p.pos]
}

func (p *parser) peekAt(offset int) byte {
	i := p.pos + offset
	if i < 0 || i >= len(p.text) {
		return 0
	}
	return p.text[i]
}

func (p *parser) advance() byte {
	c := p.peek()
	p.pos++
	return c
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.peek()) {
		p.pos++
	}
}

// hadSpace skips whitespace and reports whether any was consumed, used to
// detect the implicit descendant combinator.
func (p *parser) hadSpace() bool {
	start := p.pos
	p.skipSpace()
	return p.pos > start
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '-'
}

func (p *parser) parseIdent() (string, bool) {
	if !isIdentStart(p.peek()) {
		return "", false
	}
	start := p.pos
	for !p.eof() && isIdentPart(p.peek()) {
		p.pos++
	}
	return p.text[start:p.pos], true
}

// parseList parses <complex-selector-list>.
func (p *parser) parseList() (*ComplexSelectorList, error) {
	first, err := p.parseComplexSelector()
	if err != nil {
		return nil, err
	}
	items := []ComplexSelector{*first}
	for {
		p.skipSpace()
		if p.peek() != ',' {
			break
		}
		p.advance()
		p.skipSpace()
		next, err := p.parseComplexSelector()
		if err != nil {
			return nil, err
		}
		items = append(items, *next)
	}
	return &ComplexSelectorList{Items: items}, nil
}

// parseComplexSelector parses <complex-selector>.
func (p *parser) parseComplexSelector() (*ComplexSelector, error) {
	first, err := p.parseCompoundSelector()
	if err != nil {
		return nil, err
	}
	cs := &ComplexSelector{Compounds: []CompoundSelector{*first}}

	for {
		savedPos := p.pos
		hadSpace := p.hadSpace()

		var comb Combinator
		found := false
		switch p.peek() {
		case '>':
			comb, found = Child, true
			p.advance()
			p.skipSpace()
		case '+':
			comb, found = NextSibling, true
			p.advance()
			p.skipSpace()
		case '~':
			comb, found = SubsequentSibling, true
			p.advance()
			p.skipSpace()
		default:
			if hadSpace {
				comb, found = Descendant, true
			}
		}
		if !found {
			p.pos = savedPos
			break
		}

		if p.eof() || p.peek() == ',' {
			p.pos = savedPos
			break
		}

		next, err := p.parseCompoundSelector()
		if err != nil {
			return nil, err
		}
		cs.Compounds = append(cs.Compounds, *next)
		cs.Combinators = append(cs.Combinators, comb)
	}
	return cs, nil
}

// parseCompoundSelector parses <compound-selector>: a non-empty
// conjunction of simple selectors.
func (p *parser) parseCompoundSelector() (*CompoundSelector, error) {
	var simples []SimpleSelector

	if name, universal, ok := p.tryTypeSelector(); ok {
		if universal {
			simples = append(simples, SimpleSelector{Kind: KindUniversalType})
		} else {
			simples = append(simples, SimpleSelector{Kind: KindType, TypeName: name})
		}
	}

	for {
		switch p.peek() {
		case '#':
			p.advance()
			name, ok := p.parseIdent()
			if !ok {
				return nil, newParseError(p, "expected identifier after '#'")
			}
			simples = append(simples, SimpleSelector{Kind: KindId, Name: name})
		case '.':
			p.advance()
			name, ok := p.parseIdent()
			if !ok {
				return nil, newParseError(p, "expected identifier after '.'")
			}
			simples = append(simples, SimpleSelector{Kind: KindClass, Name: name})
		case '[':
			simple, err := p.parseAttribute()
			if err != nil {
				return nil, err
			}
			simples = append(simples, *simple)
		case ':':
			pseudo, err := p.parsePseudoClass()
			if err != nil {
				return nil, err
			}
			simples = append(simples, SimpleSelector{Kind: KindPseudoClass, Pseudo: pseudo})
		default:
			goto done
		}
	}
done:
	if len(simples) == 0 {
		return nil, newParseError(p, "expected a compound selector")
	}
	return &CompoundSelector{Simple: simples}, nil
}

// tryTypeSelector consumes a leading "*" or identifier type selector.
// Kind aliases (":class" etc.) are always pseudo-classes, parsed
// separately by parsePseudoClass.
func (p *parser) tryTypeSelector() (name string, universal bool, ok bool) {
	if p.peek() == '*' {
		p.advance()
		return "", true, true
	}
	if isIdentStart(p.peek()) {
		id, _ := p.parseIdent()
		return id, false, true
	}
	return "", false, false
}

// parseAttribute parses "[path]" or "[path op value modifier?]" or the
// numeric extension "[path op integer]".
func (p *parser) parseAttribute() (*SimpleSelector, error) {
	p.advance() // '['
	p.skipSpace()

	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	p.skipSpace()

	if p.peek() == ']' {
		p.advance()
		return &SimpleSelector{Kind: KindPropertyName, Path: path}, nil
	}

	negate := false
	if p.peek() == '!' {
		negate = true
		p.advance()
	}

	op, numOp, isNumeric := p.parseOperator()
	p.skipSpace()

	if isNumeric {
		start := p.pos
		neg := false
		if p.peek() == '-' {
			neg = true
			p.advance()
		}
		digitsStart := p.pos
		for !p.eof() && p.peek() >= '0' && p.peek() <= '9' {
			p.pos++
		}
		if p.pos == digitsStart {
			p.pos = start
			return nil, newParseError(p, "expected integer literal")
		}
		n, _ := strconv.ParseInt(p.text[digitsStart:p.pos], 10, 64)
		if neg {
			n = -n
		}
		p.skipSpace()
		if p.peek() != ']' {
			return nil, newParseError(p, "expected ']'")
		}
		p.advance()
		return &SimpleSelector{Kind: KindPropertyNumericMatch, Path: path, NumericOp: numOp, Integer: n}, nil
	}

	lit, err := p.parseAttrValue()
	if err != nil {
		return nil, err
	}
	p.skipSpace()

	caseInsensitive := false
	if p.peek() == 'i' && (p.peekAt(1) == ']' || isSpace(p.peekAt(1))) {
		caseInsensitive = true
		p.advance()
		p.skipSpace()
	}

	if p.peek() != ']' {
		return nil, newParseError(p, "expected ']'")
	}
	p.advance()

	return &SimpleSelector{
		Kind:            KindPropertyStringMatch,
		Path:            path,
		StringOp:        op,
		Literal:         lit,
		CaseInsensitive: caseInsensitive,
		Negate:          negate,
	}, nil
}

// parseOperator implements the tie-break rules: longer alternatives
// before shorter ("<=" before "<", ">=" before ">").
func (p *parser) parseOperator() (StringOperator, NumericOperator, bool) {
	switch {
	case p.peek() == '*' && p.peekAt(1) == '=':
		p.pos += 2
		return OpSubstring, "", false
	case p.peek() == '^' && p.peekAt(1) == '=':
		p.pos += 2
		return OpPrefix, "", false
	case p.peek() == '$' && p.peekAt(1) == '=':
		p.pos += 2
		return OpSuffix, "", false
	case p.peek() == '~' && p.peekAt(1) == '=':
		p.pos += 2
		return OpWhitespace, "", false
	case p.peek() == '|' && p.peekAt(1) == '=':
		p.pos += 2
		return OpDashMatch, "", false
	case p.peek() == '<' && p.peekAt(1) == '=':
		p.pos += 2
		return "", NumLessEq, true
	case p.peek() == '<':
		p.pos++
		return "", NumLess, true
	case p.peek() == '>' && p.peekAt(1) == '=':
		p.pos += 2
		return "", NumGtEq, true
	case p.peek() == '>':
		p.pos++
		return "", NumGt, true
	case p.peek() == '=':
		p.pos++
		return OpEquals, "", false
	default:
		return OpEquals, "", false
	}
}

func (p *parser) parseAttrValue() (string, error) {
	if p.peek() == '"' || p.peek() == '\'' {
		quote := p.advance()
		start := p.pos
		for !p.eof() && p.peek() != quote {
			p.pos++
		}
		if p.eof() {
			return "", newParseError(p, "unterminated string literal")
		}
		lit := p.text[start:p.pos]
		p.advance()
		return lit, nil
	}
	start := p.pos
	for !p.eof() && p.peek() != ']' && !isSpace(p.peek()) {
		p.pos++
	}
	if p.pos == start {
		return "", newParseError(p, "expected attribute value")
	}
	return p.text[start:p.pos], nil
}

// parsePath parses the dotted property-name chain, honoring the optional
// leading "@" metadata/capture prefix and "()" method-invocation suffixes
// on each segment.
func (p *parser) parsePath() (string, error) {
	start := p.pos
	if p.peek() == '"' || p.peek() == '\'' {
		return p.parseAttrValue()
	}
	if p.peek() == '@' {
		p.advance()
	}
	if p.eof() || (!isIdentStart(p.peek()) && p.peek() != '@') {
		if p.text[start:p.pos] == "@" {
			return "@", nil // bare "@" root
		}
		return "", newParseError(p, "expected property path")
	}
	for {
		if _, ok := p.parseIdent(); !ok {
			return "", newParseError(p, "expected identifier in property path")
		}
		if p.peek() == '(' && p.peekAt(1) == ')' {
			p.pos += 2
		}
		if p.peek() == '.' {
			p.advance()
			continue
		}
		break
	}
	return p.text[start:p.pos], nil
}

// parsePseudoClass parses everything introduced by ':'.
func (p *parser) parsePseudoClass() (*PseudoClass, error) {
	p.advance() // ':'
	name, ok := p.parseIdent()
	if !ok {
		return nil, newParseError(p, "expected pseudo-class name")
	}
	name = strings.ToLower(name)

	hasArgs := p.peek() == '('
	switch name {
	case "not":
		return p.parseFunctional(hasArgs, name, pseudoCompound(PseudoNot))
	case "is":
		return p.parseFunctional(hasArgs, name, pseudoList(PseudoIs))
	case "where":
		return p.parseFunctional(hasArgs, name, pseudoList(PseudoWhere))
	case "has":
		return p.parseFunctional(hasArgs, name, pseudoList(PseudoHas))
	case "implements":
		return p.parseFunctional(hasArgs, name, pseudoList(PseudoImplements))
	case "nth-child":
		return p.parseNthFunc(hasArgs, name, PseudoNthChild)
	case "nth-last-child":
		return p.parseNthFunc(hasArgs, name, PseudoNthLastChild)
	case "nth-of-type":
		return p.parseNthFunc(hasArgs, name, PseudoNthOfType)
	case "nth-last-of-type":
		return p.parseNthFunc(hasArgs, name, PseudoNthLastOfType)
	case "first-child":
		return &PseudoClass{Kind: PseudoFirstChild}, nil
	case "last-child":
		return &PseudoClass{Kind: PseudoLastChild}, nil
	case "only-child":
		return &PseudoClass{Kind: PseudoOnlyChild}, nil
	case "only-of-type":
		return &PseudoClass{Kind: PseudoOnlyOfType}, nil
	case "empty":
		return &PseudoClass{Kind: PseudoEmpty}, nil
	case "scope":
		return &PseudoClass{Kind: PseudoScope}, nil
	case "root":
		return &PseudoClass{Kind: PseudoRoot}, nil
	case "capture":
		return p.parseCapture()
	case "class", "method", "property", "interface", "struct", "namespace", "lambda":
		return &PseudoClass{Kind: PseudoKindAlias, AliasName: name}, nil
	default:
		return nil, newParseError(p, "unknown pseudo-class '"+name+"'")
	}
}

type pseudoParser func(p *parser) (*PseudoClass, error)

func pseudoCompound(kind PseudoKind) pseudoParser {
	return func(p *parser) (*PseudoClass, error) {
		p.skipSpace()
		compound, err := p.parseCompoundSelector()
		if err != nil {
			return nil, err
		}
		return &PseudoClass{Kind: kind, Compound: compound}, nil
	}
}

func pseudoList(kind PseudoKind) pseudoParser {
	return func(p *parser) (*PseudoClass, error) {
		p.skipSpace()
		list, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return &PseudoClass{Kind: kind, List: list}, nil
	}
}

func (p *parser) parseFunctional(hasArgs bool, name string, inner pseudoParser) (*PseudoClass, error) {
	if !hasArgs {
		return nil, newParseError(p, "pseudo-class '"+name+"' requires arguments")
	}
	p.advance() // '('
	p.skipSpace()
	pc, err := inner(p)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() != ')' {
		return nil, newParseError(p, "expected ')'")
	}
	p.advance()
	return pc, nil
}

func (p *parser) parseNthFunc(hasArgs bool, name string, kind PseudoKind) (*PseudoClass, error) {
	if !hasArgs {
		return nil, newParseError(p, "pseudo-class '"+name+"' requires arguments")
	}
	p.advance()
	p.skipSpace()
	nth, err := p.parseNth()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() != ')' {
		return nil, newParseError(p, "expected ')'")
	}
	p.advance()
	return &PseudoClass{Kind: kind, Nth: nth}, nil
}

// parseNth parses <nth>: "even", "odd", an integer, or "An+B" with
// whitespace tolerance around the sign.
func (p *parser) parseNth() (NthExpr, error) {
	if id, ok := p.tryKeyword("even"); ok {
		_ = id
		return NthExpr{A: 2, B: 0}, nil
	}
	if id, ok := p.tryKeyword("odd"); ok {
		_ = id
		return NthExpr{A: 2, B: 1}, nil
	}

	sign := 1
	if p.peek() == '-' {
		sign = -1
		p.advance()
	} else if p.peek() == '+' {
		p.advance()
	}

	if p.peek() == 'n' || p.peek() == 'N' {
		p.advance()
		a := sign
		return p.parseNthTail(a)
	}

	digitsStart := p.pos
	for !p.eof() && p.peek() >= '0' && p.peek() <= '9' {
		p.pos++
	}
	if p.pos == digitsStart {
		return NthExpr{}, newParseError(p, "expected nth expression")
	}
	num, _ := strconv.Atoi(p.text[digitsStart:p.pos])
	num *= sign

	if p.peek() == 'n' || p.peek() == 'N' {
		p.advance()
		return p.parseNthTail(num)
	}
	return NthExpr{A: 0, B: num}, nil
}

func (p *parser) parseNthTail(a int) (NthExpr, error) {
	p.skipSpace()
	if p.peek() != '+' && p.peek() != '-' {
		return NthExpr{A: a, B: 0}, nil
	}
	sign := 1
	if p.peek() == '-' {
		sign = -1
	}
	p.advance()
	p.skipSpace()
	digitsStart := p.pos
	for !p.eof() && p.peek() >= '0' && p.peek() <= '9' {
		p.pos++
	}
	if p.pos == digitsStart {
		return NthExpr{}, newParseError(p, "expected integer after sign in nth expression")
	}
	b, _ := strconv.Atoi(p.text[digitsStart:p.pos])
	return NthExpr{A: a, B: sign * b}, nil
}

func (p *parser) tryKeyword(kw string) (string, bool) {
	if len(p.text)-p.pos < len(kw) {
		return "", false
	}
	if !strings.EqualFold(p.text[p.pos:p.pos+len(kw)], kw) {
		return "", false
	}
	after := p.peekAt(len(kw))
	if isIdentPart(after) {
		return "", false
	}
	p.pos += len(kw)
	return kw, true
}

// parseCapture parses "capture(identifier [, property-path])".
func (p *parser) parseCapture() (*PseudoClass, error) {
	if p.peek() != '(' {
		return nil, newParseError(p, "pseudo-class 'capture' requires arguments")
	}
	p.advance()
	p.skipSpace()
	alias, ok := p.parseIdent()
	if !ok {
		return nil, newParseError(p, "expected capture alias")
	}
	p.skipSpace()

	pc := &PseudoClass{Kind: PseudoCapture, CaptureAlias: alias}
	if p.peek() == ',' {
		p.advance()
		p.skipSpace()
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		pc.CapturePath = path
		pc.HasPath = true
		p.skipSpace()
	}
	if p.peek() != ')' {
		return nil, newParseError(p, "expected ')'")
	}
	p.advance()
	return pc, nil
}
