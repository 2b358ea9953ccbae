package resolve

import "strings"

// MatchString implements the CSS string-matcher semantics: with the "i"
// modifier both value and literal are lowercased before op is applied,
// and "!" negation then inverts the result.
func MatchString(op string, value, literal string, caseInsensitive, negate bool) bool {
	v, l := value, literal
	if caseInsensitive {
		v = strings.ToLower(v)
		l = strings.ToLower(l)
	}

	var result bool
	switch op {
	case "=":
		result = v == l
	case "*=":
		result = l != "" && strings.Contains(v, l)
	case "^=":
		result = l != "" && strings.HasPrefix(v, l)
	case "$=":
		result = l != "" && strings.HasSuffix(v, l)
	case "~=":
		result = containsWhitespaceToken(v, l)
	case "|=":
		result = v == l || strings.HasPrefix(v, l+"-")
	default:
		result = false
	}

	if negate {
		return !result
	}
	return result
}

func containsWhitespaceToken(v, token string) bool {
	if token == "" {
		return false
	}
	for _, f := range strings.Fields(v) {
		if f == token {
			return true
		}
	}
	return false
}

// MatchNumeric implements the numeric comparison operators.
func MatchNumeric(op string, value, literal int64) bool {
	switch op {
	case "=":
		return value == literal
	case "<":
		return value < literal
	case "<=":
		return value <= literal
	case ">":
		return value > literal
	case ">=":
		return value >= literal
	default:
		return false
	}
}
