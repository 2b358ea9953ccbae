package tree

import (
	"strconv"
	"strings"
)

// parseAnnotations reads the leading comment block immediately above a
// declaration and extracts "@Name" / "@Name(args)" lines as Attributes.
// Go has no attribute/decorator syntax, so flowlens borrows the
// doc-comment annotation convention used by tools like swaggo (// @Summary
// ...) to stand in for C#-style attributes ([Route], [HttpGet("/x")], ...)
// that the rule catalog keys on.
//
// Example:
//
//	// @Route("/reports")
//	// @Authorize
//	type ReportsController struct{}
func parseAnnotations(commentLines []string) []Attribute {
	var attrs []Attribute
	for _, line := range commentLines {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "//"))
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "@") {
			continue
		}
		line = line[1:]

		name := line
		argsText := ""
		if idx := strings.IndexByte(line, '('); idx >= 0 && strings.HasSuffix(line, ")") {
			name = strings.TrimSpace(line[:idx])
			argsText = line[idx+1 : len(line)-1]
		} else if idx := strings.IndexAny(line, " ("); idx >= 0 {
			name = strings.TrimSpace(line[:idx])
			argsText = strings.TrimSpace(line[idx:])
		}
		if name == "" {
			continue
		}

		attrs = append(attrs, Attribute{
			ClassName:            name,
			ConstructorArguments: parseArgs(argsText),
		})
	}
	return attrs
}

// parseArgs splits a comma-separated argument list into normalized Go
// values: quoted strings become string, bare integers become int64, "true"
// / "false" become bool, everything else passes through as a trimmed
// string (covers enum-like literals such as HttpGet's implicit verb).
func parseArgs(s string) []any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := splitArgs(s)
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		switch {
		case len(p) >= 2 && (p[0] == '"' || p[0] == '\'') && p[len(p)-1] == p[0]:
			if unq, err := strconv.Unquote(`"` + p[1:len(p)-1] + `"`); err == nil {
				out = append(out, unq)
				continue
			}
			out = append(out, p[1:len(p)-1])
		case p == "true":
			out = append(out, true)
		case p == "false":
			out = append(out, false)
		default:
			if n, err := strconv.ParseInt(p, 10, 64); err == nil {
				out = append(out, n)
				continue
			}
			out = append(out, p)
		}
	}
	return out
}

// splitArgs splits on top-level commas, respecting quotes.
func splitArgs(s string) []string {
	var parts []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			cur.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
			cur.WriteByte(c)
		case c == ',':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}
