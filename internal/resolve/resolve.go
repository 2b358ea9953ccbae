package resolve

import (
	"strconv"
	"strings"

	"github.com/r-dutton/flowlens/internal/tree"
)

// An unresolvable property path never surfaces as an error: Resolve
// reports failure via its bool return instead, and matcher predicates
// treat a failed resolution as a false match.

// Resolve evaluates a dotted property path against ctx, returning the
// normalized value form (symbols collapse to their
// display string, enumerables to a space-joined string, ...).
func Resolve(path string, ctx *Context) (any, bool) {
	raw, ok := resolveRaw(path, ctx)
	if !ok {
		return nil, false
	}
	return normalize(raw, ctx), true
}

// ResolveString is Resolve with the result coerced to a string; used by
// the string matchers (=, *=, ^=, $=, ~=, |=).
func ResolveString(path string, ctx *Context) (string, bool) {
	v, ok := Resolve(path, ctx)
	if !ok {
		return "", false
	}
	return stringForm(v), true
}

// ResolveInt is Resolve with numeric coercion applied: an enumerable's Count (here, its length) if the raw value is a
// slice, otherwise a best-effort integer parse.
func ResolveInt(path string, ctx *Context) (int64, bool) {
	raw, ok := resolveRaw(path, ctx)
	if !ok {
		return 0, false
	}
	if items, isSlice := raw.([]any); isSlice {
		return int64(len(items)), true
	}
	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	normalized := normalize(raw, ctx)
	s, ok := normalized.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

// resolveRaw walks the dotted path, root segment first, applying the
// segment-resolution rules. The returned value is
// un-normalized: it may be a tree.Symbol, tree.Node, map[string]any,
// []any, or a primitive.
func resolveRaw(path string, ctx *Context) (any, bool) {
	if path == "" {
		return nil, false
	}
	segs := splitPath(path)
	head := segs[0]
	rest := segs[1:]

	current, ok := resolveRoot(head, ctx)
	if !ok {
		return nil, false
	}

	for _, seg := range rest {
		current, ok = resolveSegment(current, seg, ctx)
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func resolveRoot(head string, ctx *Context) (any, bool) {
	invoke := strings.HasSuffix(head, "()")
	name := strings.TrimSuffix(head, "()")

	switch name {
	case "Symbol":
		sym := ctx.Symbol()
		if sym == nil {
			return nil, false
		}
		return sym, true
	case "Type":
		if ctx.Provider == nil {
			return nil, false
		}
		if t := ctx.Provider.TypeInfoOf(ctx.Node); t != nil {
			return t, true
		}
		if t := ctx.Provider.ConvertedTypeOf(ctx.Node); t != nil {
			return t, true
		}
		sym := ctx.Symbol()
		if sym == nil {
			return nil, false
		}
		switch ctx.Provider.SymbolKind(sym) {
		case tree.SymbolKindMethod:
			if rt := ctx.Provider.ReturnTypeOf(sym); rt != nil {
				return rt, true
			}
		case tree.SymbolKindProperty, tree.SymbolKindField, tree.SymbolKindEvent, tree.SymbolKindParameter:
			if vt := ctx.Provider.ValueTypeOf(sym); vt != nil {
				return vt, true
			}
		}
		return nil, false
	case "ConvertedType":
		if ctx.Provider == nil {
			return nil, false
		}
		if t := ctx.Provider.ConvertedTypeOf(ctx.Node); t != nil {
			return t, true
		}
		return nil, false
	case "DeclaredSymbol":
		if ctx.Provider == nil {
			return nil, false
		}
		if s := ctx.Provider.DeclaredSymbol(ctx.Node); s != nil {
			return s, true
		}
		return nil, false
	case "ConstantValue":
		if ctx.Provider == nil {
			return nil, false
		}
		v, ok := ctx.Provider.ConstantValueOf(ctx.Node)
		return v, ok
	case "SemanticModel":
		if ctx.Provider == nil {
			return nil, false
		}
		return ctx.Provider, true
	case "Compilation":
		if ctx.Compilation == nil {
			return nil, false
		}
		return ctx.Compilation, true
	case "Context":
		if ctx.Metadata == nil {
			return map[string]any{}, true
		}
		return ctx.Metadata.entries, true
	case "Scope":
		if ctx.Scope == nil {
			return nil, false
		}
		return ctx.Scope, true
	case "Root":
		if ctx.Root == nil {
			return nil, false
		}
		return ctx.Root, true
	case "Node":
		if ctx.Node == nil {
			return nil, false
		}
		return ctx.Node, true
	case "@":
		return mergedCaptureView(ctx), true
	default:
		if strings.HasPrefix(head, "@") {
			capName := strings.TrimPrefix(name, "@")
			if ctx.State != nil {
				if v, ok := ctx.State.Get(capName); ok {
					return v, true
				}
			}
			if v, ok := ctx.Metadata.Get(capName); ok {
				return v, true
			}
			return nil, false
		}
		// Otherwise: head is a member on the current node, i.e. its
		// bound symbol.
		sym := ctx.Symbol()
		if sym == nil || ctx.Provider == nil {
			return nil, false
		}
		return memberOnSymbol(ctx.Provider, sym, name, invoke)
	}
}

func mergedCaptureView(ctx *Context) map[string]any {
	out := map[string]any{}
	if ctx.Metadata != nil {
		for k, v := range ctx.Metadata.entries {
			out[ctx.Metadata.display[k]] = v
		}
	}
	if ctx.State != nil {
		for k, v := range ctx.State.All() {
			out[k] = v
		}
	}
	return out
}

// resolveSegment applies one further path segment to current, per the
// "Segment resolution (after root)" rules.
func resolveSegment(current any, seg string, ctx *Context) (any, bool) {
	invoke := strings.HasSuffix(seg, "()")
	name := strings.TrimSuffix(seg, "()")

	if items, ok := current.([]any); ok {
		out := make([]any, 0, len(items))
		for _, item := range items {
			v, ok := resolveSegment(item, seg, ctx)
			if ok {
				out = append(out, v)
			}
		}
		return out, true
	}

	switch v := current.(type) {
	case map[string]any:
		for k, val := range v {
			if strings.EqualFold(k, name) {
				return val, true
			}
		}
		return nil, false
	case tree.Symbol:
		if ctx.Provider == nil {
			return nil, false
		}
		if strings.EqualFold(name, "DisplayString") {
			return ctx.Provider.DisplayString(v), true
		}
		return memberOnSymbol(ctx.Provider, v, name, invoke)
	case tree.Node:
		if ctx.Provider == nil {
			return nil, false
		}
		return memberOnNode(ctx.Provider, v, name)
	default:
		return nil, false
	}
}

// memberOnSymbol resolves a named member on a bound symbol: invoked
// reflectively if trailing "()" was present, else via member lookup.
func memberOnSymbol(p tree.Provider, s tree.Symbol, name string, invoke bool) (any, bool) {
	switch {
	case strings.EqualFold(name, "DisplayString"):
		return p.DisplayString(s), true
	case strings.EqualFold(name, "ContainingType"):
		if t := p.ContainingTypeOf(s); t != nil {
			return t, true
		}
		return nil, false
	case strings.EqualFold(name, "ContainingAssembly"):
		return p.ContainingAssemblyOf(s), true
	case strings.EqualFold(name, "ReturnType"):
		if t := p.ReturnTypeOf(s); t != nil {
			return t, true
		}
		return nil, false
	case strings.EqualFold(name, "ValueType"):
		if t := p.ValueTypeOf(s); t != nil {
			return t, true
		}
		return nil, false
	case strings.EqualFold(name, "Kind"):
		return string(p.SymbolKind(s)), true
	case strings.EqualFold(name, "Modifiers"):
		return nil, false
	}
	if invoke {
		return p.InvokeMember(s, name)
	}
	if strings.EqualFold(name, "Name") {
		if v, ok := p.InvokeMember(s, "name"); ok {
			return v, true
		}
	}
	if m, ok := p.MemberAccess(s, name); ok {
		return m, true
	}
	if v, ok := p.InvokeMember(s, name); ok {
		return v, true
	}
	return nil, false
}

func memberOnNode(p tree.Provider, n tree.Node, name string) (any, bool) {
	switch strings.ToLower(name) {
	case "kind":
		return string(p.KindOf(n)), true
	case "name":
		if txt := p.IdentifierTextOf(n); txt != "" {
			return txt, true
		}
		return nil, false
	case "filepath":
		return p.FilePathOf(n), true
	}
	return nil, false
}

// normalize applies the result-normalization rules: symbols
// collapse to their display string, non-string/non-tree enumerables
// collapse to a space-joined list of element forms.
func normalize(v any, ctx *Context) any {
	switch val := v.(type) {
	case tree.Symbol:
		if ctx.Provider != nil {
			return ctx.Provider.DisplayString(val)
		}
		return val
	case []any:
		seen := map[string]bool{}
		var parts []string
		for _, item := range val {
			s := stringForm(normalize(item, ctx))
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			parts = append(parts, s)
		}
		return strings.Join(parts, " ")
	default:
		return v
	}
}

func stringForm(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	default:
		return ""
	}
}
