package rules

import (
	"strconv"
	"strings"

	"github.com/r-dutton/flowlens/internal/match"
	"github.com/r-dutton/flowlens/internal/tree"
)

var httpVerbAttrs = map[string]string{
	"httpget":    "GET",
	"httppost":   "POST",
	"httpput":    "PUT",
	"httpdelete": "DELETE",
	"httppatch":  "PATCH",
	"httphead":   "HEAD",
}

// CanonicalizeRoute normalizes a route:
// strip leading whitespace, substitute "[controller]"/"{controller}"
// with the class name minus a trailing "Controller", prepend "/" if
// missing, collapse "//" to "/".
func CanonicalizeRoute(route, controllerName string) string {
	route = strings.TrimLeft(route, " \t")
	base := strings.TrimSuffix(controllerName, "Controller")
	route = strings.ReplaceAll(route, "[controller]", base)
	route = strings.ReplaceAll(route, "{controller}", base)
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	for strings.Contains(route, "//") {
		route = strings.ReplaceAll(route, "//", "/")
	}
	return route
}

func routeAttribute(attrs []tree.Attribute) (string, bool) {
	for _, a := range attrs {
		if strings.Contains(a.ClassName, "Route") || strings.HasPrefix(a.ClassName, "Http") {
			if len(a.ConstructorArguments) > 0 {
				if s, ok := a.ConstructorArguments[0].(string); ok {
					return s, true
				}
			}
		}
	}
	return "", false
}

func authPolicy(attrs []tree.Attribute) (string, bool) {
	for _, a := range attrs {
		if strings.Contains(a.ClassName, "Authorize") {
			if len(a.ConstructorArguments) > 0 {
				if s, ok := a.ConstructorArguments[0].(string); ok {
					return s, true
				}
			}
			return "", true
		}
	}
	return "", false
}

// extractController derives controller_name/controller_id/controller_type
// plus the class-level route and authorization policy.
func extractController(prov tree.Provider, m match.Match) map[string]any {
	sym := prov.DeclaredSymbol(m.Node)
	if sym == nil {
		sym = prov.BoundSymbol(m.Node)
	}
	if sym == nil {
		return nil
	}
	out := map[string]any{
		"controller_name": prov.DisplayString(sym),
		"controller_id":   prov.DocumentationID(sym),
		"controller_type": prov.DisplayString(sym),
	}
	attrs := prov.AttributesOf(sym)
	if route, ok := routeAttribute(attrs); ok {
		out["route"] = CanonicalizeRoute(route, prov.DisplayString(sym))
	}
	if policy, ok := authPolicy(attrs); ok {
		out["authorization_policy"] = policy
	}
	return out
}

// extractControllerAction derives http_method/route/full_route/status_code
// and inherits the enclosing controller's identity.
func extractControllerAction(prov tree.Provider, m match.Match) map[string]any {
	sym := prov.DeclaredSymbol(m.Node)
	if sym == nil {
		return nil
	}
	owner := prov.ContainingTypeOf(sym)
	out := map[string]any{}

	var controllerName, controllerRoute string
	if owner != nil {
		controllerName = prov.DisplayString(owner)
		out["controller_name"] = controllerName
		out["controller_id"] = prov.DocumentationID(owner)
		if route, ok := routeAttribute(prov.AttributesOf(owner)); ok {
			controllerRoute = CanonicalizeRoute(route, controllerName)
		}
	}

	attrs := prov.AttributesOf(sym)
	verb, methodRoute := verbAndRouteFromAttributes(attrs)
	if verb == "" {
		verb = verbFromName(prov.DisplayString(sym))
	}
	if verb != "" {
		out["http_method"] = verb
	}
	if methodRoute != "" {
		out["route"] = methodRoute
	}

	full := methodRoute
	if !strings.HasPrefix(methodRoute, "/") {
		full = strings.TrimRight(controllerRoute, "/") + "/" + strings.TrimLeft(methodRoute, "/")
	}
	if full != "" {
		out["full_route"] = CanonicalizeRoute(full, controllerName)
	} else if controllerRoute != "" {
		out["full_route"] = controllerRoute
	}

	for _, a := range attrs {
		if strings.Contains(a.ClassName, "ProducesResponseType") && len(a.ConstructorArguments) > 0 {
			if n, ok := a.ConstructorArguments[0].(int64); ok {
				out["status_code"] = strconv.FormatInt(n, 10)
			}
		}
	}
	if policy, ok := authPolicy(attrs); ok {
		out["authorization_policy"] = policy
	}
	return out
}

func verbAndRouteFromAttributes(attrs []tree.Attribute) (verb, route string) {
	for _, a := range attrs {
		lower := strings.ToLower(a.ClassName)
		if v, ok := httpVerbAttrs[lower]; ok {
			verb = v
			if len(a.ConstructorArguments) > 0 {
				if s, ok := a.ConstructorArguments[0].(string); ok {
					route = s
				}
			}
			return verb, route
		}
		if strings.EqualFold(a.ClassName, "AcceptVerbs") && len(a.ConstructorArguments) > 0 {
			if s, ok := a.ConstructorArguments[0].(string); ok {
				verb = strings.ToUpper(s)
			}
			return verb, route
		}
	}
	return "", ""
}

func verbFromName(name string) string {
	prefixes := []struct {
		prefix, verb string
	}{
		{"Get", "GET"}, {"Post", "POST"}, {"Put", "PUT"},
		{"Delete", "DELETE"}, {"Patch", "PATCH"}, {"Send", ""},
	}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p.prefix) {
			return p.verb
		}
	}
	return ""
}

// extractHTTPCall derives verb/route/base_url/client_type/caller_id for
// an HTTP call site detected via a receiver type name matching
// "*HttpClient*". The verb comes from the called method's name prefix
// (Get* is GET, and so on), or for Send* from the call's first
// string-constant argument; route and base URL come from the call's
// string arguments.
func extractHTTPCall(prov tree.Provider, m match.Match) map[string]any {
	sym := prov.BoundSymbol(m.Node)
	out := map[string]any{}
	args := stringArguments(prov, m.Node)

	if sym != nil {
		callName := bareSymbolName(prov, sym)
		verb := verbFromCallName(callName)
		if verb == "" && strings.HasPrefix(callName, "Send") && len(args) > 0 {
			verb = strings.ToUpper(args[0])
			args = args[1:]
		}
		if verb != "" {
			out["verb"] = verb
		}
		if owner := prov.ContainingTypeOf(sym); owner != nil {
			out["client_type"] = prov.DisplayString(owner)
		}
	}

	for _, a := range args {
		switch {
		case strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://"):
			base, route := splitCallURL(a)
			if out["base_url"] == nil && base != "" {
				out["base_url"] = base
			}
			if out["route"] == nil && route != "" {
				out["route"] = route
			}
		case strings.HasPrefix(a, "/"):
			if out["route"] == nil {
				out["route"] = a
			}
		}
	}

	declaring := declaringFunction(prov, m.Node)
	if declaring != nil {
		out["caller_id"] = prov.DocumentationID(declaring)
		if owner := prov.ContainingTypeOf(declaring); owner != nil {
			out["caller_type"] = prov.DisplayString(owner)
		}
	}
	return out
}

// bareSymbolName returns a symbol's unqualified name (a method symbol's
// display string is owner-qualified, which would defeat prefix checks).
func bareSymbolName(prov tree.Provider, sym tree.Symbol) string {
	if v, ok := prov.InvokeMember(sym, "name"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return prov.DisplayString(sym)
}

// stringArguments collects the call's string-constant arguments, in
// order, unquoted.
func stringArguments(prov tree.Provider, call tree.Node) []string {
	var out []string
	for _, c := range prov.ChildrenOf(call) {
		if prov.KindOf(c) != tree.KindArgumentList {
			continue
		}
		for _, arg := range prov.ChildrenOf(c) {
			v, ok := prov.ConstantValueOf(arg)
			if !ok {
				continue
			}
			if s, ok := v.(string); ok {
				out = append(out, unquoteLiteral(s))
			}
		}
	}
	return out
}

func unquoteLiteral(s string) string {
	if len(s) >= 2 {
		if q := s[0]; (q == '"' || q == '`' || q == '\'') && s[len(s)-1] == q {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// splitCallURL separates an absolute URL argument into its base address
// (scheme://host) and path.
func splitCallURL(u string) (base, route string) {
	i := strings.Index(u, "://")
	if i < 0 {
		return "", u
	}
	rest := u[i+3:]
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return u, ""
	}
	return u[:i+3+slash], rest[slash:]
}

func verbFromCallName(name string) string {
	for _, p := range []struct{ prefix, verb string }{
		{"Get", "GET"}, {"Post", "POST"}, {"Put", "PUT"}, {"Delete", "DELETE"}, {"Patch", "PATCH"},
	} {
		if strings.HasPrefix(name, p.prefix) {
			return p.verb
		}
	}
	return ""
}

func declaringFunction(prov tree.Provider, n tree.Node) tree.Symbol {
	for cur := n; cur != nil; cur = prov.ParentOf(cur) {
		if sym := prov.DeclaredSymbol(cur); sym != nil {
			kind := prov.SymbolKind(sym)
			if kind == tree.SymbolKindMethod {
				return sym
			}
		}
	}
	return nil
}
