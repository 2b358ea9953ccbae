// Package diagnostics hosts selector-driven lint rules: it registers
// selectors, re-evaluates them per compilation, and applies a secondary
// "rule" selector with {placeholder} interpolation against each match.
package diagnostics

import (
	"fmt"
	"strings"
	"sync"

	"github.com/r-dutton/flowlens/internal/match"
	"github.com/r-dutton/flowlens/internal/selector"
	"github.com/r-dutton/flowlens/internal/tree"
)

// Severity is the diagnostic severity a rule reports at.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ParseSeverity maps severity strings case-insensitively:
// "error" -> Error, "info" -> Info, anything else (including "warning",
// "invalid", blank) -> Warning.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return SeverityError
	case "info":
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

// RuleConfig is one entry of the consumed JSON configuration: a primary
// selector, an optional secondary "rule" selector
// (possibly with {Name}-style placeholders), a message, and a severity.
type RuleConfig struct {
	Selector string
	Rule     string
	Message  string
	Severity string
}

// ConfigurationError reports that the host has no configuration loaded.
type ConfigurationError struct{ Reason string }

func (e *ConfigurationError) Error() string { return "diagnostics: " + e.Reason }

// Diagnostic is one reported finding.
type Diagnostic struct {
	RuleIndex int
	Severity  Severity
	Message   string
	FilePath  string
	Span      tree.Span
}

// compiledRule is a RuleConfig with its primary selector parsed once and
// its top-level kind hints recorded. Analyze evaluates every rule through
// one match.Dispatch walk, which applies the same kind-hint pruning itself.
type compiledRule struct {
	cfg       RuleConfig
	index     int
	selector  *selector.ComplexSelectorList
	kindHints []tree.Kind // nil => global (no fixed top-level kind)
	severity  Severity

	hasPlaceholder  bool
	staticRule      *selector.ComplexSelectorList // precompiled when Rule has no {placeholder}
	staticRuleErr   error
}

// Host registers RuleConfigs and evaluates them against compilations.
// The placeholder-substituted selector cache is process-wide (a
// concurrent mapping keyed by the substituted string, case-sensitive)
// and shared across Hosts.
type Host struct {
	rules []*compiledRule
}

var placeholderCache sync.Map // string -> *selector.ComplexSelectorList

// NewHost parses and registers every rule in cfgs. Returns
// *ConfigurationError if cfgs is empty. A malformed primary selector
// fails fast, wrapped.
func NewHost(cfgs []RuleConfig) (*Host, error) {
	if len(cfgs) == 0 {
		return nil, &ConfigurationError{Reason: "no rules configured"}
	}
	h := &Host{}
	for i, cfg := range cfgs {
		sel, err := selector.Parse(cfg.Selector)
		if err != nil {
			return nil, fmt.Errorf("diagnostics: rule %d: parse selector %q: %w", i, cfg.Selector, err)
		}
		cr := &compiledRule{
			cfg:       cfg,
			index:     i,
			selector:  sel,
			kindHints: match.TopLevelKinds(sel),
			severity:  ParseSeverity(cfg.Severity),
		}
		if cfg.Rule != "" {
			cr.hasPlaceholder = strings.Contains(cfg.Rule, "{")
			if !cr.hasPlaceholder {
				cr.staticRule, cr.staticRuleErr = compileCached(cfg.Rule)
			}
		}
		h.rules = append(h.rules, cr)
	}
	return h, nil
}

func compileCached(text string) (*selector.ComplexSelectorList, error) {
	if v, ok := placeholderCache.Load(text); ok {
		return v.(*selector.ComplexSelectorList), nil
	}
	sel, err := selector.Parse(text)
	if err != nil {
		return nil, err
	}
	// Duplicate parses under contention are idempotent; LoadOrStore
	// discards whichever loses the race.
	actual, _ := placeholderCache.LoadOrStore(text, sel)
	return actual.(*selector.ComplexSelectorList), nil
}

// Analyze evaluates every registered rule against root (one
// compilation's syntax tree) and returns the
// diagnostics produced. Matches without an identifiable name for
// placeholder substitution are skipped for rules that need one.
func (h *Host) Analyze(prov tree.Provider, root tree.Node) []Diagnostic {
	var out []Diagnostic
	sels := make([]*selector.ComplexSelectorList, len(h.rules))
	for i, r := range h.rules {
		sels[i] = r.selector
	}
	match.Dispatch(prov, root, sels, nil, func(index int, m match.Match) {
		r := h.rules[index]
		if d, ok := r.evaluate(prov, m); ok {
			out = append(out, d)
		}
	})
	return out
}

func (r *compiledRule) evaluate(prov tree.Provider, m match.Match) (Diagnostic, bool) {
	span := prov.SpanOf(m.Node)
	filePath := prov.FilePathOf(m.Node)

	if r.cfg.Rule == "" {
		return Diagnostic{RuleIndex: r.index, Severity: r.severity, Message: r.cfg.Message, FilePath: filePath, Span: span}, true
	}

	var sub *selector.ComplexSelectorList
	if r.hasPlaceholder {
		name := prov.IdentifierTextOf(m.Node)
		if name == "" {
			return Diagnostic{}, false
		}
		text := substitutePlaceholders(r.cfg.Rule, name)
		compiled, err := compileCached(text)
		if err != nil {
			return Diagnostic{}, false
		}
		sub = compiled
	} else {
		if r.staticRuleErr != nil {
			return Diagnostic{}, false
		}
		sub = r.staticRule
	}

	_, found := match.QueryFirst(prov, m.Node, sub, nil)
	if found {
		return Diagnostic{}, false
	}
	return Diagnostic{RuleIndex: r.index, Severity: r.severity, Message: r.cfg.Message, FilePath: filePath, Span: span}, true
}

// substitutePlaceholders replaces "{Name}" with the matched declaration's
// identifier text. Only "{Name}" is recognized; the mechanism is generic
// but unvalidated beyond it.
func substitutePlaceholders(rule, name string) string {
	return strings.ReplaceAll(rule, "{Name}", name)
}
