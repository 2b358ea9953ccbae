// Package dump serializes a flowgraph.Graph to a stable, deterministic
// JSON shape.
package dump

import (
	"encoding/json"
	"io"
	"os"

	"github.com/r-dutton/flowlens/internal/flowgraph"
)

// Span is the nullable {StartLine,EndLine} pair emitted for nodes that
// carry source location.
type Span struct {
	StartLine int `json:"StartLine"`
	EndLine   int `json:"EndLine"`
}

// Node is one node in the JSON dump shape.
type Node struct {
	ID         string            `json:"Id"`
	Type       string            `json:"Type"`
	Name       string            `json:"Name"`
	Fqdn       string            `json:"Fqdn"`
	Assembly   string            `json:"Assembly"`
	Project    string            `json:"Project"`
	Span       *Span             `json:"Span"`
	SymbolID   string            `json:"SymbolId"`
	Tags       []string          `json:"Tags"`
	Properties map[string]string `json:"Properties"`
}

// Evidence is one evidence entry for an Edge.
type Evidence struct {
	Path      string `json:"Path"`
	StartLine int    `json:"StartLine"`
	EndLine   int    `json:"EndLine"`
}

// Edge is one edge in the JSON dump shape.
type Edge struct {
	From       string     `json:"From"`
	To         string     `json:"To"`
	Kind       string     `json:"Kind"`
	Source     string     `json:"Source"`
	Confidence float64    `json:"Confidence"`
	Evidence   []Evidence `json:"Evidence"`
}

// Dump is the top-level {"nodes":[...], "edges":[...]} document.
type Dump struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// fromGraph converts a graph into the dump document shape.
func fromGraph(g *flowgraph.Graph) Dump {
	d := Dump{Nodes: make([]Node, 0, len(g.Nodes)), Edges: make([]Edge, 0, len(g.Edges))}
	for _, n := range g.Nodes {
		jn := Node{
			ID: n.ID, Type: n.Type, Name: n.Name, Fqdn: n.Fqdn,
			Assembly: n.Assembly, Project: n.Project, SymbolID: n.SymbolID,
			Tags:       sortedTags(n),
			Properties: emptyIfNil(n.Properties),
		}
		if n.HasSpan {
			jn.Span = &Span{StartLine: n.StartLine, EndLine: n.EndLine}
		}
		d.Nodes = append(d.Nodes, jn)
	}
	for _, e := range g.Edges {
		je := Edge{From: e.From, To: e.To, Kind: e.Kind, Source: e.Source, Confidence: e.Confidence}
		for _, ev := range e.Evidence {
			je.Evidence = append(je.Evidence, Evidence{Path: ev.Path, StartLine: ev.StartLine, EndLine: ev.EndLine})
		}
		d.Edges = append(d.Edges, je)
	}
	return d
}

func emptyIfNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func sortedTags(n *flowgraph.Node) []string {
	tags := n.SortedTags()
	if tags == nil {
		return []string{}
	}
	return tags
}

// Write serializes g to w as indented JSON. Node/edge ordering is
// whatever g already carries; flowgraph.Graph and compose.Composition
// both emit nodes-by-fqdn, edges-by-(from,to,kind), so repeated builds
// of the same input produce byte-identical output.
func Write(w io.Writer, g *flowgraph.Graph) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fromGraph(g))
}

// WriteFile writes the dump to path, creating/truncating it.
func WriteFile(path string, g *flowgraph.Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Write(f, g)
}
