// Package depgraph computes strongly connected components and strata over a
// relation dependency graph. Edges point from a dependency to its dependent:
// for a rule H :- B, the edge is B -> H.
package depgraph

import (
	"fmt"
	"sort"
	"strings"
)

// EdgeKind labels a dependency.
type EdgeKind int

const (
	Positive EdgeKind = iota
	Negative
	Aggregate
)

func (k EdgeKind) String() string {
	switch k {
	case Negative:
		return "not"
	case Aggregate:
		return "agg"
	}
	return "pos"
}

// Strict reports whether the dependent must live in a strictly higher stratum.
func (k EdgeKind) Strict() bool { return k != Positive }

// Edge is a labeled dependency From -> To.
type Edge struct {
	From string
	To   string
	Kind EdgeKind
}

func (e Edge) String() string {
	if e.Kind == Positive {
		return e.From + " -> " + e.To
	}
	return e.From + " -[" + e.Kind.String() + "]-> " + e.To
}

// Graph is a directed multigraph over relation names.
type Graph struct {
	nodes map[string]struct{}
	edges []Edge
	out   map[string][]int
	in    map[string][]int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]struct{}),
		out:   make(map[string][]int),
		in:    make(map[string][]int),
	}
}

// AddNode adds a node with no edges.
func (g *Graph) AddNode(name string) {
	g.nodes[name] = struct{}{}
}

// AddEdge adds a labeled edge, creating both endpoints.
func (g *Graph) AddEdge(from, to string, kind EdgeKind) {
	g.AddNode(from)
	g.AddNode(to)
	g.out[from] = append(g.out[from], len(g.edges))
	g.in[to] = append(g.in[to], len(g.edges))
	g.edges = append(g.edges, Edge{From: from, To: to, Kind: kind})
}

// Nodes returns the node names, sorted.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Edges returns a copy of the edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Components returns the strongly connected components in topological order:
// every edge between two components goes from an earlier component to a later
// one. Nodes within a component are sorted.
func (g *Graph) Components() [][]string {
	t := &tarjan{
		g:       g,
		index:   make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}
	for _, n := range g.Nodes() {
		if _, seen := t.index[n]; !seen {
			t.visit(n)
		}
	}
	// Tarjan emits sinks first.
	for i, j := 0, len(t.comps)-1; i < j; i, j = i+1, j-1 {
		t.comps[i], t.comps[j] = t.comps[j], t.comps[i]
	}
	return t.comps
}

type tarjan struct {
	g       *Graph
	next    int
	index   map[string]int
	lowlink map[string]int
	stack   []string
	onStack map[string]bool
	comps   [][]string
}

func (t *tarjan) visit(n string) {
	t.index[n] = t.next
	t.lowlink[n] = t.next
	t.next++
	t.stack = append(t.stack, n)
	t.onStack[n] = true

	for _, ei := range t.g.out[n] {
		m := t.g.edges[ei].To
		if _, seen := t.index[m]; !seen {
			t.visit(m)
			t.lowlink[n] = min(t.lowlink[n], t.lowlink[m])
		} else if t.onStack[m] {
			t.lowlink[n] = min(t.lowlink[n], t.index[m])
		}
	}

	if t.lowlink[n] != t.index[n] {
		return
	}
	var comp []string
	for {
		top := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[top] = false
		comp = append(comp, top)
		if top == n {
			break
		}
	}
	sort.Strings(comp)
	t.comps = append(t.comps, comp)
}

// CycleError reports a cycle that passes through a negative or aggregate edge.
type CycleError struct {
	Edge Edge
	Path []Edge
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, edge := range e.Path {
		parts[i] = edge.String()
	}
	return fmt.Sprintf("cycle through %s dependency: %s", e.Edge.Kind, strings.Join(parts, ", "))
}

// Stratify assigns each node a stratum such that positive edges never go to a
// lower stratum and negative or aggregate edges always go to a strictly higher
// one. It fails with a *CycleError when no such assignment exists.
func (g *Graph) Stratify() (map[string]int, error) {
	comps := g.Components()
	compOf := make(map[string]int, len(g.nodes))
	for i, comp := range comps {
		for _, n := range comp {
			compOf[n] = i
		}
	}

	for _, e := range g.edges {
		if e.Kind.Strict() && compOf[e.From] == compOf[e.To] {
			return nil, &CycleError{Edge: e, Path: g.cycleThrough(e, compOf)}
		}
	}

	level := make([]int, len(comps))
	for i, comp := range comps {
		for _, n := range comp {
			for _, ei := range g.in[n] {
				e := g.edges[ei]
				src := compOf[e.From]
				if src == i {
					continue
				}
				w := 0
				if e.Kind.Strict() {
					w = 1
				}
				level[i] = max(level[i], level[src]+w)
			}
		}
	}

	strata := make(map[string]int, len(g.nodes))
	for n, c := range compOf {
		strata[n] = level[c]
	}
	return strata, nil
}

// cycleThrough returns the edges of a cycle that starts with e and returns to
// e.From inside e's component.
func (g *Graph) cycleThrough(e Edge, compOf map[string]int) []Edge {
	path := []Edge{e}
	if e.To == e.From {
		return path
	}
	comp := compOf[e.From]
	prev := map[string]int{e.To: -1}
	queue := []string{e.To}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n == e.From {
			break
		}
		for _, ei := range g.out[n] {
			m := g.edges[ei].To
			if compOf[m] != comp {
				continue
			}
			if _, seen := prev[m]; seen {
				continue
			}
			prev[m] = ei
			queue = append(queue, m)
		}
	}
	var back []Edge
	for n := e.From; n != e.To; {
		ei, ok := prev[n]
		if !ok || ei < 0 {
			break
		}
		back = append(back, g.edges[ei])
		n = g.edges[ei].From
	}
	for i := len(back) - 1; i >= 0; i-- {
		path = append(path, back[i])
	}
	return path
}
