package depgraph

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestComponents_TopologicalOrder(t *testing.T) {
	g := New()
	g.AddEdge("Parent", "Ancestor", Positive)
	g.AddEdge("Ancestor", "Ancestor", Positive)
	g.AddEdge("Ancestor", "Report", Negative)
	g.AddNode("Lonely")

	comps := g.Components()
	pos := make(map[string]int)
	for i, c := range comps {
		for _, n := range c {
			pos[n] = i
		}
	}
	if len(comps) != 4 {
		t.Fatalf("Components() = %v, want 4 components", comps)
	}
	for _, e := range g.Edges() {
		if pos[e.From] > pos[e.To] {
			t.Errorf("edge %s goes backwards in %v", e, comps)
		}
	}
}

func TestComponents_MutualRecursion(t *testing.T) {
	g := New()
	g.AddEdge("Even", "Odd", Positive)
	g.AddEdge("Odd", "Even", Positive)
	g.AddEdge("Zero", "Even", Positive)

	got := g.Components()
	want := [][]string{{"Zero"}, {"Even", "Odd"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Components() mismatch (-want +got):\n%s", diff)
	}
}

func TestStratify_Levels(t *testing.T) {
	g := New()
	g.AddEdge("Edge", "Reach", Positive)
	g.AddEdge("Reach", "Reach", Positive)
	g.AddEdge("Node", "Unreached", Positive)
	g.AddEdge("Reach", "Unreached", Negative)
	g.AddEdge("Unreached", "Count", Aggregate)
	g.AddEdge("Edge", "Count", Aggregate)

	got, err := g.Stratify()
	if err != nil {
		t.Fatalf("Stratify() error = %v", err)
	}
	want := map[string]int{
		"Edge":      0,
		"Node":      0,
		"Reach":     0,
		"Unreached": 1,
		"Count":     2,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Stratify() mismatch (-want +got):\n%s", diff)
	}
}

func TestStratify_NegativeCycle(t *testing.T) {
	g := New()
	g.AddEdge("B", "A", Positive)
	g.AddEdge("A", "C", Positive)
	g.AddEdge("C", "A", Negative)

	_, err := g.Stratify()
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("Stratify() error = %v, want *CycleError", err)
	}
	if cycle.Edge.Kind != Negative {
		t.Errorf("cycle edge kind = %s, want not", cycle.Edge.Kind)
	}
	want := []Edge{
		{From: "C", To: "A", Kind: Negative},
		{From: "A", To: "C", Kind: Positive},
	}
	if diff := cmp.Diff(want, cycle.Path); diff != "" {
		t.Errorf("cycle path mismatch (-want +got):\n%s", diff)
	}
	if got := cycle.Error(); got != "cycle through not dependency: C -[not]-> A, A -> C" {
		t.Errorf("Error() = %q", got)
	}
}

func TestStratify_SelfNegation(t *testing.T) {
	g := New()
	g.AddEdge("B", "A", Positive)
	g.AddEdge("A", "A", Negative)

	_, err := g.Stratify()
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("Stratify() error = %v, want *CycleError", err)
	}
	if len(cycle.Path) != 1 {
		t.Errorf("Path = %v, want the self edge only", cycle.Path)
	}
}

func TestStratify_AggregateCycle(t *testing.T) {
	g := New()
	g.AddEdge("Total", "Sale", Positive)
	g.AddEdge("Sale", "Total", Aggregate)

	if _, err := g.Stratify(); err == nil {
		t.Fatal("Stratify() succeeded on a cycle through an aggregate")
	}
}
