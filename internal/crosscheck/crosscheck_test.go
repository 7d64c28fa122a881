package crosscheck

import (
	"errors"
	"strings"
	"testing"

	"nero/internal/eval"
	"nero/internal/fact"
	"nero/internal/rules"
	"nero/internal/script"
)

func mustParse(t *testing.T, src string) *rules.RuleSet {
	t.Helper()
	rs, err := script.Parse(src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return rs
}

func checkAgrees(t *testing.T, src string, input ...fact.Fact) {
	t.Helper()
	rs := mustParse(t, src)
	res, err := eval.Evaluate(rs, fact.NewStore(input...), eval.Options{})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	diff, err := NewChecker(nil).Check(rs, input, res.Known)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !diff.Empty() {
		t.Fatalf("engines disagree:\n%s", diff)
	}
}

func TestCrosscheck_TransitiveClosure(t *testing.T) {
	checkAgrees(t, `
Parent(#alice, #bob);
Parent(#bob, #carol);
Parent(#carol, #dave);
Ancestor(x, y) :- Parent(x, y);
Ancestor(x, z) :- Parent(x, y), Ancestor(y, z);
`)
}

func TestCrosscheck_NegationAndConstraints(t *testing.T) {
	checkAgrees(t, `
Node("a");
Node("b");
Node("c");
Edge("a", "b");
Edge("b", "c");
HasOut(x) :- Edge(x, _);
Sink(x) :- Node(x), not HasOut(x);
Pair(x, y) :- Node(x), Node(y), x != y;
Self(x, y) :- Node(x), Node(y), x == y;
`)
}

func TestCrosscheck_InputFacts(t *testing.T) {
	checkAgrees(t, `Big(x) :- Size(x, 10);`,
		fact.New("Size", fact.Keyword("a"), fact.Int(10)),
		fact.New("Size", fact.Keyword("b"), fact.Int(3)),
	)
}

func TestTranslate_Source(t *testing.T) {
	rs := mustParse(t, `
Edge(1, 2);
Reach(x, y) :- Edge(x, y), not Blocked(y);
`)
	prog, err := Translate(rs, nil)
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	for _, want := range []string{
		"Decl r2_blocked(X0).",
		"r0_edge(1, 2).",
		"r1_reach(X0, X1) :- r0_edge(X0, X1), !r2_blocked(X1).",
	} {
		if !strings.Contains(prog.Source, want) {
			t.Errorf("source missing %q:\n%s", want, prog.Source)
		}
	}
}

func TestTranslate_Unsupported(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"aggregate", `Sale(1, 5); Total(sum(n)) :- Sale(_, n);`},
		{"builtin", `L([1, 2]); M(x) :- L(l), member(x, l);`},
		{"ordering", `N(1); Small(x) :- N(x), x < 5;`},
		{"named", `define P/name; P(name: "a"); Q(n) :- P(name: n);`},
		{"bool", `B(true);`},
		{"list", `L([1]);`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := mustParse(t, tt.src)
			_, err := Translate(rs, nil)
			if !errors.Is(err, ErrUnsupported) {
				t.Fatalf("Translate() error = %v, want ErrUnsupported", err)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	a := fact.New("R", fact.Int(1))
	b := fact.New("R", fact.Int(2))
	c := fact.New("R", fact.Int(3))

	d := Compare(fact.NewStore(a, b), fact.NewStore(b, c))
	if len(d.Missing) != 1 || !d.Missing[0].Equal(a) {
		t.Errorf("Missing = %v, want [%v]", d.Missing, a)
	}
	if len(d.Extra) != 1 || !d.Extra[0].Equal(c) {
		t.Errorf("Extra = %v, want [%v]", d.Extra, c)
	}
	if d.Empty() {
		t.Error("Empty() = true")
	}
	if got := Compare(fact.NewStore(a), fact.NewStore(a)); !got.Empty() {
		t.Errorf("identical stores differ: %s", got)
	}
}
