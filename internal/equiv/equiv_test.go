package equiv

import (
	"testing"

	"nero/internal/fact"
	"nero/internal/nerr"
)

func TestStandardRegistry(t *testing.T) {
	r := NewStandardRegistry()
	got := r.Keywords()
	want := []string{"int2float", "str2int", "str2keyword"}
	if len(got) != len(want) {
		t.Fatalf("Keywords() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keywords()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStandardConverters(t *testing.T) {
	r := NewStandardRegistry()
	tests := []struct {
		keyword string
		forward bool
		in      fact.Value
		want    fact.Value
	}{
		{"str2keyword", true, fact.String("red"), fact.Keyword("red")},
		{"str2keyword", true, fact.String("not ok"), nil},
		{"str2keyword", false, fact.Keyword("red"), fact.String("red")},
		{"str2int", true, fact.String(" 42"), fact.Int(42)},
		{"str2int", true, fact.String("x"), nil},
		{"str2int", false, fact.Int(-7), fact.String("-7")},
		{"int2float", true, fact.Int(3), fact.Float(3)},
		{"int2float", false, fact.Float(3), fact.Int(3)},
		{"int2float", false, fact.Float(3.5), nil},
	}
	for _, tt := range tests {
		eq, ok := r.Lookup(tt.keyword)
		if !ok {
			t.Fatalf("Lookup(%q) failed", tt.keyword)
		}
		fn := eq.BToA
		if tt.forward {
			fn = eq.AToB
		}
		got, err := fn(tt.in)
		if err != nil {
			t.Fatalf("%s(%v) error = %v", tt.keyword, tt.in, err)
		}
		if tt.want == nil {
			if got != nil {
				t.Errorf("%s(%v) = %v, want no conversion", tt.keyword, tt.in, got)
			}
			continue
		}
		if got == nil || !fact.Equal(got, tt.want) {
			t.Errorf("%s(%v) = %v, want %v", tt.keyword, tt.in, got, tt.want)
		}
	}
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	r.Register(Equivalence{Keyword: "#double"})

	if _, err := r.Resolve(fact.Keyword("double")); err != nil {
		t.Errorf("Resolve(#double) error = %v", err)
	}
	if _, err := r.Resolve(fact.String("double")); err != nil {
		t.Errorf("Resolve(\"double\") error = %v", err)
	}
	if _, err := r.Resolve(fact.Keyword("missing")); !nerr.IsError(nerr.UnknownEquivalence, err) {
		t.Errorf("Resolve(#missing) error = %v, want UnknownEquivalence", err)
	}
	if _, err := r.Resolve(fact.Int(1)); !nerr.IsError(nerr.UnknownEquivalence, err) {
		t.Errorf("Resolve(1) error = %v, want UnknownEquivalence", err)
	}
}

func TestRegistry_CloneIsIndependent(t *testing.T) {
	r := NewRegistry()
	r.Register(Equivalence{Keyword: "a"})
	c := r.Clone()
	c.Register(Equivalence{Keyword: "b"})

	if _, ok := r.Lookup("b"); ok {
		t.Error("registration on clone leaked into original")
	}
	if _, ok := c.Lookup("a"); !ok {
		t.Error("clone lost an equivalence")
	}
}
