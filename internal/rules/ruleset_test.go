package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nero/internal/fact"
	"nero/internal/nerr"
)

func TestBuilder_ShapeConsistency(t *testing.T) {
	_, err := NewBuilder().
		Fact(fact.New("P", fact.Int(1), fact.Int(2))).
		Fact(fact.New("P", fact.Int(1))).
		Build()
	assert.True(t, nerr.IsError(nerr.ShapeMismatch, err), "error: %v", err)

	_, err = NewBuilder().
		Define("P", fact.Named("a", "b")).
		Rule(NewRule(NewAtom("P", Var("x"), Var("y")), Pos("Q", Var("x"), Var("y")))).
		Build()
	assert.True(t, nerr.IsError(nerr.ShapeMismatch, err), "error: %v", err)

	_, err = NewBuilder().
		Define("P", fact.Named("a", "a")).
		Build()
	assert.True(t, nerr.IsError(nerr.ShapeMismatch, err), "error: %v", err)
}

func TestBuilder_NamedAxiomsAreNormalized(t *testing.T) {
	rs, err := NewBuilder().
		Define("Person", fact.Named("name", "age")).
		Axiom(NewNamedAtom("Person", []string{"age", "name"}, []Term{Const(30), Const("ann")})).
		Build()
	require.NoError(t, err)

	axioms := rs.Axioms()
	require.Len(t, axioms, 1)
	assert.Equal(t, []string{"name", "age"}, axioms[0].Names)
	assert.Equal(t, []fact.Value{fact.String("ann"), fact.Int(30)}, axioms[0].Fields)
}

func TestBuilder_NamedHeadIsNormalized(t *testing.T) {
	rs, err := NewBuilder().
		Define("Pair", fact.Named("left", "right")).
		Rule(NewRule(
			NewNamedAtom("Pair", []string{"right", "left"}, []Term{Var("b"), Var("a")}),
			Pos("Edge", Var("a"), Var("b")))).
		Build()
	require.NoError(t, err)
	head := rs.Rules()[0].Head
	assert.Equal(t, []string{"left", "right"}, head.Names)
	assert.Equal(t, []Term{Var("a"), Var("b")}, head.Terms)
}

func TestBuilder_AxiomRejections(t *testing.T) {
	_, err := NewBuilder().Axiom(NewAtom("P", Var("x"))).Build()
	assert.True(t, nerr.IsError(nerr.VariableInAxiom, err))

	_, err = NewBuilder().Axiom(NewAtom("P", Wild())).Build()
	assert.True(t, nerr.IsError(nerr.WildcardInHead, err))

	_, err = NewBuilder().Axiom(NewAtom("member", Const(1), Const(2))).Build()
	assert.True(t, nerr.IsError(nerr.ReservedName, err))

	_, err = NewBuilder().Axiom(NewAtom("query", Const(1))).Build()
	assert.True(t, nerr.IsError(nerr.ReservedName, err))
}

func TestBuilder_BodyAtomShapes(t *testing.T) {
	base := func() *Builder {
		return NewBuilder().
			Define("Person", fact.Named("name", "age")).
			Fact(fact.New("Edge", fact.Int(1), fact.Int(2)))
	}

	_, err := base().Rule(NewRule(NewAtom("A", Var("x")), Pos("Edge", Var("x")))).Build()
	assert.True(t, nerr.IsError(nerr.ShapeMismatch, err), "ordered arity")

	_, err = base().Rule(NewRule(NewAtom("A", Var("x")), Pos("Person", Var("x"), Var("y")))).Build()
	assert.True(t, nerr.IsError(nerr.ShapeMismatch, err), "positional atom on named shape")

	_, err = base().Rule(NewRule(NewAtom("A", Var("x")),
		PositiveAtom{NewNamedAtom("Person", []string{"height"}, []Term{Var("x")})})).Build()
	assert.True(t, nerr.IsError(nerr.ShapeMismatch, err), "unknown field")

	_, err = base().Rule(NewRule(NewAtom("A", Var("x")),
		PositiveAtom{NewNamedAtom("Person", []string{"name"}, []Term{Var("x")})})).Build()
	assert.NoError(t, err, "named subset")

	_, err = base().Rule(NewRule(NewAtom("A", Var("x")), Pos("query", Var("x")))).Build()
	assert.True(t, nerr.IsError(nerr.ShapeMismatch, err), "positional query")
}

func TestBuilder_FirstErrorWins(t *testing.T) {
	b := NewBuilder().
		Axiom(NewAtom("P", Var("x"))).
		Fact(fact.New("member"))
	assert.True(t, nerr.IsError(nerr.VariableInAxiom, b.Err()))
}

func TestRuleSet_TransientAndSchema(t *testing.T) {
	rs, err := NewBuilder().
		DefineTransient("Tmp", fact.Ordered(1)).
		Fact(fact.New("Base", fact.Int(1))).
		Rule(NewRule(NewAtom("Tmp", Var("x")), Pos("Base", Var("x")))).
		Rule(NewRule(NewAtom("Out", Var("x")), Pos("Tmp", Var("x")))).
		Build()
	require.NoError(t, err)

	assert.True(t, rs.IsTransient("Tmp"))
	assert.True(t, rs.IsTransient("query"))
	assert.False(t, rs.IsTransient("Out"))
	assert.Equal(t, []string{"Tmp"}, rs.Transients())
	assert.Equal(t, []string{"Base", "Out", "Tmp"}, rs.Relations())

	schema := rs.OutputSchema()
	assert.Equal(t, []string{"Base", "Out"}, schema.Relations())
	assert.NoError(t, schema.Check(Schema{"Base": fact.Ordered(1), "Out": fact.Ordered(1)}))

	err = schema.Check(Schema{"Base": fact.Ordered(1), "Out": fact.Ordered(2)})
	require.Error(t, err)
	var e *nerr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, nerr.SchemaMismatch, e.Code)
	assert.Equal(t, "Out", e.Relation)

	err = schema.Check(Schema{"Base": fact.Ordered(1)})
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "Out", e.Relation)
}

func TestRuleSet_Normalize(t *testing.T) {
	rs, err := NewBuilder().Define("P", fact.Named("a", "b")).Build()
	require.NoError(t, err)

	in := fact.FromMap("P", map[string]fact.Value{"b": fact.Int(2), "a": fact.Int(1)})
	got := rs.Normalize(fact.NewNamed("P", []string{"b", "a"}, []fact.Value{fact.Int(2), fact.Int(1)}))
	assert.True(t, got.Equal(in))

	ordered := fact.New("Q", fact.Int(1))
	assert.True(t, rs.Normalize(ordered).Equal(ordered))
}
