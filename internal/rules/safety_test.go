package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nero/internal/fact"
	"nero/internal/nerr"
)

func TestCheckRule_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		rule     Rule
		code     nerr.Code
		variable string
	}{
		{
			name:     "head variable not bound",
			rule:     NewRule(NewAtom("Thing", Var("x")), Pos("Attribute", Var("y"))),
			code:     nerr.UnboundVariable,
			variable: "x",
		},
		{
			name: "negated variable not bound",
			rule: NewRule(NewAtom("A", Var("x")),
				Pos("B", Var("x")), Not("C", Var("x"), Var("z"))),
			code:     nerr.UnboundVariable,
			variable: "z",
		},
		{
			name: "constraint variable not bound",
			rule: NewRule(NewAtom("A", Var("x")),
				Pos("B", Var("x")), Cmp(Var("x"), OpLt, Var("w"))),
			code:     nerr.UnboundVariable,
			variable: "w",
		},
		{
			name: "wildcard in constraint",
			rule: NewRule(NewAtom("A", Var("x")),
				Pos("B", Var("x")), Cmp(Var("x"), OpEq, Wild())),
			code:     nerr.UnboundVariable,
			variable: "_",
		},
		{
			name: "wildcard in head",
			rule: NewRule(NewAtom("A", Wild()), Pos("B", Var("x"))),
			code: nerr.WildcardInHead,
		},
		{
			name: "two aggregates",
			rule: NewRule(NewAtom("A", Agg("sum", "x"), Agg("count", "x")), Pos("B", Var("x"))),
			code: nerr.MultipleAggregates,
		},
		{
			name: "unknown aggregate",
			rule: NewRule(NewAtom("A", Agg("median", "x")), Pos("B", Var("x"))),
			code: nerr.UnknownAggregate,
		},
		{
			name: "aggregate arity",
			rule: NewRule(NewAtom("A", Agg("map", "x")), Pos("B", Var("x"))),
			code: nerr.UnknownAggregate,
		},
		{
			name: "aggregate variable in head",
			rule: NewRule(NewAtom("A", Var("x"), Agg("count", "x")), Pos("B", Var("x"))),
			code: nerr.AggregateVariableReused,
		},
		{
			name: "aggregate variable not bound",
			rule: NewRule(NewAtom("A", Agg("sum", "n")), Pos("B", Var("x"))),
			code: nerr.UnboundVariable,
		},
		{
			name: "builtin arity",
			rule: NewRule(NewAtom("A", Var("x")),
				Pos("L", Var("list")), Call("member", Var("x"), Var("list"), Var("y"))),
			code: nerr.BuiltinArity,
		},
		{
			name: "builtin collection unbound",
			rule: NewRule(NewAtom("A", Var("x")),
				Call("member", Var("x"), Var("list")), Pos("L", Var("list"))),
			code: nerr.BuiltinUnboundArgument,
		},
		{
			name: "equivalent with neither side bound",
			rule: NewRule(NewAtom("A", Var("a")),
				Pos("B", Var("a")), Call("equivalent", Const(fact.Keyword("str2int")), Var("p"), Var("q"))),
			code: nerr.BuiltinUnboundArgument,
		},
		{
			name: "builtin as relation",
			rule: NewRule(NewAtom("A", Var("x")), Pos("member", Var("x"), Var("y"))),
			code: nerr.ReservedName,
		},
		{
			name: "builtin as head",
			rule: NewRule(NewAtom("member", Var("x"), Var("y")), Pos("B", Var("x"), Var("y"))),
			code: nerr.ReservedName,
		},
		{
			name: "query as head",
			rule: NewRule(NewAtom("query", Var("x")), Pos("B", Var("x"))),
			code: nerr.ReservedName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRule(tt.rule)
			require.Error(t, err)
			assert.Equal(t, tt.code, nerr.CodeOf(err), "error: %v", err)
			if tt.variable != "" {
				var e *nerr.Error
				require.True(t, errors.As(err, &e))
				assert.Equal(t, tt.variable, e.Variable)
			}
		})
	}
}

func TestCheckRule_Accepts(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"join", NewRule(NewAtom("A", Var("x"), Var("z")),
			Pos("B", Var("x"), Var("y")), Pos("C", Var("y"), Var("z")))},
		{"negation after binding", NewRule(NewAtom("A", Var("x")),
			Not("C", Var("x")), Pos("B", Var("x")))},
		{"constraint", NewRule(NewAtom("A", Var("x")),
			Cmp(Var("x"), OpGt, Const(1)), Pos("B", Var("x")))},
		{"builtin binds output", NewRule(NewAtom("A", Var("x")),
			Pos("L", Var("l")), Call("member", Var("x"), Var("l")))},
		{"equivalent binds other side", NewRule(NewAtom("A", Var("n")),
			Pos("B", Var("s")), Call("equivalent", Const(fact.Keyword("str2int")), Var("s"), Var("n")))},
		{"aggregate", NewRule(NewAtom("Total", Var("k"), Agg("sum", "n")),
			Pos("Sale", Var("k"), Var("n")))},
		{"wildcard in body", NewRule(NewAtom("A", Var("x")), Pos("B", Var("x"), Wild()))},
		{"constant head", NewRule(NewAtom("Flag", Const(true)), Pos("B", Wild()))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, CheckRule(tt.rule))
		})
	}
}

func TestCheckRule_UnknownAggregateListsKnownOnes(t *testing.T) {
	err := CheckRule(NewRule(NewAtom("A", Agg("median", "x")), Pos("B", Var("x"))))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want one of count, list, map, max, min, set, sum")
	assert.True(t, IsAggregate("set"))
	assert.False(t, IsAggregate("median"))
}

func TestIsReservedName(t *testing.T) {
	for _, name := range []string{"member", "indexedMember", "keyedMember", "equivalent", "query"} {
		assert.True(t, IsReservedName(name), name)
	}
	assert.False(t, IsReservedName("Member"))
}
