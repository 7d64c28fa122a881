package nero

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nero/internal/fact"
	"nero/internal/nerr"
)

func TestDatabase_LoadMergesOnce(t *testing.T) {
	e := New()
	db, err := e.NewDatabase(parents()...)
	require.NoError(t, err)

	p := db.With(mustParse(t, e, "Parent(#carol, #dave);\n"+ancestorRules))
	got, err := p.Load()
	require.NoError(t, err)
	assert.Same(t, db, got)
	assert.Equal(t, 9, db.Size())

	_, err = p.Load()
	assert.True(t, nerr.IsError(nerr.AlreadyExecuted, err), "got %v", err)

	// Infer on a bound pipeline reads the database.
	out, err := db.With(mustParse(t, e, `Root(x) :- Parent(x, _), not Child(x); Child(y) :- Parent(_, y);`)).Infer()
	require.NoError(t, err)
	assert.Contains(t, out, fact.New("Root", fact.Keyword("alice")))
}

func TestDatabase_LoadRejectsIncompatibleFacts(t *testing.T) {
	e := New()
	db, err := e.NewDatabase(fact.New("A", fact.Int(1)))
	require.NoError(t, err)

	_, err = db.With(mustParse(t, e, "A(1, 2);\nB(x) :- A(x, _);")).Load()
	assert.True(t, nerr.IsError(nerr.IncompatibleFacts, err), "got %v", err)
	assert.Equal(t, 1, db.Size(), "nothing is merged on failure")
}

func TestDatabase_AddFacts(t *testing.T) {
	e := New()
	db, err := e.NewDatabase()
	require.NoError(t, err)

	require.NoError(t, db.AddFacts(
		fact.FromMap("P", map[string]fact.Value{"name": fact.String("ann"), "age": fact.Int(3)}),
	))
	// Same names in another order are reordered to the established shape.
	require.NoError(t, db.AddFacts(
		fact.NewNamed("P", []string{"name", "age"}, []fact.Value{fact.String("bob"), fact.Int(4)}),
	))
	assert.Equal(t, 2, db.Size())
	assert.Equal(t, db.Shapes()["P"], db.Relation("P")[1].Shape())

	err = db.AddFacts(fact.New("Q", fact.Int(1)), fact.New("P", fact.Int(1)))
	assert.True(t, nerr.IsError(nerr.IncompatibleFacts, err), "got %v", err)
	assert.False(t, db.Store().Has("Q"), "a rejected batch adds nothing")

	err = db.AddFacts(fact.New("R", fact.Int(1)), fact.New("R", fact.Int(1), fact.Int(2)))
	assert.True(t, nerr.IsError(nerr.IncompatibleFacts, err), "facts must agree with each other")

	_, err = e.NewDatabase(fact.New("S", fact.Int(1)), fact.New("S"))
	assert.Error(t, err)
}

func TestDatabase_Mutators(t *testing.T) {
	e := New()
	db, err := e.NewDatabase(
		fact.New("A", fact.Int(1)),
		fact.New("A", fact.Int(2)),
		fact.New("A", fact.Int(3)),
		fact.New("B", fact.Int(1)),
		fact.New("C", fact.Int(1), fact.Int(2)),
	)
	require.NoError(t, err)

	assert.True(t, db.Remove(fact.New("A", fact.Int(1))))
	assert.False(t, db.Remove(fact.New("A", fact.Int(1))))
	assert.Equal(t, 1, db.RemoveAll(fact.New("A", fact.Int(2)), fact.New("A", fact.Int(9))))
	assert.Equal(t, 1, db.RemoveIf(func(f fact.Fact) bool { return f.Relation == "B" }))

	_, err = db.Rename("A", "C")
	assert.True(t, nerr.IsError(nerr.IncompatibleFacts, err), "got %v", err)
	n, err := db.Rename("A", "D")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"C", "D"}, db.Relations())

	assert.Equal(t, 1, db.Drop("C"))
	assert.Equal(t, []string{"D(3)"}, Map(db, func(f fact.Fact) string { return f.String() }))
	assert.Len(t, db.Filter(func(f fact.Fact) bool { return f.Fields[0] == fact.Int(3) }), 1)

	db.Clear()
	assert.Zero(t, db.Size())
}

func TestDatabase_StoreIsACopy(t *testing.T) {
	e := New()
	db, err := e.NewDatabase(fact.New("A", fact.Int(1)))
	require.NoError(t, err)

	s := db.Store()
	s.Add(fact.New("A", fact.Int(2)))
	assert.Equal(t, 1, db.Size())
}

func TestDatabase_ScriptRoundTrip(t *testing.T) {
	e := New()
	db, err := e.NewDatabase()
	require.NoError(t, err)
	require.NoError(t, db.LoadScript(`
Parent(#alice, #bob);
Parent(#bob, #carol);
`+ancestorRules))
	assert.Equal(t, 5, db.Size())

	text, err := db.ToNeroScript()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "Ancestor(#alice, #bob);\n"), text)

	other, err := e.NewDatabase()
	require.NoError(t, err)
	require.NoError(t, other.LoadScript(text))
	assert.Equal(t, db.All(), other.All())

	line, err := db.ToNeroAxiom(fact.New("X", fact.String("a")))
	require.NoError(t, err)
	assert.Equal(t, `X("a");`, line)

	_, err = db.ToNeroAxiom(fact.New("X", fact.Opaque{V: 1}))
	assert.True(t, nerr.IsError(nerr.UnrepresentableTerm, err))

	err = db.LoadScript("A(")
	assert.True(t, nerr.IsError(nerr.SyntaxError, err))
}

func TestDatabase_ReservedRelationsAreNotWritten(t *testing.T) {
	e := New()
	db, err := e.NewDatabase(fact.New("member", fact.Int(1)), fact.New("query", fact.Int(2)))
	require.NoError(t, err)

	_, err = db.ToNeroScript()
	assert.True(t, nerr.IsError(nerr.UnrepresentableTerm, err), "got %v", err)
	_, err = db.ToNeroAxiom(fact.New("member", fact.Int(1)))
	assert.True(t, nerr.IsError(nerr.UnrepresentableTerm, err), "got %v", err)
}
