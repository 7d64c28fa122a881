package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nero/internal/fact"
)

func TestRecorder_Explain(t *testing.T) {
	rec := &Recorder{}
	run(t, ancestors, Options{Tracer: rec})

	got := rec.Explain(fact.New("Ancestor", kw("alice"), kw("carol")))
	want := "Ancestor(#alice, #carol) <- Ancestor(x, z)\n" +
		"  Parent(#alice, #bob) [given]\n" +
		"  Ancestor(#bob, #carol) <- Ancestor(x, y)\n" +
		"    Parent(#bob, #carol) [given]\n"
	assert.Equal(t, want, got)
}

func TestRecorder_Derivation(t *testing.T) {
	rec := &Recorder{}
	run(t, ancestors, Options{Tracer: rec})

	a, ok := rec.Derivation(fact.New("Ancestor", kw("alice"), kw("carol")))
	require.True(t, ok)
	assert.Equal(t, 1, a.Pass)
	assert.Len(t, a.Premises, 2)

	_, ok = rec.Derivation(fact.New("Parent", kw("alice"), kw("bob")))
	assert.False(t, ok)

	assert.Len(t, rec.Additions, 3)
	assert.GreaterOrEqual(t, len(rec.Firings), 3)
}

func TestRecorder_DoesNotChangeResults(t *testing.T) {
	plain := run(t, ancestors, Options{})
	traced := run(t, ancestors, Options{Tracer: NewZapTracer(zap.NewNop())})
	assert.Equal(t, plain.Known.All(), traced.Known.All())
}

func TestFormatBindings(t *testing.T) {
	got := FormatBindings(map[string]fact.Value{
		"y": kw("a"),
		"x": fact.Int(1),
	})
	if got != "x=1, y=#a" {
		t.Errorf("FormatBindings() = %q", got)
	}
}
