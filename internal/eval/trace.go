package eval

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"nero/internal/fact"
	"nero/internal/rules"
)

// Firing is one full match of a rule body.
type Firing struct {
	Stratum  int
	Pass     int
	Rule     rules.Rule
	Bindings map[string]fact.Value
	// Premises are the body facts the match used, in body order.
	Premises []fact.Fact
}

// Addition records a fact that a rule added to the known set.
type Addition struct {
	Stratum  int
	Pass     int
	Fact     fact.Fact
	Rule     rules.Rule
	Premises []fact.Fact
}

// Tracer observes evaluation steps. It has no effect on results.
type Tracer interface {
	RuleFired(Firing)
	FactAdded(Addition)
}

// ZapTracer writes each step to a logger at debug level.
type ZapTracer struct {
	log *zap.Logger
}

// NewZapTracer returns a tracer that logs through log.
func NewZapTracer(log *zap.Logger) *ZapTracer {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapTracer{log: log}
}

func (t *ZapTracer) RuleFired(f Firing) {
	t.log.Debug("rule fired",
		zap.Int("stratum", f.Stratum),
		zap.Int("pass", f.Pass),
		zap.String("rule", f.Rule.String()),
		zap.String("bindings", FormatBindings(f.Bindings)))
}

func (t *ZapTracer) FactAdded(a Addition) {
	t.log.Debug("fact added",
		zap.Int("stratum", a.Stratum),
		zap.Int("pass", a.Pass),
		zap.String("fact", a.Fact.String()),
		zap.String("rule", a.Rule.Head.String()))
}

// Recorder keeps every step in memory.
type Recorder struct {
	Firings   []Firing
	Additions []Addition
}

func (r *Recorder) RuleFired(f Firing) { r.Firings = append(r.Firings, f) }
func (r *Recorder) FactAdded(a Addition) { r.Additions = append(r.Additions, a) }

// Derivation returns the step that added f, if it was derived.
func (r *Recorder) Derivation(f fact.Fact) (Addition, bool) {
	for _, a := range r.Additions {
		if a.Fact.Equal(f) {
			return a, true
		}
	}
	return Addition{}, false
}

// Explain renders the derivation tree of f, one node per line, indenting
// premises under the fact they support. Facts with no recorded derivation are
// marked as given.
func (r *Recorder) Explain(f fact.Fact) string {
	var sb strings.Builder
	r.explain(&sb, f, 0, make(map[string]bool))
	return sb.String()
}

func (r *Recorder) explain(sb *strings.Builder, f fact.Fact, depth int, seen map[string]bool) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(f.String())
	a, derived := r.Derivation(f)
	if !derived {
		sb.WriteString(" [given]\n")
		return
	}
	sb.WriteString(" <- ")
	sb.WriteString(a.Rule.Head.String())
	sb.WriteString("\n")
	if seen[f.Key()] {
		return
	}
	seen[f.Key()] = true
	for _, p := range a.Premises {
		r.explain(sb, p, depth+1, seen)
	}
}

// FormatBindings renders bindings as "x=1, y=#a", sorted by variable.
func FormatBindings(b map[string]fact.Value) string {
	names := make([]string, 0, len(b))
	for k := range b {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = k + "=" + b[k].String()
	}
	return strings.Join(parts, ", ")
}
