// Package eval computes the facts entailed by a stratified rule set using
// semi-naive fixpoint iteration, one stratum at a time.
package eval

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nero/internal/equiv"
	"nero/internal/fact"
	"nero/internal/rules"
)

// Options configure one evaluation.
type Options struct {
	Logger *zap.Logger
	// Equivalences resolves the keywords of the equivalent built-in. Nil means
	// no equivalences are registered.
	Equivalences *equiv.Registry
	// Tracer receives rule firings and fact additions when set.
	Tracer Tracer
	// RunID tags log lines of this evaluation.
	RunID string
	// FactLimit aborts the evaluation once the known set holds more facts.
	// Zero means no limit.
	FactLimit int
}

// ErrFactLimit is returned when an evaluation exceeds Options.FactLimit.
var ErrFactLimit = errors.New("fact limit exceeded")

// StratumStats summarizes the evaluation of one stratum.
type StratumStats struct {
	Stratum int
	Rules   int
	Passes  int
	Derived int
}

// Stats summarizes an evaluation.
type Stats struct {
	Strata     int
	Passes     int
	RulesFired int
	Derived    int
	PerStratum []StratumStats
	Duration   time.Duration
}

// Result is the outcome of an evaluation.
type Result struct {
	// Known holds every non-transient fact: input, axioms and derived facts.
	Known *fact.Store
	// Inferred holds the non-transient facts derived by rules that were
	// neither input nor axioms, in derivation order.
	Inferred []fact.Fact
	Stats    Stats
}

// Evaluate applies rs to input. The input store is not modified.
func Evaluate(rs *rules.RuleSet, input *fact.Store, opts Options) (*Result, error) {
	start := time.Now()
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Equivalences == nil {
		opts.Equivalences = equiv.NewRegistry()
	}
	log := opts.Logger
	if opts.RunID != "" {
		log = log.With(zap.String("run_id", opts.RunID))
	}

	strata, err := rs.Strata()
	if err != nil {
		return nil, err
	}

	seed := fact.NewStore()
	if input != nil {
		input.Each(func(f fact.Fact) bool {
			seed.Add(rs.Normalize(f))
			return true
		})
	}
	for _, a := range rs.Axioms() {
		seed.Add(a)
	}

	e := &evaluator{
		rs:     rs,
		strata: strata,
		known:  newFactIndex(seed),
		opts:   &opts,
		log:    log,
	}
	e.stats.Strata = strata.Count()
	log.Debug("evaluation started",
		zap.Int("strata", strata.Count()),
		zap.Int("rules", len(rs.Rules())),
		zap.Int("facts", seed.Len()))

	for i := 0; i < strata.Count(); i++ {
		if err := e.runStratum(i); err != nil {
			log.Debug("evaluation failed", zap.Int("stratum", i), zap.Error(err))
			return nil, err
		}
	}

	known := seed.Clone()
	known.RemoveIf(func(f fact.Fact) bool { return rs.IsTransient(f.Relation) })
	inferred := make([]fact.Fact, 0, len(e.inferred))
	for _, f := range e.inferred {
		if !rs.IsTransient(f.Relation) {
			inferred = append(inferred, f)
		}
	}
	e.stats.Duration = time.Since(start)
	log.Debug("evaluation finished",
		zap.Int("passes", e.stats.Passes),
		zap.Int("derived", e.stats.Derived),
		zap.Duration("duration", e.stats.Duration))

	return &Result{Known: known, Inferred: inferred, Stats: e.stats}, nil
}

type evaluator struct {
	rs       *rules.RuleSet
	strata   *rules.Strata
	known    *factIndex
	opts     *Options
	log      *zap.Logger
	stats    Stats
	inferred []fact.Fact

	stratum int
	pass    int
}

// plan is a rule prepared for matching: joins bind variables left to right,
// checks run once all joins have matched.
type plan struct {
	rule   rules.Rule
	joins  []rules.BodyElement
	checks []rules.BodyElement
	// recursive lists the joins over relations of the rule's own stratum.
	recursive []int
	aggPos    int
	agg       rules.Aggregate
	aggFn     rules.AggregateFunc
}

func (e *evaluator) plans(stratum int) []*plan {
	var out []*plan
	for _, r := range e.strata.Rules(stratum) {
		p := &plan{rule: r, aggPos: -1}
		for _, el := range r.Body {
			switch x := el.(type) {
			case rules.PositiveAtom:
				if lvl, ok := e.strata.Of(x.Relation); ok && lvl == stratum {
					p.recursive = append(p.recursive, len(p.joins))
				}
				p.joins = append(p.joins, el)
			case rules.BuiltinAtom:
				p.joins = append(p.joins, el)
			default:
				p.checks = append(p.checks, el)
			}
		}
		if agg, pos, ok := r.Aggregate(); ok {
			p.agg, p.aggPos = agg, pos
			p.aggFn, _ = rules.LookupAggregate(agg.Func)
		}
		out = append(out, p)
	}
	return out
}

func (e *evaluator) runStratum(i int) error {
	e.stratum = i
	plans := e.plans(i)
	st := StratumStats{Stratum: i, Rules: len(plans)}
	if len(plans) == 0 {
		e.stats.PerStratum = append(e.stats.PerStratum, st)
		return nil
	}

	var delta *factIndex
	for e.pass = 0; ; e.pass++ {
		next, err := e.runPass(plans, delta)
		if err != nil {
			return err
		}
		st.Passes++
		st.Derived += next.len()
		if next.len() == 0 {
			break
		}
		delta = next
	}

	e.stats.Passes += st.Passes
	e.stats.Derived += st.Derived
	e.stats.PerStratum = append(e.stats.PerStratum, st)
	e.log.Debug("stratum complete",
		zap.Int("stratum", i),
		zap.Strings("relations", e.strata.Levels[i]),
		zap.Int("passes", st.Passes),
		zap.Int("derived", st.Derived))
	return nil
}

// pending is a fact derived in the current pass, not yet visible to matching.
type pending struct {
	fact     fact.Fact
	rule     rules.Rule
	premises []fact.Fact
}

// runPass evaluates the stratum's rules once. With a nil delta every rule is
// matched against the full known set; otherwise only non-aggregate rules run,
// once per recursive join, with that join restricted to delta. Facts derived
// in the pass are added to the known set afterwards and returned as the next
// delta.
func (e *evaluator) runPass(plans []*plan, delta *factIndex) (*factIndex, error) {
	var out []pending
	seen := fact.NewStore()
	emit := func(p *plan, f fact.Fact, premises []fact.Fact) {
		if e.known.contains(f) || !seen.Add(f) {
			return
		}
		out = append(out, pending{fact: f, rule: p.rule, premises: premises})
	}

	for _, p := range plans {
		var err error
		switch {
		case delta == nil && p.aggPos >= 0:
			err = e.aggregate(p, emit)
		case delta == nil:
			err = e.match(p, -1, nil, func(b *bindings, premises []fact.Fact) {
				emit(p, project(p.rule.Head, b), premises)
			})
		case p.aggPos < 0:
			for _, j := range p.recursive {
				err = e.match(p, j, delta, func(b *bindings, premises []fact.Fact) {
					emit(p, project(p.rule.Head, b), premises)
				})
				if err != nil {
					break
				}
			}
		}
		if err != nil {
			return nil, fmt.Errorf("stratum %d: rule %s: %w", e.stratum, p.rule.String(), err)
		}
	}

	next := newFactIndex(fact.NewStore())
	for _, pd := range out {
		e.known.add(pd.fact)
		next.add(pd.fact)
		e.inferred = append(e.inferred, pd.fact)
		if e.opts.Tracer != nil {
			e.opts.Tracer.FactAdded(Addition{
				Stratum:  e.stratum,
				Pass:     e.pass,
				Fact:     pd.fact,
				Rule:     pd.rule,
				Premises: pd.premises,
			})
		}
	}
	if limit := e.opts.FactLimit; limit > 0 && e.known.len() > limit {
		return nil, fmt.Errorf("stratum %d: %d facts: %w", e.stratum, e.known.len(), ErrFactLimit)
	}
	return next, nil
}

// match enumerates every full match of p's body. When deltaJoin is not
// negative, that join reads from delta instead of the known set.
func (e *evaluator) match(p *plan, deltaJoin int, delta *factIndex, yield func(*bindings, []fact.Fact)) error {
	b := newBindings()
	tracing := e.opts.Tracer != nil
	var premises []fact.Fact

	var step func(i int) error
	step = func(i int) error {
		if i == len(p.joins) {
			for _, c := range p.checks {
				switch x := c.(type) {
				case rules.NegatedAtom:
					if exists(e.known, x.Atom, b) {
						return nil
					}
				case rules.Constraint:
					if !holds(x, b) {
						return nil
					}
				}
			}
			e.stats.RulesFired++
			var prem []fact.Fact
			if tracing {
				prem = append([]fact.Fact(nil), premises...)
				e.opts.Tracer.RuleFired(Firing{
					Stratum:  e.stratum,
					Pass:     e.pass,
					Rule:     p.rule,
					Bindings: b.snapshot(),
					Premises: prem,
				})
			}
			yield(b, prem)
			return nil
		}

		switch x := p.joins[i].(type) {
		case rules.PositiveAtom:
			src := e.known
			if i == deltaJoin {
				src = delta
			}
			for _, f := range candidates(src, x.Atom, b) {
				m := b.mark()
				if b.unifyAtom(x.Atom, f) {
					if tracing {
						premises = append(premises, f)
					}
					if err := step(i + 1); err != nil {
						return err
					}
					if tracing {
						premises = premises[:len(premises)-1]
					}
				}
				b.undo(m)
			}
		case rules.BuiltinAtom:
			solutions, err := callBuiltin(x, b, e.opts)
			if err != nil {
				return err
			}
			for _, sol := range solutions {
				m := b.mark()
				ok := true
				for k, t := range x.Terms {
					if !b.unifyTerm(t, sol[k]) {
						ok = false
						break
					}
				}
				if ok {
					if err := step(i + 1); err != nil {
						return err
					}
				}
				b.undo(m)
			}
		}
		return nil
	}
	return step(0)
}

type group struct {
	head   fact.Fact
	tuples [][]fact.Value
}

// aggregate groups every full match by the non-aggregate head fields and
// folds each group into one fact. Groups with no matches produce nothing.
func (e *evaluator) aggregate(p *plan, emit func(*plan, fact.Fact, []fact.Fact)) error {
	var order []string
	groups := make(map[string]*group)
	err := e.match(p, -1, nil, func(b *bindings, _ []fact.Fact) {
		head := project(p.rule.Head, b)
		head.Fields[p.aggPos] = fact.Null{}
		key := head.Key()
		g, ok := groups[key]
		if !ok {
			g = &group{head: head}
			groups[key] = g
			order = append(order, key)
		}
		tuple := make([]fact.Value, len(p.agg.Args))
		for i, v := range p.agg.Args {
			tuple[i] = b.value(v)
		}
		g.tuples = append(g.tuples, tuple)
	})
	if err != nil {
		return err
	}

	for _, key := range order {
		g := groups[key]
		v, err := p.aggFn.Fold(g.tuples)
		if err != nil {
			return err
		}
		fields := append([]fact.Value(nil), g.head.Fields...)
		fields[p.aggPos] = v
		f := g.head
		f.Fields = fields
		emit(p, f, nil)
	}
	return nil
}
