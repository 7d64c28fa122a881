package nero

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nero/internal/eval"
	"nero/internal/fact"
	"nero/internal/nerr"
	"nero/internal/rules"
)

// Mode names a pipeline execution.
type Mode string

const (
	ModeQuery  Mode = "query"
	ModeInfer  Mode = "infer"
	ModeUpdate Mode = "update"
	ModeLoad   Mode = "load"
)

// Pipeline applies one rule set. It is configured with Debug, QueryParm,
// QueryParms and Check, then executed. Query and Infer are read-only and
// may be repeated; Update and Load mutate their target and run at most once.
type Pipeline struct {
	engine *Engine
	rs     *rules.RuleSet
	db     *Database

	debug  bool
	tracer eval.Tracer
	parms  map[string]fact.Value
	schema rules.Schema

	mutated Mode
	stats   eval.Stats
}

func newPipeline(e *Engine, rs *rules.RuleSet, db *Database) *Pipeline {
	return &Pipeline{
		engine: e,
		rs:     rs,
		db:     db,
		debug:  e.cfg.Debug,
		parms:  make(map[string]fact.Value),
	}
}

// Debug turns step tracing on or off.
func (p *Pipeline) Debug(on bool) *Pipeline {
	p.debug = on
	return p
}

// Trace sends evaluation steps to t instead of the log. It implies Debug.
func (p *Pipeline) Trace(t eval.Tracer) *Pipeline {
	p.tracer = t
	p.debug = t != nil
	return p
}

// QueryParm sets one query parameter. Rule bodies read parameters through
// the query relation, e.g. query(name: N).
func (p *Pipeline) QueryParm(name string, value interface{}) *Pipeline {
	p.parms[name] = fact.FromGo(value)
	return p
}

// QueryParms sets several query parameters; existing names are overwritten.
func (p *Pipeline) QueryParms(parms map[string]interface{}) *Pipeline {
	for name, v := range parms {
		p.QueryParm(name, v)
	}
	return p
}

// Check makes every execution first verify that the rule set's output
// shapes match schema.
func (p *Pipeline) Check(schema rules.Schema) *Pipeline {
	p.schema = schema
	return p
}

// Stats returns the statistics of the most recent execution.
func (p *Pipeline) Stats() eval.Stats { return p.stats }

// Query evaluates the rule set over facts and returns the newly inferred
// facts. facts are not modified.
func (p *Pipeline) Query(facts ...fact.Fact) ([]fact.Fact, error) {
	res, err := p.run(ModeQuery, fact.NewStore(facts...))
	if err != nil {
		return nil, err
	}
	return res.Inferred, nil
}

// QueryStore is Query over the facts of a store. The store is not modified.
func (p *Pipeline) QueryStore(s *fact.Store) ([]fact.Fact, error) {
	res, err := p.run(ModeQuery, s)
	if err != nil {
		return nil, err
	}
	return res.Inferred, nil
}

// Infer evaluates the rule set on its own axioms, or on the database content
// for a database-bound pipeline, and returns the newly inferred facts.
func (p *Pipeline) Infer() ([]fact.Fact, error) {
	var input *fact.Store
	if p.db != nil {
		input = p.db.store
	}
	res, err := p.run(ModeInfer, input)
	if err != nil {
		return nil, err
	}
	return res.Inferred, nil
}

// Evaluate is a read-only execution that returns the full result, including
// every known fact.
func (p *Pipeline) Evaluate(facts *fact.Store) (*eval.Result, error) {
	return p.run(ModeQuery, facts)
}

// Update evaluates the rule set over store and merges the axioms and the
// inferred facts into it, named facts in the field order store already uses.
// store is left untouched when evaluation fails.
func (p *Pipeline) Update(store *fact.Store) (*fact.Store, error) {
	if err := p.claim(ModeUpdate); err != nil {
		return nil, err
	}
	if store == nil {
		store = fact.NewStore()
	}
	res, err := p.run(ModeUpdate, store)
	if err != nil {
		return nil, err
	}
	store.AddAll(normalizeTo(store, p.merged(res)))
	p.mutated = ModeUpdate
	return store, nil
}

// Load evaluates the rule set over the bound database and merges the axioms
// and the inferred facts into it. It fails with IncompatibleFacts, before
// changing anything, if a merged fact conflicts with a relation shape the
// database already holds.
func (p *Pipeline) Load() (*Database, error) {
	if p.db == nil {
		return nil, fmt.Errorf("load needs a database-bound pipeline")
	}
	if err := p.claim(ModeLoad); err != nil {
		return nil, err
	}
	res, err := p.run(ModeLoad, p.db.store)
	if err != nil {
		return nil, err
	}
	merge := p.merged(res)
	if err := p.db.checkShapes(merge); err != nil {
		return nil, err
	}
	added := p.db.store.AddAll(p.db.normalizeAll(merge))
	p.mutated = ModeLoad
	p.engine.metrics.SetDatabaseFacts(p.db.store.Len())
	p.engine.log.Debug("database loaded",
		zap.Int("added", added),
		zap.Int("size", p.db.store.Len()))
	return p.db, nil
}

// claim refuses a mutating execution once one has succeeded.
func (p *Pipeline) claim(mode Mode) error {
	if p.mutated != "" {
		return nerr.New(nerr.AlreadyExecuted, "pipeline already executed %s; %s would apply its effects twice", p.mutated, mode)
	}
	return nil
}

// merged returns the non-transient axioms followed by the inferred facts.
func (p *Pipeline) merged(res *eval.Result) []fact.Fact {
	var out []fact.Fact
	for _, a := range p.rs.Axioms() {
		if !p.rs.IsTransient(a.Relation) {
			out = append(out, a)
		}
	}
	return append(out, res.Inferred...)
}

// queryFact builds the synthetic query fact from the parameters.
func (p *Pipeline) queryFact() (fact.Fact, bool) {
	if len(p.parms) == 0 {
		return fact.Fact{}, false
	}
	return fact.FromMap(rules.QueryRelation, p.parms), true
}

func (p *Pipeline) run(mode Mode, input *fact.Store) (*eval.Result, error) {
	runID := uuid.NewString()
	log := p.engine.log.With(zap.String("run_id", runID), zap.String("mode", string(mode)))
	start := time.Now()

	res, err := p.evaluate(runID, input)
	p.engine.metrics.ObserveEvaluation(string(mode), time.Since(start), res.passes(), res.derived(), err)
	if err != nil {
		log.Debug("pipeline failed", zap.Error(err))
		return nil, err
	}
	p.stats = res.Stats
	log.Debug("pipeline executed",
		zap.Int("inferred", len(res.Inferred)),
		zap.Int("passes", res.Stats.Passes),
		zap.Duration("duration", res.Stats.Duration))
	return res.Result, nil
}

// result adapts a possibly nil evaluation result for metrics.
type result struct {
	*eval.Result
}

func (r result) passes() int {
	if r.Result == nil {
		return 0
	}
	return r.Stats.Passes
}

func (r result) derived() int {
	if r.Result == nil {
		return 0
	}
	return len(r.Inferred)
}

func (p *Pipeline) evaluate(runID string, input *fact.Store) (result, error) {
	if p.schema != nil {
		if err := p.rs.OutputSchema().Check(p.schema); err != nil {
			return result{}, err
		}
	}

	if q, ok := p.queryFact(); ok {
		if input == nil {
			input = fact.NewStore()
		} else {
			input = input.Clone()
		}
		input.RemoveIf(func(f fact.Fact) bool { return f.Relation == rules.QueryRelation })
		input.Add(q)
	}

	opts := eval.Options{
		Logger:       p.engine.evalLog,
		Equivalences: p.engine.equivs,
		RunID:        runID,
		FactLimit:    p.engine.cfg.FactLimit,
	}
	if p.debug {
		opts.Tracer = p.tracer
		if opts.Tracer == nil {
			opts.Tracer = eval.NewZapTracer(p.engine.root.Named("trace").With(zap.String("run_id", runID)))
		}
	}
	res, err := eval.Evaluate(p.rs, input, opts)
	return result{res}, err
}
