// Package nero is the evaluation context around the rule engine. An Engine
// owns the equivalence registry, logger and metrics; it hands out Pipelines
// that apply a RuleSet to facts and Databases that hold facts between runs.
package nero

import (
	"go.uber.org/zap"

	"nero/internal/config"
	"nero/internal/equiv"
	"nero/internal/fact"
	"nero/internal/logging"
	"nero/internal/metrics"
	"nero/internal/rules"
	"nero/internal/script"
)

// Engine is one evaluation context. Engines are independent: equivalences
// registered on one are invisible to another. An Engine is not safe for
// concurrent use.
type Engine struct {
	equivs  *equiv.Registry
	root    *zap.Logger
	log     *zap.Logger
	evalLog *zap.Logger
	metrics *metrics.Metrics
	cfg     config.EngineConfig
	logCfg  config.LoggingConfig
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the root logger. Category loggers are derived from it
// according to the logging config.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.root = logging.OrNop(l) }
}

// WithLoggingConfig sets which log categories are enabled.
func WithLoggingConfig(cfg config.LoggingConfig) Option {
	return func(e *Engine) { e.logCfg = cfg }
}

// WithMetrics records pipeline executions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithConfig applies engine settings.
func WithConfig(cfg config.EngineConfig) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// New returns an engine. Unless configured otherwise it starts with the
// standard equivalences registered.
func New(opts ...Option) *Engine {
	e := &Engine{
		root: zap.NewNop(),
		cfg:  config.DefaultConfig().Engine,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.equivs = equiv.NewRegistry()
	if e.cfg.StandardEquivalences {
		for _, eq := range equiv.Standard() {
			e.equivs.Register(eq)
		}
	}
	e.log = logging.For(e.root, e.logCfg, logging.CategoryPipeline)
	e.evalLog = logging.For(e.root, e.logCfg, logging.CategoryEval)
	return e
}

// AddEquivalence registers or replaces an equivalence.
func (e *Engine) AddEquivalence(eq equiv.Equivalence) {
	e.equivs.Register(eq)
	e.log.Debug("equivalence registered", zap.String("keyword", eq.Keyword))
}

// Equivalences returns the registered equivalence keywords, sorted.
func (e *Engine) Equivalences() []string {
	return e.equivs.Keywords()
}

// Parse reads a Nero script into a rule set.
func (e *Engine) Parse(src string) (*rules.RuleSet, error) {
	return script.Parse(src)
}

// With returns a pipeline that applies rs.
func (e *Engine) With(rs *rules.RuleSet) *Pipeline {
	return newPipeline(e, rs, nil)
}

// NewDatabase returns a database holding facts.
func (e *Engine) NewDatabase(facts ...fact.Fact) (*Database, error) {
	db := &Database{engine: e, store: fact.NewStore()}
	if err := db.AddFacts(facts...); err != nil {
		return nil, err
	}
	return db, nil
}
