// Package nero is the public face of the engine. It re-exports the types and
// constructors of the internal packages so that code outside this module can
// build rule sets, evaluate them and hold facts in a database.
package nero

import (
	"nero/internal/equiv"
	"nero/internal/eval"
	"nero/internal/fact"
	"nero/internal/nero"
	"nero/internal/nerr"
	"nero/internal/rules"
	"nero/internal/script"
)

// Re-export the evaluation context
type Engine = nero.Engine
type Option = nero.Option
type Pipeline = nero.Pipeline
type Database = nero.Database

var New = nero.New
var WithLogger = nero.WithLogger
var WithLoggingConfig = nero.WithLoggingConfig
var WithMetrics = nero.WithMetrics
var WithConfig = nero.WithConfig

// Re-export the data model
type Fact = fact.Fact
type Value = fact.Value
type Shape = fact.Shape
type Store = fact.Store

type (
	Null    = fact.Null
	Bool    = fact.Bool
	Int     = fact.Int
	Float   = fact.Float
	String  = fact.String
	Keyword = fact.Keyword
	List    = fact.List
	Map     = fact.Map
)

var NewFact = fact.New
var NewNamedFact = fact.NewNamed
var FactFromMap = fact.FromMap
var NewStore = fact.NewStore
var FromGo = fact.FromGo
var ToGo = fact.ToGo

// Re-export rules
type RuleSet = rules.RuleSet
type Builder = rules.Builder
type Rule = rules.Rule
type Atom = rules.Atom
type Schema = rules.Schema

var NewBuilder = rules.NewBuilder

// Re-export equivalences
type Equivalence = equiv.Equivalence
type Converter = equiv.Converter

// Re-export evaluation results and tracing
type Result = eval.Result
type Stats = eval.Stats
type Tracer = eval.Tracer
type Recorder = eval.Recorder

// Re-export errors
type Error = nerr.Error
type Code = nerr.Code

var IsError = nerr.IsError

// Parse reads a Nero script into a rule set.
func Parse(src string) (*RuleSet, error) { return script.Parse(src) }

// ParseSchema reads define declarations into a schema.
func ParseSchema(src string) (Schema, error) { return script.ParseSchema(src) }

// MapFacts applies fn to every fact of db.
func MapFacts[T any](db *Database, fn func(Fact) T) []T { return nero.Map(db, fn) }

// Error codes
const (
	ShapeMismatch           = nerr.ShapeMismatch
	UnboundVariable         = nerr.UnboundVariable
	WildcardInHead          = nerr.WildcardInHead
	VariableInAxiom         = nerr.VariableInAxiom
	MultipleAggregates      = nerr.MultipleAggregates
	AggregateVariableReused = nerr.AggregateVariableReused
	BuiltinUnboundArgument  = nerr.BuiltinUnboundArgument
	BuiltinArity            = nerr.BuiltinArity
	ReservedName            = nerr.ReservedName
	UnknownAggregate        = nerr.UnknownAggregate
	SyntaxError             = nerr.SyntaxError
	NotStratified           = nerr.NotStratified
	UnknownEquivalence      = nerr.UnknownEquivalence
	IncompatibleFacts       = nerr.IncompatibleFacts
	SchemaMismatch          = nerr.SchemaMismatch
	UnrepresentableTerm     = nerr.UnrepresentableTerm
	AlreadyExecuted         = nerr.AlreadyExecuted
)
