// Package nerr defines the error taxonomy shared by the Nero engine packages.
//
// Every failure the engine reports carries a Code. Callers test for a class of
// failure with errors.Is against the exported Code values:
//
//	if errors.Is(err, nerr.UnboundVariable) { ... }
package nerr

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies an engine error.
type Code string

// Error makes a Code usable as an errors.Is target.
func (c Code) Error() string { return string(c) }

// Construction-time codes. A rule set that fails with one of these is unusable.
const (
	ShapeMismatch           Code = "ShapeMismatch"
	UnboundVariable         Code = "UnboundVariable"
	WildcardInHead          Code = "WildcardInHead"
	VariableInAxiom         Code = "VariableInAxiom"
	MultipleAggregates      Code = "MultipleAggregates"
	AggregateVariableReused Code = "AggregateVariableReused"
	BuiltinUnboundArgument  Code = "BuiltinUnboundArgument"
	BuiltinArity            Code = "BuiltinArity"
	ReservedName            Code = "ReservedName"
	UnknownAggregate        Code = "UnknownAggregate"
	SyntaxError             Code = "SyntaxError"
)

// Evaluation-time codes, detected per pipeline invocation.
const (
	NotStratified       Code = "NotStratified"
	UnknownEquivalence  Code = "UnknownEquivalence"
	IncompatibleFacts   Code = "IncompatibleFacts"
	SchemaMismatch      Code = "SchemaMismatch"
	UnrepresentableTerm Code = "UnrepresentableTerm"
	AlreadyExecuted     Code = "AlreadyExecuted"
)

// Error is a single engine failure.
type Error struct {
	Code     Code   `json:"code"`
	Relation string `json:"relation,omitempty"`
	Variable string `json:"variable,omitempty"`
	Detail   string `json:"detail"`
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	if e.Relation != "" {
		sb.WriteString(" [")
		sb.WriteString(e.Relation)
		sb.WriteString("]")
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

// Is reports whether target is this error's Code.
func (e *Error) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.Code
}

// New returns an Error with a formatted detail message.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// ForRelation returns an Error attributed to a relation.
func ForRelation(code Code, relation, format string, args ...interface{}) *Error {
	return &Error{Code: code, Relation: relation, Detail: fmt.Sprintf(format, args...)}
}

// ForVariable returns an Error attributed to a variable within a relation's atom.
func ForVariable(code Code, relation, variable, format string, args ...interface{}) *Error {
	return &Error{Code: code, Relation: relation, Variable: variable, Detail: fmt.Sprintf(format, args...)}
}

// IsError returns true if err is, or wraps, an engine error with the given code.
func IsError(code Code, err error) bool {
	return errors.Is(err, code)
}

// CodeOf returns the code of the first engine error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
