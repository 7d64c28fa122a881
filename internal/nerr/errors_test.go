package nerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{New(SyntaxError, "1:2: expected %s", "';'"), "SyntaxError: 1:2: expected ';'"},
		{ForRelation(ShapeMismatch, "Edge", "arity 3"), "ShapeMismatch [Edge]: arity 3"},
		{ForVariable(UnboundVariable, "Reach", "z", "z is unbound"), "UnboundVariable [Reach]: z is unbound"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestIsError_Wrapped(t *testing.T) {
	err := fmt.Errorf("load script: %w", ForRelation(IncompatibleFacts, "A", "conflict"))

	if !IsError(IncompatibleFacts, err) {
		t.Error("wrapped code not found")
	}
	if IsError(ShapeMismatch, err) {
		t.Error("matched the wrong code")
	}
	if IsError(SyntaxError, nil) {
		t.Error("nil error matched")
	}
	if got := CodeOf(err); got != IncompatibleFacts {
		t.Errorf("CodeOf() = %q", got)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q", got)
	}

	var e *Error
	if !errors.As(err, &e) || e.Relation != "A" {
		t.Errorf("errors.As() relation = %v", e)
	}
}
