package rules

import (
	"fmt"

	"github.com/specialistvlad/cipipe/internal/failure"
)

// SyntaxError is returned when a rule cannot be parsed.
type SyntaxError struct {
	Source string
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("rule %q: syntax error: %v", e.Source, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// FailureKind classifies rule errors as configuration problems.
func (e *SyntaxError) FailureKind() failure.Kind { return failure.KindConfig }

// DisallowedNodeError is returned when a rule uses a construct outside the
// rule grammar, e.g. arithmetic or a conditional expression.
type DisallowedNodeError struct {
	Source string
	// Node is the name of the offending syntax node, e.g. "BinaryNode".
	Node string
	// Operator is set for operator nodes.
	Operator string
}

func (e *DisallowedNodeError) Error() string {
	if e.Operator != "" {
		return fmt.Sprintf("rule %q: it is not allowed to use %s (operator '%s') in rules", e.Source, e.Node, e.Operator)
	}
	return fmt.Sprintf("rule %q: it is not allowed to use %s in rules", e.Source, e.Node)
}

func (e *DisallowedNodeError) FailureKind() failure.Kind { return failure.KindConfig }

// UnknownVariableError is returned when a rule references a name the
// evaluation context does not define.
type UnknownVariableError struct {
	Source string
	Name   string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("rule %q: unknown variable '%s'", e.Source, e.Name)
}

func (e *UnknownVariableError) FailureKind() failure.Kind { return failure.KindConfig }

// EvaluationError wraps a failure raised while running a compiled rule.
type EvaluationError struct {
	Source string
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("rule %q: evaluation failed: %v", e.Source, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

func (e *EvaluationError) FailureKind() failure.Kind { return failure.KindConfig }
