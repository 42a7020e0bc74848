// Package dferrors defines the three error kinds the transform engine can
// raise: PlanError (static validation, before any operator runs), EvalError
// (runtime arithmetic/cast failures), and IngestError (malformed plan bytes
// at the codec boundary). The shapes follow rsql.ParseError's structured
// style from the teacher repo, trimmed to what the engine actually needs.
package dferrors

import "fmt"

// PlanErrorKind enumerates the ways a DataFrameTransform can fail static
// validation.
type PlanErrorKind int

const (
	UnknownField PlanErrorKind = iota
	DuplicateAlias
	TypeMismatch
	WrongPreBinnedType
	MultipleBinningKeys
	MissingStats
	InvalidAggregateDistinct
)

func (k PlanErrorKind) String() string {
	switch k {
	case UnknownField:
		return "UnknownField"
	case DuplicateAlias:
		return "DuplicateAlias"
	case TypeMismatch:
		return "TypeMismatch"
	case WrongPreBinnedType:
		return "WrongPreBinnedType"
	case MultipleBinningKeys:
		return "MultipleBinningKeys"
	case MissingStats:
		return "MissingStats"
	case InvalidAggregateDistinct:
		return "InvalidAggregateDistinct"
	default:
		return "Unknown"
	}
}

// PlanError reports a plan that failed validation before execution began.
type PlanError struct {
	Kind    PlanErrorKind
	Stage   string // the compiler stage that detected the problem, e.g. "group_by"
	Field   string // the field/alias involved, if any
	Message string
}

func (e *PlanError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("plan error [%s] in stage %q, field %q: %s", e.Kind, e.Stage, e.Field, e.Message)
	}
	return fmt.Sprintf("plan error [%s] in stage %q: %s", e.Kind, e.Stage, e.Message)
}

// NewPlanError builds a PlanError.
func NewPlanError(kind PlanErrorKind, stage, field, message string) *PlanError {
	return &PlanError{Kind: kind, Stage: stage, Field: field, Message: message}
}

// EvalError reports a runtime failure while evaluating an expression:
// arithmetic overflow under an explicit cast, division by zero not caught
// by the width-derivation guard, or Decimal256->Decimal128 narrowing
// overflow.
type EvalError struct {
	Op      string
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("eval error in %q: %s", e.Op, e.Message)
}

// NewEvalError builds an EvalError.
func NewEvalError(op, message string) *EvalError {
	return &EvalError{Op: op, Message: message}
}

// IngestError reports malformed plan or statistics bytes at the codec
// boundary, before the plan even reaches validation.
type IngestError struct {
	Message string
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest error: %s", e.Message)
}

// NewIngestError builds an IngestError.
func NewIngestError(message string) *IngestError {
	return &IngestError{Message: message}
}
