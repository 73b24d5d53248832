package core

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable marks failures to reach the persistent store.
// Adapters wrap connectivity errors with it; callers decide whether to retry.
var ErrStoreUnavailable = errors.New("store unavailable")

// ConfigurationError reports an invalid static configuration, such as two
// dimension specs sharing a name. It is fatal before any stage runs.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// CastError reports a source value that could not be parsed as its declared type.
// The projection recovers from it by storing null.
type CastError struct {
	Field string
	Value string
	Type  DataType
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cannot cast %q to %s in field %s", e.Value, e.Type, e.Field)
}

// ConstraintViolationError reports a failed primary key, uniqueness or
// foreign key statement.
type ConstraintViolationError struct {
	Table      string
	Constraint string
	Err        error
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("constraint %s on %s: %v", e.Constraint, e.Table, e.Err)
}

func (e *ConstraintViolationError) Unwrap() error {
	return e.Err
}

// JoinCardinalityError reports a key resolution whose output row count does
// not match its input. It always indicates a bug or corrupt dimension.
type JoinCardinalityError struct {
	Dimension string
	Input     int
	Output    int
	Reason    string
}

func (e *JoinCardinalityError) Error() string {
	msg := fmt.Sprintf("join cardinality violated resolving %s: %d input rows, %d output rows", e.Dimension, e.Input, e.Output)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// Stage names a pipeline step for error and run reporting.
type Stage string

// Pipeline stages.
const (
	StageMaterialize Stage = "materialize"
	StageConstraint  Stage = "constraint"
	StageSchema      Stage = "schema"
	StageResolve     Stage = "resolve"
	StageLoad        Stage = "load"
)

// StageError attaches the failing entity and stage to an error so the
// entity can be identified and rerun on its own.
type StageError struct {
	Entity string
	Stage  Stage
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Entity, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
