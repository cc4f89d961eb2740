package domain

import "errors"

var (
	// ErrSessionNotFound is returned when an evaluation session has not been initialized.
	ErrSessionNotFound = errors.New("evaluation session not found")
	// ErrEvaluatorNotFound is returned when an evaluator acts before joining.
	ErrEvaluatorNotFound = errors.New("evaluator not found in session")
	// ErrItemNotFound indicates a rubric item ID is unknown.
	ErrItemNotFound = errors.New("rubric item not found")
	// ErrCriterionNotFound indicates a criterion ID is unknown.
	ErrCriterionNotFound = errors.New("criterion not found")
	// ErrUnknownCategory indicates a category outside the fixed enumeration.
	ErrUnknownCategory = errors.New("unknown rubric category")
	// ErrInvalidLevel is returned for rating levels outside 0..4.
	ErrInvalidLevel = errors.New("rating level out of range")
	// ErrUnknownEntity is returned when a rating write addresses an entity
	// the rating is not keyed by (wrong mode or unknown presenter).
	ErrUnknownEntity = errors.New("entity not rated by this criterion")
	// ErrInvalidField indicates an unsupported criterion field name.
	ErrInvalidField = errors.New("unknown criterion field")
)
