package feature

import "errors"

// Sentinel errors for registry operations.
var (
	// ErrUnknownFeature indicates a name no registered feature answers to.
	ErrUnknownFeature = errors.New("unknown feature")

	// ErrDuplicateFeature indicates the name is already registered.
	ErrDuplicateFeature = errors.New("feature already registered")

	// ErrNilFeature indicates a nil feature was passed to Register.
	ErrNilFeature = errors.New("feature is nil")

	// ErrEmptyName indicates a feature with an empty name.
	ErrEmptyName = errors.New("feature name is empty")
)
