package models

import "errors"

// Fatal error conditions. Everything else in the taxonomy (parse failures,
// unresolved references) degrades results but never aborts a run.
var (
	// ErrNoInput means zero source files were found under the given path.
	ErrNoInput = errors.New("no source files found")

	// ErrInvalidConfiguration means the configuration was rejected before
	// analysis started.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
