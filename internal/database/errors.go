package database

import "errors"

var (
	// ErrRunNotFound is returned when no saved run matches an id.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousRunID is returned when an id prefix matches more than one run.
	ErrAmbiguousRunID = errors.New("run id prefix matches more than one run")

	// ErrDatabaseNotFound is returned by Open when the file is missing and
	// CreateIfNotExists is false.
	ErrDatabaseNotFound = errors.New("database not found")
)
