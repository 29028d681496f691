// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// release engine and the handlers to distinguish between different failure
// scenarios.
package repository

import "errors"

// ErrNotFound is returned when a row addressed by primary key does not
// exist.  Callers translate it into a 404 or a failed booking result.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write was rejected because the row was no
// longer in the state the caller expected.
var ErrConflict = errors.New("conflict")
