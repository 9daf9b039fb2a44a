// Package repository contains data access layer abstractions.
// Implementations live in subpackages (jsonfile, relational) inside this directory.
package repository

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrStorageUnavailable wraps failures to open or reach the backing file or database.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrDuplicateID is returned by Add when the caller supplies an id that is already stored.
	ErrDuplicateID = errors.New("reference id already exists")
)

// NewID returns a fresh reference id. Tests may replace it for deterministic ids.
var NewID = uuid.NewString

// EnsureID fills in an id when the caller left it empty.
func EnsureID(id string) string {
	if id == "" {
		return NewID()
	}
	return id
}
