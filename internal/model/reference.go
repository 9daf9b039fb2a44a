package model

import (
	"encoding/json"
	"errors"
	"maps"
	"time"
)

// ErrTitleRequired is returned when a reference is created without a title.
var ErrTitleRequired = errors.New("title is required")

// Reference is one bibliographic entry in the library.
// It carries no persistence details; each repository maps it to its own storage shape.
type Reference struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Authors string `json:"authors"`
	Year    *int   `json:"year"`
	Notes   string `json:"notes"`
	// CreatedAt is filled by storage engines that stamp rows on insert.
	CreatedAt *time.Time `json:"created_at,omitempty"`
	// Extra holds caller-supplied keys outside the known field set.
	// Only the flat-file backend persists them.
	Extra map[string]json.RawMessage `json:"-"`
}

// Clone returns a deep copy so callers can mutate the result without touching stored state.
func (r Reference) Clone() Reference {
	out := r
	if r.Year != nil {
		y := *r.Year
		out.Year = &y
	}
	if r.CreatedAt != nil {
		t := *r.CreatedAt
		out.CreatedAt = &t
	}
	if r.Extra != nil {
		out.Extra = maps.Clone(r.Extra)
	}
	return out
}

// IntPtr is a small helper for building optional year values.
func IntPtr(v int) *int { return &v }

// StringPtr is a small helper for building change sets.
func StringPtr(v string) *string { return &v }
