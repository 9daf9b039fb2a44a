package model

// Field names as they appear in import/export documents.
const (
	FieldID      = "id"
	FieldTitle   = "title"
	FieldAuthors = "authors"
	FieldYear    = "year"
	FieldNotes   = "notes"
	FieldCreated = "created_at"
)

// ReferenceChanges is a partial update. A nil slot leaves the stored value untouched.
// The id is deliberately not part of the set: ids never change after creation.
type ReferenceChanges struct {
	Title   *string `json:"title,omitempty"`
	Authors *string `json:"authors,omitempty"`
	Year    *int    `json:"year,omitempty"`
	Notes   *string `json:"notes,omitempty"`
}

// IsEmpty reports whether no field is set.
func (c ReferenceChanges) IsEmpty() bool {
	return c.Title == nil && c.Authors == nil && c.Year == nil && c.Notes == nil
}

// Fields returns the names of the set fields in a stable order.
func (c ReferenceChanges) Fields() []string {
	fields := make([]string, 0, 4)
	if c.Title != nil {
		fields = append(fields, FieldTitle)
	}
	if c.Authors != nil {
		fields = append(fields, FieldAuthors)
	}
	if c.Year != nil {
		fields = append(fields, FieldYear)
	}
	if c.Notes != nil {
		fields = append(fields, FieldNotes)
	}
	return fields
}

// Apply writes the set fields onto ref.
func (c ReferenceChanges) Apply(ref *Reference) {
	if c.Title != nil {
		ref.Title = *c.Title
	}
	if c.Authors != nil {
		ref.Authors = *c.Authors
	}
	if c.Year != nil {
		y := *c.Year
		ref.Year = &y
	}
	if c.Notes != nil {
		ref.Notes = *c.Notes
	}
}
