package repository

import (
	"context"
	"io"

	"refman/internal/model"
)

// ReferenceRepository defines data access for references.
// No business logic here, strictly persistence operations.
// A miss is never an error: Get and Update return a nil record, Delete returns false.
type ReferenceRepository interface {
	// ListAll returns every stored reference. Ordering is backend-defined.
	ListAll(ctx context.Context) ([]model.Reference, error)

	// Get returns the reference with the exact id, or nil when there is none.
	Get(ctx context.Context, id string) (*model.Reference, error)

	// Add stores ref, generating an id when ref.ID is empty, and returns the stored record.
	Add(ctx context.Context, ref model.Reference) (*model.Reference, error)

	// Update applies only the set fields of changes and returns the updated record,
	// or nil when id does not exist. Empty changes return the current record untouched.
	Update(ctx context.Context, id string, changes model.ReferenceChanges) (*model.Reference, error)

	// Delete removes the record and reports whether one was removed.
	Delete(ctx context.Context, id string) (bool, error)

	// ImportBulk inserts entries, skipping any whose id is already present.
	// When merge is false the existing records are discarded first.
	// Returns the number of inserted entries.
	ImportBulk(ctx context.Context, entries []model.Reference, merge bool) (int, error)

	// ExportAll writes every record in the import document format and returns the count written.
	ExportAll(ctx context.Context, w io.Writer) (int, error)
}
