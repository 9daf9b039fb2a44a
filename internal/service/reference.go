package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"refman/internal/logger"
	"refman/internal/model"
	"refman/internal/repository"
	"refman/internal/storage"
)

var (
	ErrIDRequired        = errors.New("id is required")
	ErrInvalidImportMode = errors.New("import mode must be merge or overwrite")
)

var tracer = otel.Tracer("refman/internal/service")

// UpdatedReference is the post-update record plus the previous value of every
// field the update touched. The _old_ keys are never persisted.
type UpdatedReference struct {
	model.Reference
	OldTitle   *string    `json:"_old_title,omitempty"`
	OldAuthors *string    `json:"_old_authors,omitempty"`
	OldYear    *PriorYear `json:"_old_year,omitempty"`
	OldNotes   *string    `json:"_old_notes,omitempty"`
}

// PriorYear is the year a record held before an update. A record that had no
// year still gets a shadow, encoded as null.
type PriorYear struct {
	Year *int
}

func (p PriorYear) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Year)
}

// ReferenceService defines the use cases of the reference library.
// It works against any repository.ReferenceRepository and keeps no state of its own.
type ReferenceService interface {
	// List returns every reference in the repository's native order.
	List(ctx context.Context) ([]model.Reference, error)

	// Get returns a reference by id, or nil when it does not exist.
	Get(ctx context.Context, id string) (*model.Reference, error)

	// Add stores a new reference. Title is required; the id is generated when empty.
	Add(ctx context.Context, ref model.Reference) (*model.Reference, error)

	// UpdateReference applies changes and reports the old value of each changed field.
	// Returns nil when id does not exist.
	UpdateReference(ctx context.Context, id string, changes model.ReferenceChanges) (*UpdatedReference, error)

	// Delete removes a reference and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)

	// Search returns references whose "title authors notes" contains query, ignoring case.
	Search(ctx context.Context, query string) ([]model.Reference, error)

	// Import validates the whole document from src, then loads it with the given mode.
	Import(ctx context.Context, src io.Reader, mode ImportMode) (ImportResult, error)

	// ImportFile is Import reading from a local file.
	ImportFile(ctx context.Context, path string, mode ImportMode) (ImportResult, error)

	// Export writes every reference to w and returns the count.
	Export(ctx context.Context, w io.Writer) (int, error)

	// ExportFile writes every reference to path, creating parent dirs and replacing any existing file.
	ExportFile(ctx context.Context, path string) (int, error)

	// Backup stores a full export in object storage under key.
	Backup(ctx context.Context, key string) (*BackupInfo, error)

	// Restore imports a backup previously written by Backup.
	Restore(ctx context.Context, key string, mode ImportMode) (ImportResult, error)

	// ListBackups returns the stored backups.
	ListBackups(ctx context.Context) ([]BackupInfo, error)

	// DeleteBackup removes a stored backup.
	DeleteBackup(ctx context.Context, key string) error
}

type referenceService struct {
	store storage.Storage
	repo  repository.ReferenceRepository
	log   *slog.Logger
}

// NewReferenceService constructs a ReferenceService. store may be nil, which disables backups.
func NewReferenceService(store storage.Storage, repo repository.ReferenceRepository) ReferenceService {
	return &referenceService{store: store, repo: repo, log: logger.WithComponent("service")}
}

func (s *referenceService) List(ctx context.Context) ([]model.Reference, error) {
	ctx, span := tracer.Start(ctx, "ReferenceService.List")
	defer span.End()

	refs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.Int("refman.count", len(refs)))
	return refs, nil
}

func (s *referenceService) Get(ctx context.Context, id string) (*model.Reference, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	ctx, span := tracer.Start(ctx, "ReferenceService.Get", trace.WithAttributes(attribute.String("refman.id", id)))
	defer span.End()

	ref, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	return ref, nil
}

func (s *referenceService) Add(ctx context.Context, ref model.Reference) (*model.Reference, error) {
	if strings.TrimSpace(ref.Title) == "" {
		return nil, model.ErrTitleRequired
	}
	ctx, span := tracer.Start(ctx, "ReferenceService.Add")
	defer span.End()

	stored, err := s.repo.Add(ctx, ref)
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.String("refman.id", stored.ID))
	logger.WithOperation(s.log, "add").Debug("reference added", slog.String("id", stored.ID))
	return stored, nil
}

func (s *referenceService) UpdateReference(ctx context.Context, id string, changes model.ReferenceChanges) (*UpdatedReference, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if changes.Title != nil && strings.TrimSpace(*changes.Title) == "" {
		return nil, model.ErrTitleRequired
	}
	ctx, span := tracer.Start(ctx, "ReferenceService.UpdateReference", trace.WithAttributes(
		attribute.String("refman.id", id),
		attribute.StringSlice("refman.fields", changes.Fields()),
	))
	defer span.End()

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	if current == nil {
		return nil, nil
	}

	updated, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		return nil, fail(span, err)
	}
	if updated == nil {
		// Removed between the two calls.
		return nil, nil
	}

	out := &UpdatedReference{Reference: *updated}
	if changes.Title != nil {
		out.OldTitle = model.StringPtr(current.Title)
	}
	if changes.Authors != nil {
		out.OldAuthors = model.StringPtr(current.Authors)
	}
	if changes.Year != nil {
		prev := &PriorYear{}
		if current.Year != nil {
			prev.Year = model.IntPtr(*current.Year)
		}
		out.OldYear = prev
	}
	if changes.Notes != nil {
		out.OldNotes = model.StringPtr(current.Notes)
	}
	return out, nil
}

func (s *referenceService) Delete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, ErrIDRequired
	}
	ctx, span := tracer.Start(ctx, "ReferenceService.Delete", trace.WithAttributes(attribute.String("refman.id", id)))
	defer span.End()

	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, fail(span, err)
	}
	if ok {
		logger.WithOperation(s.log, "delete").Debug("reference deleted", slog.String("id", id))
	}
	return ok, nil
}

func (s *referenceService) Search(ctx context.Context, query string) ([]model.Reference, error) {
	ctx, span := tracer.Start(ctx, "ReferenceService.Search")
	defer span.End()

	refs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fail(span, err)
	}

	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Reference, 0, len(refs))
	for _, r := range refs {
		if Matches(r, q) {
			out = append(out, r)
		}
	}
	span.SetAttributes(attribute.Int("refman.matches", len(out)))
	return out, nil
}

// Matches reports whether the lowercased query q is a substring of
// the record's title, authors and notes joined by single spaces.
func Matches(r model.Reference, q string) bool {
	hay := strings.ToLower(r.Title + " " + r.Authors + " " + r.Notes)
	return strings.Contains(hay, q)
}

// fail marks the span as failed and returns err unchanged.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func wrapf(err error, format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, err)...)
}
