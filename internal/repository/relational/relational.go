// Package relational stores references in a single SQL table, refs.
// The same statements serve PostgreSQL (pgx) and embedded SQLite (modernc);
// only placeholders and column defaults differ between the two dialects.
package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"refman/internal/database"
	"refman/internal/database/migration"
	"refman/internal/logger"
	"refman/internal/model"
	"refman/internal/repository"
)

const columns = "id, title, authors, year, notes, created_at"

// ReferenceStore is the SQL implementation of repository.ReferenceRepository.
// Listing and export are ordered by title, then id.
type ReferenceStore struct {
	db      *sql.DB
	dialect database.Dialect
	log     *slog.Logger

	qList   string
	qGet    string
	qInsert string
	qImport string
	qDelete string
}

var _ repository.ReferenceRepository = (*ReferenceStore)(nil)

// New ensures the refs table exists and returns a store bound to db.
// The caller keeps ownership of db.
func New(ctx context.Context, db *sql.DB, dialect database.Dialect) (*ReferenceStore, error) {
	if err := migration.EnsureSchema(ctx, db, dialect); err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrStorageUnavailable, err)
	}

	b := dialect.Bind
	values := fmt.Sprintf("(%s, %s, %s, %s, %s)", b(1), b(2), b(3), b(4), b(5))
	insert := "INSERT INTO refs (id, title, authors, year, notes) VALUES " + values + " ON CONFLICT (id) DO NOTHING"

	return &ReferenceStore{
		db:      db,
		dialect: dialect,
		log:     logger.WithComponent("relational").With(slog.String("dialect", string(dialect))),
		qList:   "SELECT " + columns + " FROM refs ORDER BY title, id",
		qGet:    "SELECT " + columns + " FROM refs WHERE id = " + b(1),
		qInsert: insert + " RETURNING " + columns,
		qImport: insert,
		qDelete: "DELETE FROM refs WHERE id = " + b(1),
	}, nil
}

// ListAll returns all references ordered by title.
func (s *ReferenceStore) ListAll(ctx context.Context) ([]model.Reference, error) {
	rows, err := s.db.QueryContext(ctx, s.qList)
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	defer rows.Close()

	refs := make([]model.Reference, 0)
	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, err
		}
		refs = append(refs, *ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs, nil
}

// Get returns the reference with id, or nil when it does not exist.
func (s *ReferenceStore) Get(ctx context.Context, id string) (*model.Reference, error) {
	ref, err := scanReference(s.db.QueryRowContext(ctx, s.qGet, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ref %s: %w", id, err)
	}
	return ref, nil
}

// Add inserts ref, generating an id when it has none.
// A caller-supplied id that already exists yields repository.ErrDuplicateID.
func (s *ReferenceStore) Add(ctx context.Context, ref model.Reference) (*model.Reference, error) {
	id := repository.EnsureID(ref.ID)
	out, err := scanReference(s.db.QueryRowContext(ctx, s.qInsert, insertArgs(id, ref)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", repository.ErrDuplicateID, id)
	}
	if err != nil {
		return nil, fmt.Errorf("insert ref: %w", err)
	}
	return out, nil
}

// Update sets only the fields present in changes.
func (s *ReferenceStore) Update(ctx context.Context, id string, changes model.ReferenceChanges) (*model.Reference, error) {
	if changes.IsEmpty() {
		return s.Get(ctx, id)
	}

	query, args := s.buildUpdate(id, changes)
	ref, err := scanReference(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update ref %s: %w", id, err)
	}
	return ref, nil
}

func (s *ReferenceStore) buildUpdate(id string, c model.ReferenceChanges) (string, []any) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = "+s.dialect.Bind(len(args)))
	}
	if c.Title != nil {
		add("title", *c.Title)
	}
	if c.Authors != nil {
		add("authors", *c.Authors)
	}
	if c.Year != nil {
		add("year", *c.Year)
	}
	if c.Notes != nil {
		add("notes", *c.Notes)
	}
	args = append(args, id)
	query := "UPDATE refs SET " + strings.Join(sets, ", ") +
		" WHERE id = " + s.dialect.Bind(len(args)) +
		" RETURNING " + columns
	return query, args
}

// Delete removes the row and reports whether it existed.
func (s *ReferenceStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.qDelete, id)
	if err != nil {
		return false, fmt.Errorf("delete ref %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete ref %s: %w", id, err)
	}
	return n > 0, nil
}

// ImportBulk inserts entries in one transaction. Rows whose id already exists,
// including earlier rows of the same batch, are skipped. Without merge the table
// is emptied first. On any error nothing is committed.
func (s *ReferenceStore) ImportBulk(ctx context.Context, entries []model.Reference, merge bool) (n int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if !merge {
		if _, err = tx.ExecContext(ctx, "DELETE FROM refs"); err != nil {
			return 0, fmt.Errorf("clear refs: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, s.qImport)
	if err != nil {
		return 0, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, e := range entries {
		res, execErr := stmt.ExecContext(ctx, insertArgs(repository.EnsureID(e.ID), e)...)
		if execErr != nil {
			err = fmt.Errorf("import ref %q: %w", e.ID, execErr)
			return 0, err
		}
		affected, raErr := res.RowsAffected()
		if raErr != nil {
			err = fmt.Errorf("import ref %q: %w", e.ID, raErr)
			return 0, err
		}
		added += int(affected)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	s.log.Info("bulk import", slog.Bool("merge", merge), slog.Int("added", added), slog.Int("incoming", len(entries)))
	return added, nil
}

// ExportAll writes every row to w in the import document format.
func (s *ReferenceStore) ExportAll(ctx context.Context, w io.Writer) (int, error) {
	refs, err := s.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	return model.EncodeReferences(w, refs)
}

func insertArgs(id string, ref model.Reference) []any {
	var year sql.NullInt64
	if ref.Year != nil {
		year = sql.NullInt64{Int64: int64(*ref.Year), Valid: true}
	}
	return []any{id, ref.Title, ref.Authors, year, ref.Notes}
}
