// Package jsonfile stores the whole reference library as one JSON array in a single file.
//
// Every mutation reads the entire file, changes the in-memory slice and rewrites the file.
// The rewrite goes through a temp file and a rename, so one call never leaves a half-written
// library behind. Writers inside one process are serialized; two processes writing the
// same file are not arbitrated.
package jsonfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"refman/internal/logger"
	"refman/internal/model"
	"refman/internal/repository"
)

// ReferenceFile is the flat-file implementation of repository.ReferenceRepository.
// Records are kept in insertion order.
type ReferenceFile struct {
	path string
	log  *slog.Logger

	// mu is held across read-modify-write so concurrent mutations in this process do not lose updates.
	mu sync.Mutex
}

var _ repository.ReferenceRepository = (*ReferenceFile)(nil)

// New opens the library at path, creating parent directories and an empty
// library file when they do not exist yet.
func New(path string) (*ReferenceFile, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("library path is required")
	}
	r := &ReferenceFile{
		path: path,
		log:  logger.WithComponent("jsonfile").With(slog.String("path", path)),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create library dir: %w", repository.ErrStorageUnavailable, err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := r.write(nil); err != nil {
			return nil, err
		}
		r.log.Info("created empty library")
	} else if err != nil {
		return nil, fmt.Errorf("%w: stat library: %w", repository.ErrStorageUnavailable, err)
	}
	return r, nil
}

// Path returns the backing file location.
func (r *ReferenceFile) Path() string { return r.path }

// PingContext checks the backing file is still readable.
func (r *ReferenceFile) PingContext(_ context.Context) error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("%w: %w", repository.ErrStorageUnavailable, err)
	}
	return f.Close()
}

// ListAll returns all references in insertion order.
func (r *ReferenceFile) ListAll(_ context.Context) ([]model.Reference, error) {
	return r.read()
}

// Get returns the reference with the given id, or nil.
func (r *ReferenceFile) Get(_ context.Context, id string) (*model.Reference, error) {
	items, err := r.read()
	if err != nil {
		return nil, err
	}
	if i := indexOf(items, id); i >= 0 {
		ref := items[i]
		return &ref, nil
	}
	return nil, nil
}

// Add appends ref, generating an id when it has none.
func (r *ReferenceFile) Add(_ context.Context, ref model.Reference) (*model.Reference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.read()
	if err != nil {
		return nil, err
	}
	ref = ref.Clone()
	ref.ID = repository.EnsureID(ref.ID)
	if indexOf(items, ref.ID) >= 0 {
		return nil, fmt.Errorf("%w: %s", repository.ErrDuplicateID, ref.ID)
	}

	items = append(items, ref)
	if err := r.write(items); err != nil {
		return nil, err
	}
	out := ref.Clone()
	return &out, nil
}

// Update applies the set fields of changes to the stored record.
func (r *ReferenceFile) Update(_ context.Context, id string, changes model.ReferenceChanges) (*model.Reference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.read()
	if err != nil {
		return nil, err
	}
	i := indexOf(items, id)
	if i < 0 {
		return nil, nil
	}
	if changes.IsEmpty() {
		ref := items[i]
		return &ref, nil
	}

	changes.Apply(&items[i])
	items[i].ID = id
	if err := r.write(items); err != nil {
		return nil, err
	}
	out := items[i].Clone()
	return &out, nil
}

// Delete removes the record with id and reports whether it existed.
func (r *ReferenceFile) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.read()
	if err != nil {
		return false, err
	}
	kept := items[:0:0]
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		return false, nil
	}
	if err := r.write(kept); err != nil {
		return false, err
	}
	return true, nil
}

// ImportBulk inserts entries whose id is not yet present, in one rewrite.
// Duplicate ids inside entries keep the first occurrence.
func (r *ReferenceFile) ImportBulk(_ context.Context, entries []model.Reference, merge bool) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var items []model.Reference
	if merge {
		var err error
		if items, err = r.read(); err != nil {
			return 0, err
		}
	}

	seen := make(map[string]struct{}, len(items)+len(entries))
	for _, it := range items {
		seen[it.ID] = struct{}{}
	}

	added := 0
	for _, e := range entries {
		if e.ID != "" {
			if _, dup := seen[e.ID]; dup {
				continue
			}
		}
		ref := e.Clone()
		ref.ID = repository.EnsureID(ref.ID)
		seen[ref.ID] = struct{}{}
		items = append(items, ref)
		added++
	}

	if merge && added == 0 {
		return 0, nil
	}
	if err := r.write(items); err != nil {
		return 0, err
	}
	r.log.Info("bulk import", slog.Bool("merge", merge), slog.Int("added", added), slog.Int("incoming", len(entries)))
	return added, nil
}

// ExportAll writes the library to w in the import document format.
func (r *ReferenceFile) ExportAll(_ context.Context, w io.Writer) (int, error) {
	items, err := r.read()
	if err != nil {
		return 0, err
	}
	return model.EncodeReferences(w, items)
}

func (r *ReferenceFile) read() ([]model.Reference, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read library: %w", repository.ErrStorageUnavailable, err)
	}
	items, err := model.DecodeReferences(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse library %s: %w", r.path, err)
	}
	return items, nil
}

// write replaces the library file: temp file in the same directory, fsync, then rename.
func (r *ReferenceFile) write(items []model.Reference) error {
	var buf bytes.Buffer
	if _, err := model.EncodeReferences(&buf, items); err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(r.path), os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, buf.Bytes()); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("%w: write temp library: %w", repository.ErrStorageUnavailable, err)
	}
	if err := os.Rename(temp, r.path); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("%w: replace library: %w", repository.ErrStorageUnavailable, err)
	}
	return nil
}

func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func indexOf(items []model.Reference, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
