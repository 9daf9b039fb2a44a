package service

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refman/internal/database"
	"refman/internal/model"
	"refman/internal/repository"
	"refman/internal/repository/jsonfile"
	"refman/internal/repository/relational"
)

// backends returns one fresh store per implementation.
func backends(t *testing.T) map[string]func(t *testing.T) repository.ReferenceRepository {
	return map[string]func(t *testing.T) repository.ReferenceRepository{
		"json": func(t *testing.T) repository.ReferenceRepository {
			repo, err := jsonfile.New(filepath.Join(t.TempDir(), "RefMan", "references.json"))
			require.NoError(t, err)
			return repo
		},
		"sqlite": func(t *testing.T) repository.ReferenceRepository {
			db, err := database.NewSQLite(database.MemoryPath)
			require.NoError(t, err)
			t.Cleanup(func() { db.Close() })
			repo, err := relational.New(context.Background(), db, database.SQLite)
			require.NoError(t, err)
			return repo
		},
	}
}

func TestScenario_Lifecycle(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := NewReferenceService(nil, open(t))

			created, err := svc.Add(ctx, model.Reference{Title: "A"})
			require.NoError(t, err)
			require.NotEmpty(t, created.ID)

			got, err := svc.Get(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, "A", got.Title)

			found, err := svc.Search(ctx, "a")
			require.NoError(t, err)
			require.Len(t, found, 1)

			updated, err := svc.UpdateReference(ctx, created.ID, model.ReferenceChanges{Title: model.StringPtr("B")})
			require.NoError(t, err)
			assert.Equal(t, "B", updated.Title)
			assert.Equal(t, created.ID, updated.ID)
			require.NotNil(t, updated.OldTitle)
			assert.Equal(t, "A", *updated.OldTitle)

			before, err := svc.Get(ctx, created.ID)
			require.NoError(t, err)
			same, err := svc.UpdateReference(ctx, created.ID, model.ReferenceChanges{})
			require.NoError(t, err)
			assert.Equal(t, *before, same.Reference)

			ok, err := svc.Delete(ctx, created.ID)
			require.NoError(t, err)
			assert.True(t, ok)

			gone, err := svc.Get(ctx, created.ID)
			require.NoError(t, err)
			assert.Nil(t, gone)

			ok, err = svc.Delete(ctx, created.ID)
			require.NoError(t, err)
			assert.False(t, ok)

			all, err := svc.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestScenario_MergeImport(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := NewReferenceService(nil, open(t))

			_, err := svc.Import(ctx, strings.NewReader(`[{"id":"1","title":"One"},{"id":"2","title":"Two","year":1999}]`), ImportOverwrite)
			require.NoError(t, err)

			source := `[{"id":"2","title":"Two (changed)"},{"id":"3","title":"Three"}]`
			res, err := svc.Import(ctx, strings.NewReader(source), ImportMerge)
			require.NoError(t, err)
			assert.Equal(t, ImportResult{Inserted: 1, Skipped: 1}, res)

			two, err := svc.Get(ctx, "2")
			require.NoError(t, err)
			assert.Equal(t, "Two", two.Title)
			assert.Equal(t, 1999, *two.Year)

			all, err := svc.List(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"1", "2", "3"}, ids(all))

			res, err = svc.Import(ctx, strings.NewReader(source), ImportMerge)
			require.NoError(t, err)
			assert.Equal(t, ImportResult{Inserted: 0, Skipped: 2}, res)

			again, err := svc.List(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, ids(all), ids(again))
		})
	}
}

func TestScenario_OverwriteIsDeterministic(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := NewReferenceService(nil, open(t))
			source := `[{"id":"a","title":"Alpha","authors":"X"},{"id":"b","title":"Beta","notes":"n"}]`

			_, err := svc.Add(ctx, model.Reference{Title: "to be discarded"})
			require.NoError(t, err)

			res, err := svc.Import(ctx, strings.NewReader(source), ImportOverwrite)
			require.NoError(t, err)
			assert.Equal(t, 2, res.Inserted)
			first, err := svc.List(ctx)
			require.NoError(t, err)

			_, err = svc.Import(ctx, strings.NewReader(source), ImportOverwrite)
			require.NoError(t, err)
			second, err := svc.List(ctx)
			require.NoError(t, err)

			assert.Equal(t, stripCreated(first), stripCreated(second))
			assert.Equal(t, []string{"a", "b"}, ids(second))
		})
	}
}

func TestScenario_ExportRoundTrip(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := NewReferenceService(nil, open(t))
			for _, r := range []model.Reference{
				{Title: "Gamma", Authors: "G", Year: model.IntPtr(2003)},
				{Title: "Delta", Notes: "d"},
			} {
				_, err := svc.Add(ctx, r)
				require.NoError(t, err)
			}
			want, err := svc.List(ctx)
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), "exports", "library.json")
			n, err := svc.ExportFile(ctx, path)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			_, err = svc.Add(ctx, model.Reference{Title: "added after export"})
			require.NoError(t, err)

			res, err := svc.ImportFile(ctx, path, ImportOverwrite)
			require.NoError(t, err)
			assert.Equal(t, ImportResult{Inserted: 2}, res)

			got, err := svc.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, stripCreated(want), stripCreated(got))
		})
	}
}

func TestScenario_MalformedImportHasNoEffect(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := NewReferenceService(nil, open(t))
			_, err := svc.Add(ctx, model.Reference{ID: "keep", Title: "Keep me"})
			require.NoError(t, err)

			for _, src := range []string{`{"id":"x"}`, `[{"title":"ok"}, 42]`, `[{"year":"nineteen"}]`, `not json`} {
				_, err := svc.Import(ctx, strings.NewReader(src), ImportOverwrite)
				assert.ErrorIs(t, err, model.ErrMalformedSource, src)
			}

			var buf bytes.Buffer
			n, err := svc.Export(ctx, &buf)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			assert.Contains(t, buf.String(), `"keep"`)
		})
	}
}

func ids(refs []model.Reference) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.ID)
	}
	return out
}

func stripCreated(refs []model.Reference) []model.Reference {
	out := make([]model.Reference, 0, len(refs))
	for _, r := range refs {
		r.CreatedAt = nil
		out = append(out, r)
	}
	return out
}
