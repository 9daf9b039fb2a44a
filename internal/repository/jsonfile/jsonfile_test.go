package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refman/internal/model"
	"refman/internal/repository"
)

func newTestRepo(t *testing.T) *ReferenceFile {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "nested", "data", "references.json"))
	require.NoError(t, err)
	return repo
}

func TestNew(t *testing.T) {
	t.Run("creates parent dirs and empty library", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a", "b", "references.json")
		repo, err := New(path)
		require.NoError(t, err)
		assert.Equal(t, path, repo.Path())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, string(data))
		assert.NoError(t, repo.PingContext(context.Background()))
	})

	t.Run("existing library is left untouched", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "references.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"id":"1","title":"Kept"}]`), 0o644))

		repo, err := New(path)
		require.NoError(t, err)

		refs, err := repo.ListAll(context.Background())
		require.NoError(t, err)
		require.Len(t, refs, 1)
		assert.Equal(t, "Kept", refs[0].Title)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := New(" ")
		assert.Error(t, err)
	})

	t.Run("parent is a file", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "blocker")
		require.NoError(t, os.WriteFile(blocker, nil, 0o644))

		_, err := New(filepath.Join(blocker, "references.json"))
		assert.ErrorIs(t, err, repository.ErrStorageUnavailable)
	})
}

func TestReferenceFile_AddGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.Add(ctx, model.Reference{Title: "Dune", Authors: "Herbert", Year: model.IntPtr(1965)})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *created, *got)

	t.Run("caller supplied id is kept", func(t *testing.T) {
		ref, err := repo.Add(ctx, model.Reference{ID: "fixed", Title: "Given"})
		require.NoError(t, err)
		assert.Equal(t, "fixed", ref.ID)
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		_, err := repo.Add(ctx, model.Reference{ID: "fixed", Title: "Again"})
		assert.ErrorIs(t, err, repository.ErrDuplicateID)

		refs, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, refs, 2)
	})

	t.Run("miss returns nil", func(t *testing.T) {
		got, err := repo.Get(ctx, "missing")
		assert.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestReferenceFile_ListAll_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, title := range []string{"C", "A", "B"} {
		_, err := repo.Add(ctx, model.Reference{Title: title})
		require.NoError(t, err)
	}

	refs, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{refs[0].Title, refs[1].Title, refs[2].Title})
}

func TestReferenceFile_Update(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	created, err := repo.Add(ctx, model.Reference{ID: "x1", Title: "A", Authors: "Someone", Notes: "n"})
	require.NoError(t, err)

	t.Run("only set fields change", func(t *testing.T) {
		updated, err := repo.Update(ctx, "x1", model.ReferenceChanges{Title: model.StringPtr("B"), Year: model.IntPtr(2020)})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, "x1", updated.ID)
		assert.Equal(t, "B", updated.Title)
		assert.Equal(t, "Someone", updated.Authors)
		assert.Equal(t, 2020, *updated.Year)

		got, err := repo.Get(ctx, "x1")
		require.NoError(t, err)
		assert.Equal(t, *updated, *got)
	})

	t.Run("empty changes is a no-op", func(t *testing.T) {
		before, err := os.ReadFile(repo.Path())
		require.NoError(t, err)

		got, err := repo.Update(ctx, created.ID, model.ReferenceChanges{})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "B", got.Title)

		after, err := os.ReadFile(repo.Path())
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("unknown id", func(t *testing.T) {
		got, err := repo.Update(ctx, "nope", model.ReferenceChanges{Title: model.StringPtr("Z")})
		assert.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestReferenceFile_Delete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	_, err := repo.Add(ctx, model.Reference{ID: "1", Title: "A"})
	require.NoError(t, err)

	ok, err := repo.Delete(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Delete(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	assert.Nil(t, got)

	refs, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestReferenceFile_ImportBulk(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) *ReferenceFile {
		repo := newTestRepo(t)
		_, err := repo.Add(ctx, model.Reference{ID: "1", Title: "One"})
		require.NoError(t, err)
		_, err = repo.Add(ctx, model.Reference{ID: "2", Title: "Two"})
		require.NoError(t, err)
		return repo
	}

	incoming := []model.Reference{
		{ID: "2", Title: "Two (incoming)"},
		{ID: "3", Title: "Three"},
	}

	t.Run("merge skips existing ids", func(t *testing.T) {
		repo := seed(t)

		n, err := repo.ImportBulk(ctx, incoming, true)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		two, err := repo.Get(ctx, "2")
		require.NoError(t, err)
		assert.Equal(t, "Two", two.Title)

		refs, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, refs, 3)

		n, err = repo.ImportBulk(ctx, incoming, true)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("overwrite replaces the library", func(t *testing.T) {
		repo := seed(t)

		n, err := repo.ImportBulk(ctx, incoming, false)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		refs, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, refs, 2)
		assert.Equal(t, "Two (incoming)", refs[0].Title)

		one, err := repo.Get(ctx, "1")
		require.NoError(t, err)
		assert.Nil(t, one)
	})

	t.Run("missing ids are generated and in-source duplicates dropped", func(t *testing.T) {
		repo := newTestRepo(t)

		n, err := repo.ImportBulk(ctx, []model.Reference{
			{Title: "No id"},
			{ID: "d", Title: "First"},
			{ID: "d", Title: "Second"},
		}, false)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		refs, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, refs, 2)
		assert.NotEmpty(t, refs[0].ID)
		assert.Equal(t, "First", refs[1].Title)
	})
}

func TestReferenceFile_ExtraKeysPersist(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.ImportBulk(ctx, []model.Reference{{
		ID:    "1",
		Title: "With extras",
		Extra: map[string]json.RawMessage{"url": json.RawMessage(`"https://example.org"`)},
	}}, true)
	require.NoError(t, err)

	got, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	assert.JSONEq(t, `"https://example.org"`, string(got.Extra["url"]))

	_, err = repo.Update(ctx, "1", model.ReferenceChanges{Notes: model.StringPtr("n")})
	require.NoError(t, err)
	got, err = repo.Get(ctx, "1")
	require.NoError(t, err)
	assert.JSONEq(t, `"https://example.org"`, string(got.Extra["url"]))
}

func TestReferenceFile_ExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newTestRepo(t)
	for _, r := range []model.Reference{
		{Title: "A", Authors: "x", Year: model.IntPtr(2001)},
		{Title: "B", Notes: "note"},
	} {
		_, err := src.Add(ctx, r)
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	n, err := src.ExportAll(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := model.DecodeReferences(&buf)
	require.NoError(t, err)

	dst := newTestRepo(t)
	_, err = dst.Add(ctx, model.Reference{Title: "discarded"})
	require.NoError(t, err)
	n, err = dst.ImportBulk(ctx, entries, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	want, err := src.ListAll(ctx)
	require.NoError(t, err)
	got, err := dst.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReferenceFile_CorruptLibrary(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, os.WriteFile(repo.Path(), []byte(`{"not":"a list"}`), 0o644))

	_, err := repo.ListAll(ctx)
	assert.ErrorIs(t, err, model.ErrMalformedSource)

	require.NoError(t, os.Remove(repo.Path()))
	_, err = repo.ListAll(ctx)
	assert.ErrorIs(t, err, repository.ErrStorageUnavailable)
	assert.Error(t, repo.PingContext(ctx))
}

func TestConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Add(ctx, model.Reference{Title: "T"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, n)
}
