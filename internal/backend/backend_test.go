package backend

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refman/internal/config"
	"refman/internal/model"
	"refman/internal/repository"
	"refman/internal/repository/jsonfile"
	"refman/internal/repository/relational"
)

func TestOpen_JSON(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.JSONPath = filepath.Join(t.TempDir(), "lib", "references.json")

	b, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, config.BackendJSON, b.Name)
	assert.IsType(t, &jsonfile.ReferenceFile{}, b.Repo)
	assert.NoError(t, b.Health.PingContext(context.Background()))
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.Defaults()
	cfg.Storage.Backend = config.BackendSQLite
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "refs.db")

	b, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, config.BackendSQLite, b.Name)
	assert.IsType(t, &relational.ReferenceStore{}, b.Repo)
	assert.NoError(t, b.Health.PingContext(ctx))

	ref, err := b.Repo.Add(ctx, model.Reference{Title: "Persisted"})
	require.NoError(t, err)
	got, err := b.Repo.Get(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, "Persisted", got.Title)
}

func TestOpen_Postgres(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.Backend = config.BackendPostgres

	t.Run("connects and migrates", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)

		orig := newPostgres
		newPostgres = func(config.DatabaseConfig) (*sql.DB, error) { return db, nil }
		defer func() { newPostgres = orig }()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS refs").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("information_schema.columns").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectExec("CREATE INDEX IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectClose()

		b, err := Open(context.Background(), cfg)
		require.NoError(t, err)
		assert.Equal(t, config.BackendPostgres, b.Name)
		assert.NoError(t, b.Close())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unreachable", func(t *testing.T) {
		orig := newPostgres
		newPostgres = func(config.DatabaseConfig) (*sql.DB, error) { return nil, errors.New("db ping: refused") }
		defer func() { newPostgres = orig }()

		b, err := Open(context.Background(), cfg)
		assert.ErrorIs(t, err, repository.ErrStorageUnavailable)
		assert.Nil(t, b)
	})

	t.Run("schema failure closes the pool", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)

		orig := newPostgres
		newPostgres = func(config.DatabaseConfig) (*sql.DB, error) { return db, nil }
		defer func() { newPostgres = orig }()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS refs").WillReturnError(errors.New("permission denied"))
		mock.ExpectClose()

		b, err := Open(context.Background(), cfg)
		assert.ErrorIs(t, err, repository.ErrStorageUnavailable)
		assert.Nil(t, b)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOpen_Unknown(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.Backend = "mongo"

	b, err := Open(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown backend")
	assert.Nil(t, b)
}
