// Package backend picks the reference store once at startup from configuration.
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"refman/internal/config"
	"refman/internal/database"
	"refman/internal/logger"
	"refman/internal/repository"
	"refman/internal/repository/jsonfile"
	"refman/internal/repository/relational"
)

// Pinger reports whether the underlying store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Backend is an opened store plus what the process needs to health-check and release it.
type Backend struct {
	Name   string
	Repo   repository.ReferenceRepository
	Health Pinger
	close  func() error
}

// Close releases the database connection, if any.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

var (
	newPostgres = database.NewPostgres
	newSQLite   = database.NewSQLite
)

// Open builds the repository selected by cfg.Storage.Backend.
func Open(ctx context.Context, cfg *config.AppConfig) (*Backend, error) {
	l := logger.WithComponent("backend").With(slog.String("backend", cfg.Storage.Backend))

	switch cfg.Storage.Backend {
	case config.BackendJSON:
		repo, err := jsonfile.New(cfg.Storage.JSONPath)
		if err != nil {
			return nil, err
		}
		l.Info("reference store ready", slog.String("path", repo.Path()))
		return &Backend{Name: config.BackendJSON, Repo: repo, Health: repo}, nil

	case config.BackendPostgres:
		db, err := newPostgres(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", repository.ErrStorageUnavailable, err)
		}
		return openRelational(ctx, l, config.BackendPostgres, db, database.Postgres)

	case config.BackendSQLite:
		db, err := newSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", repository.ErrStorageUnavailable, err)
		}
		l = l.With(slog.String("path", cfg.Storage.SQLitePath))
		return openRelational(ctx, l, config.BackendSQLite, db, database.SQLite)

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Storage.Backend)
	}
}

func openRelational(ctx context.Context, l *slog.Logger, name string, db *sql.DB, dialect database.Dialect) (*Backend, error) {
	repo, err := relational.New(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	l.Info("reference store ready")
	return &Backend{Name: name, Repo: repo, Health: db, close: db.Close}, nil
}
