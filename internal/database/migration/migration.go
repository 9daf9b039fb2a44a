package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"refman/internal/database"
	"refman/internal/logger"
)

// migrationStep is one idempotent schema change. When Applied is set it is
// queried first and the step is skipped if it reports true.
type migrationStep struct {
	Name    string
	Applied string
	SQL     string
}

var postgresSteps = []migrationStep{
	{
		Name: "create_table_refs",
		SQL: `CREATE TABLE IF NOT EXISTS refs (
  id         TEXT        PRIMARY KEY,
  title      TEXT        NOT NULL,
  authors    TEXT,
  year       INT,
  notes      TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name:    "add_column_refs_created_at",
		Applied: `SELECT EXISTS (SELECT 1 FROM information_schema.columns
  WHERE table_schema = current_schema() AND table_name = 'refs' AND column_name = 'created_at')`,
		SQL: `ALTER TABLE refs ADD COLUMN IF NOT EXISTS created_at TIMESTAMPTZ NOT NULL DEFAULT now();`,
	},
	{
		Name: "create_index_refs_title",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_refs_title ON refs (title);`,
	},
}

var sqliteSteps = []migrationStep{
	{
		Name: "create_table_refs",
		SQL: `CREATE TABLE IF NOT EXISTS refs (
  id         TEXT     PRIMARY KEY,
  title      TEXT     NOT NULL,
  authors    TEXT,
  year       INTEGER,
  notes      TEXT,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`,
	},
	{
		// SQLite cannot add a column defaulting to CURRENT_TIMESTAMP, so legacy
		// rows and later inserts into an upgraded table keep a NULL created_at.
		Name:    "add_column_refs_created_at",
		Applied: `SELECT COUNT(*) > 0 FROM pragma_table_info('refs') WHERE name = 'created_at'`,
		SQL:     `ALTER TABLE refs ADD COLUMN created_at DATETIME;`,
	},
	{
		Name: "create_index_refs_title",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_refs_title ON refs (title);`,
	},
}

func stepsFor(d database.Dialect) ([]migrationStep, error) {
	switch d {
	case database.Postgres:
		return postgresSteps, nil
	case database.SQLite:
		return sqliteSteps, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", d)
	}
}

// EnsureSchema brings the refs table, its columns and its index up to date.
// Every step is checked on its own, so a table created by an older release
// still gets the missing pieces. Running it against a current database changes nothing.
func EnsureSchema(ctx context.Context, db *sql.DB, dialect database.Dialect) error {
	steps, err := stepsFor(dialect)
	if err != nil {
		return err
	}

	start := time.Now()
	l := logger.WithComponent("database").With(slog.String("dialect", string(dialect)))
	l.Info("checking schema", slog.String("event", "db_migration_check"))

	fail := func(step migrationStep, stepStart time.Time, err error) {
		l.Error("migration step failed",
			slog.String("event", "db_migration_failed"),
			slog.String("migration_step", step.Name),
			slog.Any("err", err),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
		)
	}

	l.Info("applying schema", slog.String("event", "db_migration_start"))
	for _, step := range steps {
		stepStart := time.Now()
		if step.Applied != "" {
			var applied bool
			if err := db.QueryRowContext(ctx, step.Applied).Scan(&applied); err != nil {
				fail(step, stepStart, err)
				return fmt.Errorf("migration step %s check failed: %w", step.Name, err)
			}
			if applied {
				l.Info("migration step already applied",
					slog.String("event", "db_migration_skip"),
					slog.String("migration_step", step.Name),
				)
				continue
			}
		}
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			fail(step, stepStart, err)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		l.Info("migration step applied",
			slog.String("event", "db_migration_step"),
			slog.String("migration_step", step.Name),
			slog.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
		)
	}

	l.Info("schema ready",
		slog.String("event", "db_migration_success"),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}
