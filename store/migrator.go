package store

import (
	"context"
	"embed"
	"log/slog"
	"path"

	"github.com/pkg/errors"
)

//go:embed migration
var migrationFS embed.FS

// LatestSchemaFileName holds the full schema applied to fresh installations.
// There is no versioned migration chain: the schema is created if absent at
// startup and left alone otherwise.
const LatestSchemaFileName = "LATEST.sql"

// Migrate creates the backend schema if it does not exist yet. It is a no-op
// for the in-memory backend.
func (s *Store) Migrate(ctx context.Context) error {
	if s.profile.Driver == "memory" {
		return nil
	}

	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check if database is initialized")
	}
	if initialized {
		return nil
	}

	buf, err := migrationFS.ReadFile(path.Join("migration", s.profile.Driver, LatestSchemaFileName))
	if err != nil {
		return errors.Wrapf(err, "failed to read latest schema for driver %q", s.profile.Driver)
	}

	db := s.driver.GetDB()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(buf)); err != nil {
		return errors.Wrap(err, "failed to apply latest schema")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit schema")
	}

	slog.Info("database schema initialized", slog.String("driver", s.profile.Driver))
	return nil
}
