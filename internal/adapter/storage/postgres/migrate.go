package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	"github.com/rs/zerolog"
)

// Migrate applies every embedded *.sql file in lexical order. The schema
// files are idempotent (CREATE TABLE IF NOT EXISTS), so running at each
// boot is safe.
func Migrate(ctx context.Context, pool Pool, schemaFS fs.FS, log zerolog.Logger) error {
	names, err := fs.Glob(schemaFS, "*.sql")
	if err != nil {
		return fmt.Errorf("listing migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := fs.ReadFile(schemaFS, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
		log.Info().Str("migration", name).Msg("migration applied")
	}
	return nil
}
