package ledger

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrator applies the embedded schema scripts in order, tracking progress
// in PRAGMA user_version.
type migrator struct {
	ledger *SQLiteLedger
	log    *zap.Logger
}

func (m *migrator) up(ctx context.Context) error {
	list, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return err
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})

	var current int
	if err := m.ledger.db.GetContext(ctx, &current, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	final, err := scriptVersion(list[len(list)-1].Name())
	if err != nil {
		return err
	}
	if final > current {
		m.log.Info("Bringing up ledger migrations", zap.Int("migration_count", final-current))
	}

	for _, f := range list {
		v, err := scriptVersion(f.Name())
		if err != nil {
			return err
		}
		if v <= current {
			continue
		}

		script, err := migrationFS.ReadFile("migrations/" + f.Name())
		if err != nil {
			return err
		}

		tx, err := m.ledger.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(script)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %s failed: %w", f.Name(), err)
		}
		// PRAGMA does not accept bound parameters
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v)); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		m.log.Debug("Applied ledger migration", zap.String("script", f.Name()))
		current = v
	}

	return nil
}

// scriptVersion parses the numeric prefix of a migration file name
func scriptVersion(name string) (int, error) {
	prefix, _, found := strings.Cut(name, "_")
	if !found {
		return 0, fmt.Errorf("invalid migration name %q", name)
	}
	return strconv.Atoi(prefix)
}
