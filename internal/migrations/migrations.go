package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed sql/*.sql
var files embed.FS

type migration struct {
	Name    string
	Version int
}

// Apply runs every embedded migration not yet recorded in
// schema_migrations, in version order, each in its own transaction.
func Apply(db *sqlx.DB) error {
	return apply(db, files, "sql")
}

func apply(db *sqlx.DB, fsys fs.FS, dir string) error {
	if err := ensureTable(db); err != nil {
		return err
	}
	migs, err := listMigrations(fsys, dir)
	if err != nil {
		return err
	}
	applied := map[int]bool{}
	versions := []int{}
	if err := db.Select(&versions, `SELECT version FROM schema_migrations`); err != nil {
		return err
	}
	for _, v := range versions {
		applied[v] = true
	}
	for _, mig := range migs {
		if applied[mig.Version] {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, mig.Name))
		if err != nil {
			return err
		}
		if err := applyMigration(db, mig, string(content)); err != nil {
			return err
		}
		log.Printf("migración aplicada: %s", mig.Name)
	}
	return nil
}

func ensureTable(db *sqlx.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INT PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	return err
}

func listMigrations(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	migs := make([]migration, 0, len(entries))
	seen := map[int]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		version, ok := parseVersion(name)
		if !ok {
			return nil, fmt.Errorf("migration %s: name must look like V<n>__<desc>.sql", name)
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", other, name, version)
		}
		seen[version] = name
		migs = append(migs, migration{Name: name, Version: version})
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].Version < migs[j].Version })
	return migs, nil
}

func applyMigration(db *sqlx.DB, mig migration, content string) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(content); err != nil {
		return fmt.Errorf("apply %s: %w", mig.Name, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name); err != nil {
		return err
	}
	return tx.Commit()
}

func parseVersion(name string) (int, bool) {
	if !strings.HasPrefix(name, "V") {
		return 0, false
	}
	parts := strings.SplitN(name[1:], "__", 2)
	if len(parts) != 2 {
		return 0, false
	}
	value, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}
