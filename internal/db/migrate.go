package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"tadka/internal/logger"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFiles embed.FS

type migration struct {
	version int
	name    string
	sql     string
}

// migrator is implemented by each backend; runMigrations drives it.
type migrator interface {
	ensureMigrationsTable(ctx context.Context) error
	appliedVersions(ctx context.Context) (map[int]bool, error)
	applyMigration(ctx context.Context, m migration, appliedAt time.Time) error
}

func loadMigrations(dir string) ([]migration, error) {
	entries, err := fs.ReadDir(migrationFiles, dir)
	if err != nil {
		return nil, err
	}

	var out []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: missing version prefix", e.Name())
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: bad version: %w", e.Name(), err)
		}
		body, err := fs.ReadFile(migrationFiles, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, migration{version: version, name: e.Name(), sql: string(body)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	for i := 1; i < len(out); i++ {
		if out[i].version == out[i-1].version {
			return nil, fmt.Errorf("duplicate migration version %d", out[i].version)
		}
	}
	return out, nil
}

func runMigrations(ctx context.Context, m migrator, dir string, now func() time.Time) error {
	log := logger.WithComponent("migrate").WithField("dialect", path.Base(dir))

	migrations, err := loadMigrations(dir)
	if err != nil {
		return err
	}
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return storeErr("create schema_migrations", err)
	}
	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return storeErr("read schema_migrations", err)
	}

	for _, mg := range migrations {
		if applied[mg.version] {
			continue
		}
		if err := m.applyMigration(ctx, mg, now()); err != nil {
			return storeErr("apply migration "+mg.name, err)
		}
		log.WithField("version", mg.version).Infof("Applied migration %s", mg.name)
	}
	return nil
}
