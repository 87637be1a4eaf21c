package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Migration is one SQL file applied in a single transaction.
type Migration struct {
	Name string
	SQL  string
}

// LoadMigrations reads every non-empty *.sql file in dir, sorted by name.
func LoadMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, Migration{Name: name, SQL: string(data)})
	}
	return out, nil
}

// MigrationReport lists what Apply did.
type MigrationReport struct {
	Applied []string
	Skipped []string
}

// Migrator applies migrations once each, recording them in schema_migrations.
type Migrator struct {
	db *sql.DB
}

func NewMigrator(db *sql.DB) *Migrator { return &Migrator{db: db} }

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Applied returns the names already recorded.
func (m *Migrator) Applied(ctx context.Context) (map[string]bool, error) {
	if _, err := m.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	rows, err := m.db.QueryContext(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan migration name: %w", err)
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// Apply runs the pending migrations in order and stops at the first failure.
func (m *Migrator) Apply(ctx context.Context, migrations []Migration) (MigrationReport, error) {
	var report MigrationReport

	applied, err := m.Applied(ctx)
	if err != nil {
		return report, err
	}

	for _, mig := range migrations {
		if applied[mig.Name] {
			report.Skipped = append(report.Skipped, mig.Name)
			continue
		}
		if err := m.applyOne(ctx, mig); err != nil {
			return report, err
		}
		report.Applied = append(report.Applied, mig.Name)
	}
	return report, nil
}

func (m *Migrator) applyOne(ctx context.Context, mig Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", mig.Name, err)
	}
	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		tx.Rollback()
		return fmt.Errorf("apply %s: %w", mig.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, mig.Name); err != nil {
		tx.Rollback()
		return fmt.Errorf("record %s: %w", mig.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", mig.Name, err)
	}
	return nil
}
