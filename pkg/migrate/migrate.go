// Package migrate applies numbered SQL schema migrations and records the
// applied version in a tracking table.
package migrate

import (
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Latest targets the highest version a provider knows about.
const Latest = -1

// Migration is one numbered schema change with its forward and reverse SQL
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// DB is satisfied by both *sql.DB and *sql.Tx
type DB interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// MigrationProvider supplies migrations and tracks which version is applied
type MigrationProvider interface {
	GetMigrations() ([]Migration, error)
	GetCurrentVersion(db *sql.DB) (int, error)
	SetVersion(db DB, version int) error
	CreateMigrationTable(db *sql.DB) error
}

// Migrator moves a database between schema versions
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	logger   *zap.SugaredLogger
}

// NewMigrator returns a Migrator for db.  A nil logger discards output.
func NewMigrator(db *sql.DB, provider MigrationProvider, logger *zap.SugaredLogger) *Migrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Migrator{db: db, provider: provider, logger: logger.Named("migrate")}
}

// step is a single migration run in one direction
type step struct {
	migration Migration
	up        bool
}

func (s step) direction() string {
	if s.up {
		return "up"
	}
	return "down"
}

func (s step) statement() string {
	if s.up {
		return s.migration.Up
	}
	return s.migration.Down
}

// resultingVersion is the schema version recorded once the step commits
func (s step) resultingVersion() int {
	if s.up {
		return s.migration.Version
	}
	return s.migration.Version - 1
}

// planSteps orders the migrations that move a schema at version from to
// version to.  Forward steps run oldest first, reverse steps newest first.
func planSteps(migrations []Migration, from, to int) []step {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	var steps []step
	if to >= from {
		for _, mg := range sorted {
			if mg.Version > from && mg.Version <= to {
				steps = append(steps, step{migration: mg, up: true})
			}
		}
		return steps
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		if mg := sorted[i]; mg.Version > to && mg.Version <= from {
			steps = append(steps, step{migration: mg, up: false})
		}
	}
	return steps
}

func latestVersion(migrations []Migration) int {
	latest := 0
	for _, mg := range migrations {
		latest = max(latest, mg.Version)
	}
	return latest
}

// MigrateUp applies every pending migration
func (m *Migrator) MigrateUp() error {
	return m.MigrateTo(Latest)
}

// MigrateDown reverts to targetVersion, which must lie below the current
// version
func (m *Migrator) MigrateDown(targetVersion int) error {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return err
	}
	if targetVersion < 0 || targetVersion >= current {
		return fmt.Errorf("cannot roll back from version %d to %d", current, targetVersion)
	}
	return m.run(current, targetVersion)
}

// MigrateTo moves the schema forward or back to targetVersion.  Latest
// selects the newest known migration.
func (m *Migrator) MigrateTo(targetVersion int) error {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return err
	}
	return m.run(current, targetVersion)
}

func (m *Migrator) run(current, target int) error {
	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	if target == Latest {
		target = latestVersion(migrations)
	}

	for _, s := range planSteps(migrations, current, target) {
		if err := m.apply(s); err != nil {
			return fmt.Errorf("migration %d %s: %w", s.migration.Version, s.direction(), err)
		}
	}
	return nil
}

// GetCurrentVersion reports the applied version, creating the tracking table
// on first use
func (m *Migrator) GetCurrentVersion() (int, error) {
	if err := m.provider.CreateMigrationTable(m.db); err != nil {
		return 0, err
	}
	return m.provider.GetCurrentVersion(m.db)
}

// GetPendingMigrations lists the migrations above the applied version,
// oldest first
func (m *Migrator) GetPendingMigrations() ([]Migration, error) {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return nil, err
	}

	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	var pending []Migration
	for _, s := range planSteps(migrations, current, latestVersion(migrations)) {
		if s.up {
			pending = append(pending, s.migration)
		}
	}
	return pending, nil
}

// apply runs one step and records its version in a single transaction
func (m *Migrator) apply(s step) error {
	stmt := s.statement()
	if stmt == "" {
		return fmt.Errorf("no %s SQL", s.direction())
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}
	if err := m.provider.SetVersion(tx, s.resultingVersion()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	m.logger.Infow("Applied migration",
		"version", s.migration.Version,
		"name", s.migration.Name,
		"direction", s.direction())
	return nil
}
