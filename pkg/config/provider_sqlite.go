package config

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/chrissnell/signalcontrol/pkg/migrate"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	defaultConfigName = "default"
	migrationTable    = "config_migrations"
)

// Migrations holds the versioned SQLite configuration schema
//
//go:embed migrations/*.sql
var Migrations embed.FS

// NewMigrator returns a migrator for the configuration schema in db
func NewMigrator(db *sql.DB, logger *zap.SugaredLogger) (*migrate.Migrator, error) {
	sub, err := fs.Sub(Migrations, "migrations")
	if err != nil {
		return nil, err
	}
	return migrate.NewMigrator(db, migrate.NewFileProvider(sub, migrationTable), logger), nil
}

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider, migrating the
// schema to the latest version
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	migrator, err := NewMigrator(db, nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load schema migrations: %w", err)
	}
	if err := migrator.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database.  Sections
// without a stored row fall back to defaults.
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	var configID int64
	err := s.db.QueryRow(`SELECT id FROM configs WHERE name = ?`, defaultConfigName).Scan(&configID)
	if errors.Is(err, sql.ErrNoRows) {
		if err := config.Finalize(); err != nil {
			return nil, err
		}
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query config: %w", err)
	}

	if err := s.loadFeed(configID, &config.Feed); err != nil {
		return nil, fmt.Errorf("failed to load feed config: %w", err)
	}
	if err := s.loadTiming(configID, &config.Timing); err != nil {
		return nil, fmt.Errorf("failed to load timing config: %w", err)
	}
	if err := s.loadController(configID, &config.Controller); err != nil {
		return nil, fmt.Errorf("failed to load controller config: %w", err)
	}
	if err := s.loadREST(configID, &config.RESTServer); err != nil {
		return nil, fmt.Errorf("failed to load rest config: %w", err)
	}

	if err := config.Finalize(); err != nil {
		return nil, err
	}
	return config, nil
}

func (s *SQLiteProvider) loadFeed(configID int64, feed *FeedData) error {
	var url, timeout sql.NullString
	var fallbackMin, fallbackMax sql.NullInt64
	err := s.db.QueryRow(`SELECT url, timeout, fallback_min, fallback_max FROM feed_configs WHERE config_id = ?`, configID).
		Scan(&url, &timeout, &fallbackMin, &fallbackMax)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	feed.URL = url.String
	feed.Timeout = timeout.String
	feed.FallbackMin = int(fallbackMin.Int64)
	feed.FallbackMax = int(fallbackMax.Int64)
	return nil
}

func (s *SQLiteProvider) loadTiming(configID int64, timing *TimingData) error {
	var base, budget sql.NullInt64
	err := s.db.QueryRow(`SELECT base_seconds, budget_seconds FROM timing_configs WHERE config_id = ?`, configID).
		Scan(&base, &budget)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	timing.BaseSeconds = int(base.Int64)
	timing.BudgetSeconds = int(budget.Int64)
	return nil
}

func (s *SQLiteProvider) loadController(configID int64, ctrl *ControllerData) error {
	var interval, mode, manual sql.NullString
	var seed sql.NullInt64
	err := s.db.QueryRow(`SELECT refresh_interval, mode, manual_approach, seed FROM controller_configs WHERE config_id = ?`, configID).
		Scan(&interval, &mode, &manual, &seed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	ctrl.RefreshInterval = interval.String
	ctrl.Mode = mode.String
	ctrl.ManualApproach = manual.String
	ctrl.Seed = uint64(seed.Int64)
	return nil
}

func (s *SQLiteProvider) loadREST(configID int64, rest *RESTServerData) error {
	var listenAddr, cert, key sql.NullString
	var port sql.NullInt64
	var enableCORS sql.NullBool
	err := s.db.QueryRow(`SELECT listen_addr, port, cert, key, enable_cors FROM rest_configs WHERE config_id = ?`, configID).
		Scan(&listenAddr, &port, &cert, &key, &enableCORS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	rest.ListenAddr = listenAddr.String
	rest.Port = int(port.Int64)
	rest.Cert = cert.String
	rest.Key = key.String
	rest.EnableCORS = enableCORS.Bool
	return nil
}

// IsReadOnly returns false since SQLite configuration can be modified
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig saves complete configuration to the database, replacing whatever
// was stored before
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	// Start transaction
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}

	statements := []struct {
		section string
		query   string
		args    []any
	}{
		{
			section: "feed",
			query:   `INSERT OR REPLACE INTO feed_configs (config_id, url, timeout, fallback_min, fallback_max) VALUES (?, ?, ?, ?, ?)`,
			args:    []any{configID, nullString(configData.Feed.URL), nullString(configData.Feed.Timeout), configData.Feed.FallbackMin, configData.Feed.FallbackMax},
		},
		{
			section: "timing",
			query:   `INSERT OR REPLACE INTO timing_configs (config_id, base_seconds, budget_seconds) VALUES (?, ?, ?)`,
			args:    []any{configID, configData.Timing.BaseSeconds, configData.Timing.BudgetSeconds},
		},
		{
			section: "controller",
			query:   `INSERT OR REPLACE INTO controller_configs (config_id, refresh_interval, mode, manual_approach, seed) VALUES (?, ?, ?, ?, ?)`,
			args: []any{configID, nullString(configData.Controller.RefreshInterval), nullString(configData.Controller.Mode),
				nullString(configData.Controller.ManualApproach), int64(configData.Controller.Seed)},
		},
		{
			section: "rest",
			query:   `INSERT OR REPLACE INTO rest_configs (config_id, listen_addr, port, cert, key, enable_cors) VALUES (?, ?, ?, ?, ?, ?)`,
			args: []any{configID, nullString(configData.RESTServer.ListenAddr), configData.RESTServer.Port,
				nullString(configData.RESTServer.Cert), nullString(configData.RESTServer.Key), configData.RESTServer.EnableCORS},
		},
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt.query, stmt.args...); err != nil {
			return fmt.Errorf("failed to save %s config: %w", stmt.section, err)
		}
	}

	if _, err := tx.Exec(`UPDATE configs SET updated_at = datetime('now') WHERE id = ?`, configID); err != nil {
		return fmt.Errorf("failed to touch config: %w", err)
	}

	// Commit transaction
	return tx.Commit()
}

func (s *SQLiteProvider) getOrCreateConfigID(tx *sql.Tx) (int64, error) {
	var configID int64
	err := tx.QueryRow(`SELECT id FROM configs WHERE name = ?`, defaultConfigName).Scan(&configID)
	if err == nil {
		return configID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	result, err := tx.Exec(`INSERT INTO configs (name) VALUES (?)`, defaultConfigName)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
