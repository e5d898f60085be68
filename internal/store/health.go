package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"reelsmith/internal/campaign"
)

// HealthSummary aggregates campaign counts for status output.
type HealthSummary struct {
	Total     int `json:"total"`
	Draft     int `json:"draft"`
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// DatabaseHealth describes the state of the database file and schema.
type DatabaseHealth struct {
	DBPath           string   `json:"dbPath"`
	DatabaseExists   bool     `json:"databaseExists"`
	DatabaseReadable bool     `json:"databaseReadable"`
	SchemaVersion    int      `json:"schemaVersion"`
	Migrations       []string `json:"migrations,omitempty"`
	MissingTables    []string `json:"missingTables,omitempty"`
	IntegrityCheck   bool     `json:"integrityCheck"`
	TotalCampaigns   int      `json:"totalCampaigns"`
	Error            string   `json:"error,omitempty"`
}

var expectedTables = []string{"personas", "templates", "batches", "campaigns", "execution_log", "api_keys"}

// Health aggregates campaign state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.CampaignStats(ctx, "")
	if err != nil {
		return HealthSummary{}, err
	}
	var health HealthSummary
	for status, count := range stats {
		health.Total += count
		switch status {
		case campaign.StatusDraft:
			health.Draft += count
		case campaign.StatusQueued:
			health.Queued += count
		case campaign.StatusRunning:
			health.Running += count
		case campaign.StatusCompleted:
			health.Completed += count
		case campaign.StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.DatabaseReadable = true

	if err := s.db.QueryRowContext(connCtx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil && !errors.Is(err, sql.ErrNoRows) {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}

	present := make(map[string]struct{})
	rows, err := s.db.QueryContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("list tables: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			health.Error = err.Error()
			return health, fmt.Errorf("scan table name: %w", err)
		}
		present[name] = struct{}{}
	}
	rows.Close()
	for _, table := range expectedTables {
		if _, ok := present[table]; !ok {
			health.MissingTables = append(health.MissingTables, table)
		}
	}
	sort.Strings(health.MissingTables)

	if migrations, err := s.AppliedMigrations(connCtx); err == nil {
		health.Migrations = migrations
	}

	if _, ok := present["campaigns"]; ok {
		if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM campaigns").Scan(&health.TotalCampaigns); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count campaigns: %w", err)
		}
	}

	var integrityResult string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")
	return health, nil
}
