// Package ledger provides storage backends for the mention ledger.
//
// This file implements the SQLite-backed ledger.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/opencontrib/mentionbridge/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// Compile-time check that SQLiteLedger implements Ledger.
var _ Ledger = (*SQLiteLedger)(nil)

type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger creates a new SQLite-backed ledger with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteLedger(opts ...Option) (*SQLiteLedger, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteLedger invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteLedger DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteLedger{db: db}, nil
}

func (s *SQLiteLedger) IsProcessed(itemID string, platform models.Platform) (bool, error) {
	var id string
	err := s.db.QueryRow(`SELECT item_id FROM mentions WHERE item_id = ? AND platform = ?`, itemID, platform).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("processed check failed: %w", err)
	}
	return true, nil
}

func (s *SQLiteLedger) LastProcessedTimestamp(platform models.Platform) (int64, bool, error) {
	var ts sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(ts) FROM mentions WHERE platform = ?`, platform).Scan(&ts)
	if err != nil {
		return 0, false, fmt.Errorf("last processed timestamp query failed: %w", err)
	}
	if !ts.Valid {
		return 0, false, nil
	}
	return ts.Int64, true, nil
}

func (s *SQLiteLedger) MarkProcessed(itemID string, platform models.Platform, suggester string, raw models.RawData) (models.Mention, error) {
	m := models.Mention{
		ItemID:      itemID,
		Platform:    platform,
		ProcessedAt: time.Now().UTC(),
		Suggester:   suggester,
		RawData:     raw,
	}
	if err := m.Validate(); err != nil {
		return models.Mention{}, err
	}
	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return models.Mention{}, fmt.Errorf("encode raw_data failed: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO mentions (item_id, platform, processed_at, suggester, raw_data, ts, suggestion_url, contribution_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ItemID, m.Platform, m.ProcessedAt, nilIfEmpty(m.Suggester), string(rawJSON),
		raw.Timestamp, nilIfEmpty(raw.SuggestionURL), nilIfEmpty(raw.ContributionURL),
	)
	if isDuplicateKeyErr(err) {
		return models.Mention{}, fmt.Errorf("%s/%s: %w", platform, itemID, models.ErrAlreadyProcessed)
	}
	if err != nil {
		slog.Error("SQLiteLedger MarkProcessed failed", "error", err, "item_id", itemID, "platform", platform)
		return models.Mention{}, fmt.Errorf("insert mention failed: %w", err)
	}
	slog.Debug("SQLiteLedger MarkProcessed succeeded", "item_id", itemID, "platform", platform)
	return m, nil
}

func (s *SQLiteLedger) MessageFromURL(url string) (models.Message, error) {
	row := s.db.QueryRow(
		`SELECT item_id, platform, processed_at, suggester, raw_data FROM mentions
		 WHERE suggestion_url = ? OR contribution_url = ?
		 ORDER BY processed_at LIMIT 1`, url, url)
	m, err := scanMentionRow(row)
	if err == sql.ErrNoRows {
		return models.FailedMessage(fmt.Sprintf("Message not found for URL: %s", url)), nil
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("message lookup failed: %w", err)
	}
	return models.MessageFromMention(m), nil
}

func (s *SQLiteLedger) LogAction(platform models.Platform, action, details string) error {
	_, err := s.db.Exec(
		`INSERT INTO mention_logs (id, platform, timestamp, action, details) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), platform, time.Now().UTC(), action, nilIfEmpty(details),
	)
	if err != nil {
		slog.Error("SQLiteLedger LogAction failed", "error", err, "platform", platform, "action", action)
		return fmt.Errorf("insert mention log failed: %w", err)
	}
	return nil
}

func (s *SQLiteLedger) RecentLogs(limit int) ([]models.MentionLog, error) {
	rows, err := s.db.Query(
		`SELECT id, platform, timestamp, action, details FROM mention_logs ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query mention logs failed: %w", err)
	}
	defer rows.Close()

	var logs []models.MentionLog
	for rows.Next() {
		l, err := scanMentionLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mention log rows failed: %w", err)
	}
	return logs, nil
}

func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}
