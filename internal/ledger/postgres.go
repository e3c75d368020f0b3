// Package ledger provides storage backends for the mention ledger.
//
// This file implements the PostgreSQL-backed ledger.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/opencontrib/mentionbridge/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// Compile-time check that PostgresLedger implements Ledger.
var _ Ledger = (*PostgresLedger)(nil)

type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger creates a new Postgres-backed ledger based on provided options.
func NewPostgresLedger(opts ...Option) (*PostgresLedger, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresLedger invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresLedger DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresLedger{db: db}, nil
}

func (s *PostgresLedger) IsProcessed(itemID string, platform models.Platform) (bool, error) {
	var id string
	err := s.db.QueryRow(`SELECT item_id FROM mentions WHERE item_id = $1 AND platform = $2`, itemID, platform).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("processed check failed: %w", err)
	}
	return true, nil
}

func (s *PostgresLedger) LastProcessedTimestamp(platform models.Platform) (int64, bool, error) {
	var ts sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(ts) FROM mentions WHERE platform = $1`, platform).Scan(&ts)
	if err != nil {
		return 0, false, fmt.Errorf("last processed timestamp query failed: %w", err)
	}
	if !ts.Valid {
		return 0, false, nil
	}
	return ts.Int64, true, nil
}

func (s *PostgresLedger) MarkProcessed(itemID string, platform models.Platform, suggester string, raw models.RawData) (models.Mention, error) {
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ItemID, m.Platform, m.ProcessedAt, nilIfEmpty(m.Suggester), string(rawJSON),
		raw.Timestamp, nilIfEmpty(raw.SuggestionURL), nilIfEmpty(raw.ContributionURL),
	)
	if isDuplicateKeyErr(err) {
		return models.Mention{}, fmt.Errorf("%s/%s: %w", platform, itemID, models.ErrAlreadyProcessed)
	}
	if err != nil {
		slog.Error("PostgresLedger MarkProcessed failed", "error", err, "item_id", itemID, "platform", platform)
		return models.Mention{}, fmt.Errorf("insert mention failed: %w", err)
	}
	slog.Debug("PostgresLedger MarkProcessed succeeded", "item_id", itemID, "platform", platform)
	return m, nil
}

func (s *PostgresLedger) MessageFromURL(url string) (models.Message, error) {
	row := s.db.QueryRow(
		`SELECT item_id, platform, processed_at, suggester, raw_data FROM mentions
		 WHERE suggestion_url = $1 OR contribution_url = $1
		 ORDER BY processed_at LIMIT 1`, url)
	m, err := scanMentionRow(row)
	if err == sql.ErrNoRows {
		return models.FailedMessage(fmt.Sprintf("Message not found for URL: %s", url)), nil
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("message lookup failed: %w", err)
	}
	return models.MessageFromMention(m), nil
}

func (s *PostgresLedger) LogAction(platform models.Platform, action, details string) error {
	_, err := s.db.Exec(
		`INSERT INTO mention_logs (id, platform, timestamp, action, details) VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), platform, time.Now().UTC(), action, nilIfEmpty(details),
	)
	if err != nil {
		slog.Error("PostgresLedger LogAction failed", "error", err, "platform", platform, "action", action)
		return fmt.Errorf("insert mention log failed: %w", err)
	}
	return nil
}

func (s *PostgresLedger) RecentLogs(limit int) ([]models.MentionLog, error) {
	rows, err := s.db.Query(
		`SELECT id, platform, timestamp, action, details FROM mention_logs ORDER BY timestamp DESC LIMIT $1`, limit)
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

func (s *PostgresLedger) Close() error {
	return s.db.Close()
}
