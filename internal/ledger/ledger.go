// Package ledger provides the persisted record of social-media items already
// processed, plus the append-only action log.
//
// It includes SQLite and PostgreSQL backends and an in-memory implementation
// for tests. The numeric payload timestamp and the two lookup URLs are
// materialized into their own columns at write time so that incremental-poll
// and URL-lookup queries never have to parse the opaque payload.
package ledger

import (
	"strings"

	"github.com/opencontrib/mentionbridge/internal/models"
)

// Ledger is the read/write interface over processed mentions and the action
// log. Mentions are append-only: there is no update or delete operation.
type Ledger interface {
	// IsProcessed reports whether a record with exactly this
	// (item_id, platform) pair exists.
	IsProcessed(itemID string, platform models.Platform) (bool, error)

	// LastProcessedTimestamp returns the maximum payload timestamp across
	// the platform's stored items. The second result is false when the
	// platform has no items yet.
	LastProcessedTimestamp(platform models.Platform) (int64, bool, error)

	// MarkProcessed creates and persists a new immutable mention record.
	// Inserting an already-processed (item_id, platform) pair fails with
	// models.ErrAlreadyProcessed.
	MarkProcessed(itemID string, platform models.Platform, suggester string, raw models.RawData) (models.Mention, error)

	// MessageFromURL locates the first stored item whose suggestion or
	// contribution URL equals url and reshapes it into the canonical
	// message record. A miss is a normal outcome: it returns a
	// success=false record, not an error.
	MessageFromURL(url string) (models.Message, error)

	// LogAction appends an audit entry for an attempted platform action.
	LogAction(platform models.Platform, action, details string) error

	// RecentLogs returns up to limit audit entries, newest first.
	RecentLogs(limit int) ([]models.MentionLog, error)

	// Close releases the underlying storage handle.
	Close() error
}

// Opts holds configuration options for ledger backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a ledger backend.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports "postgres" for PostgreSQL-looking connection strings
// and "sqlite3" for anything else (treated as a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	// key=value connection strings (host=... user=...) are also Postgres
	if strings.Contains(dsn, "=") && !strings.HasPrefix(dsn, "file:") {
		for _, key := range []string{"host=", "user=", "dbname=", "password=", "sslmode="} {
			if strings.Contains(dsn, key) {
				return "postgres"
			}
		}
	}
	return "sqlite3"
}
