package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opencontrib/mentionbridge/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// isDuplicateKeyErr reports whether err is a primary-key violation from
// either backend. Used as the backstop that closes the IsProcessed →
// MarkProcessed check-then-act race.
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// scanMentionRow scans a Mention from a single sql.Row.
func scanMentionRow(row *sql.Row) (models.Mention, error) {
	var m models.Mention
	var suggester sql.NullString
	var rawJSON string
	err := row.Scan(&m.ItemID, &m.Platform, &m.ProcessedAt, &suggester, &rawJSON)
	if err != nil {
		return m, err
	}
	m.Suggester = suggester.String
	if err := json.Unmarshal([]byte(rawJSON), &m.RawData); err != nil {
		return m, fmt.Errorf("decode raw_data for %s/%s failed: %w", m.Platform, m.ItemID, err)
	}
	return m, nil
}

// scanMentionLog scans a MentionLog from sql.Rows.
func scanMentionLog(rows *sql.Rows) (models.MentionLog, error) {
	var l models.MentionLog
	var details sql.NullString
	err := rows.Scan(&l.ID, &l.Platform, &l.Timestamp, &l.Action, &details)
	if err != nil {
		return l, fmt.Errorf("scan mention log failed: %w", err)
	}
	l.Details = details.String
	return l, nil
}
