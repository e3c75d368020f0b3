// Package models defines the core data structures for mentionbridge.
//
// It includes the platform enumeration, the persisted Mention and MentionLog
// records, and the canonical message record shared across modules.
package models

import (
	"encoding/json"
	"errors"
	"time"
)

// Platform identifies the source social platform of a mention.
type Platform string

const (
	// PlatformDiscord identifies mentions originating from Discord.
	PlatformDiscord Platform = "discord"
	// PlatformReddit identifies mentions originating from Reddit.
	PlatformReddit Platform = "reddit"
	// PlatformTelegram identifies mentions originating from Telegram.
	PlatformTelegram Platform = "telegram"
)

// Action names recorded in the mention log.
const (
	ActionFetched = "fetched"
	ActionReplied = "replied"
	ActionReacted = "reacted"
)

// Error variables for better error handling and testability
var (
	ErrEmptyItemID      = errors.New("item_id cannot be empty")
	ErrInvalidPlatform  = errors.New("invalid platform")
	ErrEmptyURL         = errors.New("url cannot be empty")
	ErrAlreadyProcessed = errors.New("mention already processed")
)

// IsValidPlatform checks if the given platform tag is supported.
func IsValidPlatform(p Platform) bool {
	switch p {
	case PlatformDiscord, PlatformReddit, PlatformTelegram:
		return true
	default:
		return false
	}
}

// ParsePlatform converts a raw platform tag into a Platform value.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !IsValidPlatform(p) {
		return "", ErrInvalidPlatform
	}
	return p, nil
}

// RawData is the opaque platform payload stored with each mention. The named
// fields are the ones the ledger materializes or reshapes; Extra preserves
// anything else the ingestor recorded.
type RawData struct {
	Timestamp       int64             `json:"timestamp,omitempty"`
	Content         string            `json:"content,omitempty"`
	Contribution    string            `json:"contribution,omitempty"`
	Contributor     string            `json:"contributor,omitempty"`
	SuggestionURL   string            `json:"suggestion_url,omitempty"`
	ContributionURL string            `json:"contribution_url,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// Mention is the canonical record of a remote social-media item that has
// already been ingested. Mentions are immutable once created: the ledger
// exposes no update or delete path.
type Mention struct {
	ItemID      string    `json:"item_id"`
	Platform    Platform  `json:"platform"`
	ProcessedAt time.Time `json:"processed_at"`
	Suggester   string    `json:"suggester,omitempty"`
	RawData     RawData   `json:"raw_data"`
}

// Validate checks that a mention is well formed before persistence.
func (m Mention) Validate() error {
	if m.ItemID == "" {
		return ErrEmptyItemID
	}
	if !IsValidPlatform(m.Platform) {
		return ErrInvalidPlatform
	}
	return nil
}

// MentionLog is an append-only audit entry for an action taken against a
// platform. Entries are ordered by timestamp descending for display.
type MentionLog struct {
	ID        string    `json:"id"`
	Platform  Platform  `json:"platform"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
}

// Message is the canonical message record produced by every MessageFromURL
// implementation, independent of source platform.
//
// Invariant: Success=false implies only Error is populated; Success=true
// implies all content fields are populated (possibly with placeholder
// defaults such as "Unknown" author).
type Message struct {
	Success      bool            `json:"success"`
	Content      string          `json:"content,omitempty"`
	Contribution string          `json:"contribution,omitempty"`
	Author       string          `json:"author,omitempty"`
	Timestamp    string          `json:"timestamp,omitempty"`
	MessageID    string          `json:"message_id,omitempty"`
	RawData      json.RawMessage `json:"raw_data,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// FailedMessage builds a canonical failure record with the given error text.
func FailedMessage(errText string) Message {
	return Message{Success: false, Error: errText}
}

// UnknownAuthor is substituted when a stored payload carries no contributor.
const UnknownAuthor = "Unknown"

// TimestampLayout renders timestamps with an explicit numeric UTC offset
// ("+00:00" rather than "Z") to match what the web layer already consumes.
const TimestampLayout = "2006-01-02T15:04:05-07:00"

// API Response types for consistent JSON responses

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// MessageFromMention reshapes a stored mention into the canonical message
// record. The integer Unix timestamp becomes an ISO-8601 UTC string and a
// missing contributor defaults to UnknownAuthor.
func MessageFromMention(m Mention) Message {
	author := m.RawData.Contributor
	if author == "" {
		author = UnknownAuthor
	}
	raw, err := json.Marshal(m.RawData)
	if err != nil {
		raw = nil
	}
	return Message{
		Success:      true,
		Content:      m.RawData.Content,
		Contribution: m.RawData.Contribution,
		Author:       author,
		Timestamp:    time.Unix(m.RawData.Timestamp, 0).UTC().Format(TimestampLayout),
		MessageID:    m.ItemID,
		RawData:      raw,
	}
}
