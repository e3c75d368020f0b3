// Package testutil provides common test utilities and helpers for mentionbridge tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opencontrib/mentionbridge/internal/api"
	"github.com/opencontrib/mentionbridge/internal/discord"
	"github.com/opencontrib/mentionbridge/internal/ledger"
	"github.com/opencontrib/mentionbridge/internal/models"
	"github.com/opencontrib/mentionbridge/internal/reddit"
	"github.com/opencontrib/mentionbridge/internal/telegram"
	"github.com/opencontrib/mentionbridge/internal/updater"
)

// TestGuildID is the Discord guild allow-listed by NewTestServer.
const TestGuildID = "111"

// NewTestServer creates a test API server with an in-memory ledger and mock
// platform clients. This centralizes the test server creation logic used
// across multiple test files.
func NewTestServer() (*api.Server, ledger.Ledger) {
	lg := ledger.NewInMemoryLedger()
	d := updater.NewDispatcher(
		updater.NewDiscordUpdater(discord.NewMockClient(), lg, []string{TestGuildID}),
		updater.NewRedditUpdater(reddit.NewMockClient(), lg),
		updater.NewTelegramUpdater(telegram.NewMockClient(), lg),
	)
	return api.NewServer(d, lg), lg
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// SeedMentions adds sample mentions to the ledger for testing.
func SeedMentions(t *testing.T, lg ledger.Ledger) {
	t.Helper()

	seeds := []struct {
		itemID   string
		platform models.Platform
		raw      models.RawData
	}{
		{"disc-1", models.PlatformDiscord, models.RawData{
			Timestamp:     1700000000,
			Content:       "discord suggestion",
			Contributor:   "alice",
			SuggestionURL: "https://discord.com/channels/111/222/333",
		}},
		{"abc123", models.PlatformReddit, models.RawData{
			Timestamp:     1700000100,
			Content:       "reddit suggestion",
			Contributor:   "bob",
			SuggestionURL: "https://reddit.com/r/test/comments/abc123/title/",
		}},
		{"45", models.PlatformTelegram, models.RawData{
			Timestamp:     1700000200,
			Content:       "telegram suggestion",
			SuggestionURL: "https://t.me/c/123/45",
		}},
	}
	for _, s := range seeds {
		if _, err := lg.MarkProcessed(s.itemID, s.platform, "", s.raw); err != nil {
			t.Fatalf("failed to seed mention %s/%s: %v", s.itemID, s.platform, err)
		}
	}
}

// AssertMessageEquals compares two canonical message records in tests.
func AssertMessageEquals(t *testing.T, expected, actual models.Message, context string) {
	t.Helper()
	if actual.Success != expected.Success ||
		actual.Content != expected.Content ||
		actual.Contribution != expected.Contribution ||
		actual.Author != expected.Author ||
		actual.Timestamp != expected.Timestamp ||
		actual.MessageID != expected.MessageID ||
		actual.Error != expected.Error {
		t.Errorf("%s: messages don't match\nexpected: %+v\nactual: %+v", context, expected, actual)
	}
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
