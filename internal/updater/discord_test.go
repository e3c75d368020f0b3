package updater

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/opencontrib/mentionbridge/internal/discord"
	"github.com/opencontrib/mentionbridge/internal/ledger"
	"github.com/opencontrib/mentionbridge/internal/models"
)

var testGuilds = []string{"111"}

func newDiscordUpdater(mock *discord.MockClient) (*DiscordUpdater, *ledger.InMemoryLedger) {
	lg := ledger.NewInMemoryLedger()
	return NewDiscordUpdater(mock, lg, testGuilds), lg
}

func TestDiscordReaction(t *testing.T) {
	mock := discord.NewMockClient()
	u, lg := newDiscordUpdater(mock)

	if ok, err := u.AddReactionToMessage(context.Background(), "https://discord.com/channels/111/222/333", "duplicate"); !ok || err != nil {
		t.Fatalf("expected success, got ok=%t err=%v", ok, err)
	}
	if len(mock.Calls) != 1 || mock.Calls[0] != "react 222/333 ✅" {
		t.Errorf("unexpected client calls: %v", mock.Calls)
	}
	logs, _ := lg.RecentLogs(10)
	if len(logs) != 1 || logs[0].Action != models.ActionReacted {
		t.Errorf("expected one reacted audit entry, got %v", logs)
	}
}

func TestDiscordReactionGuildNotAllowed(t *testing.T) {
	mock := discord.NewMockClient()
	u, _ := newDiscordUpdater(mock)

	if ok, err := u.AddReactionToMessage(context.Background(), "https://discord.com/channels/999/222/333", "duplicate"); ok || err != nil {
		t.Errorf("non-allow-listed guild must fail in-band, got ok=%t err=%v", ok, err)
	}
	if len(mock.Calls) != 0 {
		t.Errorf("no network call may be made, got %v", mock.Calls)
	}
}

func TestDiscordReactionUnmappedName(t *testing.T) {
	mock := discord.NewMockClient()
	u, _ := newDiscordUpdater(mock)

	if ok, err := u.AddReactionToMessage(context.Background(), "https://discord.com/channels/111/222/333", "shrug"); ok || err != nil {
		t.Errorf("unmapped reaction name must fail in-band, got ok=%t err=%v", ok, err)
	}
	if len(mock.Calls) != 0 {
		t.Errorf("no network call may be made, got %v", mock.Calls)
	}
}

func TestDiscordReactionRemoteFailure(t *testing.T) {
	mock := discord.NewMockClient()
	mock.Err = &discord.StatusError{Status: http.StatusForbidden, Endpoint: "reaction add"}
	u, _ := newDiscordUpdater(mock)

	if ok, err := u.AddReactionToMessage(context.Background(), "https://discord.com/channels/111/222/333", "duplicate"); ok || err != nil {
		t.Errorf("remote failure must collapse to false with no error, got ok=%t err=%v", ok, err)
	}
}

func TestDiscordReply(t *testing.T) {
	mock := discord.NewMockClient()
	u, _ := newDiscordUpdater(mock)

	if ok, err := u.AddReplyToMessage(context.Background(), "https://discord.com/channels/111/222/333", "thanks!"); !ok || err != nil {
		t.Fatalf("expected success, got ok=%t err=%v", ok, err)
	}
	if len(mock.Calls) != 1 || mock.Calls[0] != "reply 222/333" {
		t.Errorf("unexpected client calls: %v", mock.Calls)
	}
}

func TestDiscordReplyBadURL(t *testing.T) {
	mock := discord.NewMockClient()
	u, _ := newDiscordUpdater(mock)
	if ok, err := u.AddReplyToMessage(context.Background(), "https://example.com/x", "hi"); ok || err != nil {
		t.Errorf("unrecognized URL must fail in-band, got ok=%t err=%v", ok, err)
	}
	if ok, err := u.AddReplyToMessage(context.Background(), "https://discord.com/channels/999/222/333", "hi"); ok || err != nil {
		t.Errorf("non-allow-listed guild must fail in-band, got ok=%t err=%v", ok, err)
	}
	if len(mock.Calls) != 0 {
		t.Errorf("no network call may be made, got %v", mock.Calls)
	}
}

func TestDiscordReplyTransportError(t *testing.T) {
	mock := discord.NewMockClient()
	mock.Err = errors.New("connection reset")
	u, _ := newDiscordUpdater(mock)
	if ok, err := u.AddReplyToMessage(context.Background(), "https://discord.com/channels/111/222/333", "hi"); ok || err != nil {
		t.Errorf("transport error must collapse to false with no error, got ok=%t err=%v", ok, err)
	}
}

func TestDiscordMessageFromURL(t *testing.T) {
	mock := discord.NewMockClient()
	mock.Message = discord.ChannelMessage{ID: "333", Content: "hello", Timestamp: "2024-01-02T03:04:05+00:00"}
	mock.Message.Author.Username = "alice"
	u, _ := newDiscordUpdater(mock)

	msg := u.MessageFromURL(context.Background(), "https://discord.com/channels/111/222/333")
	if !msg.Success {
		t.Fatalf("expected success record, got %+v", msg)
	}
	if msg.Content != "hello" || msg.Author != "alice" || msg.MessageID != "333" {
		t.Errorf("unexpected record: %+v", msg)
	}
	if msg.Timestamp != "2024-01-02T03:04:05+00:00" {
		t.Errorf("timestamp not passed through: %q", msg.Timestamp)
	}
}

func TestDiscordMessageFromURLDefaultsAuthor(t *testing.T) {
	mock := discord.NewMockClient()
	mock.Message = discord.ChannelMessage{ID: "333", Content: "x"}
	u, _ := newDiscordUpdater(mock)
	msg := u.MessageFromURL(context.Background(), "https://discord.com/channels/111/222/333")
	if msg.Author != models.UnknownAuthor {
		t.Errorf("expected author %q, got %q", models.UnknownAuthor, msg.Author)
	}
}

func TestDiscordMessageFromURLFailures(t *testing.T) {
	mock := discord.NewMockClient()
	u, _ := newDiscordUpdater(mock)

	msg := u.MessageFromURL(context.Background(), "https://discord.com/channels/999/222/333")
	if msg.Success || msg.Error == "" {
		t.Errorf("expected failure record for disallowed guild, got %+v", msg)
	}
	if len(mock.Calls) != 0 {
		t.Errorf("no network call may be made, got %v", mock.Calls)
	}

	mock.Err = &discord.StatusError{Status: http.StatusNotFound, Endpoint: "message fetch"}
	msg = u.MessageFromURL(context.Background(), "https://discord.com/channels/111/222/333")
	if msg.Success || msg.Error == "" {
		t.Errorf("expected failure record for remote error, got %+v", msg)
	}
}

// TestDiscordReactionEndToEnd drives the real REST client against a fake
// Discord server: allow-listed guild, mapped reaction, PUT answered with 204.
func TestDiscordReactionEndToEnd(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if r.URL.EscapedPath() != "/channels/222/messages/333/reactions/%E2%9C%85/@me" {
			t.Errorf("unexpected path: %s", r.URL.EscapedPath())
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := discord.NewClient(
		discord.WithBotToken("tok"),
		discord.WithBaseURL(srv.URL),
		discord.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	u := NewDiscordUpdater(client, ledger.NewInMemoryLedger(), []string{"111"})

	if ok, err := u.AddReactionToMessage(context.Background(), "https://discord.com/channels/111/222/333", "duplicate"); !ok || err != nil {
		t.Errorf("expected success for 204 response, got ok=%t err=%v", ok, err)
	}
	if requests.Load() != 1 {
		t.Errorf("expected exactly one HTTP call, got %d", requests.Load())
	}

	// Same URL shape, guild outside the allow-list: zero HTTP calls.
	if ok, _ := u.AddReactionToMessage(context.Background(), "https://discord.com/channels/999/222/333", "duplicate"); ok {
		t.Error("expected failure for non-allow-listed guild")
	}
	if requests.Load() != 1 {
		t.Errorf("disallowed guild must not reach the network, got %d calls", requests.Load())
	}
}
