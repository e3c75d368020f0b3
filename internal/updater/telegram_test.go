package updater

import (
	"context"
	"errors"
	"testing"

	"github.com/opencontrib/mentionbridge/internal/ledger"
	"github.com/opencontrib/mentionbridge/internal/models"
	"github.com/opencontrib/mentionbridge/internal/telegram"
)

func TestTelegramReactionAlwaysSucceeds(t *testing.T) {
	u := NewTelegramUpdater(telegram.NewMockClient(), ledger.NewInMemoryLedger())
	if ok, err := u.AddReactionToMessage(context.Background(), "https://t.me/c/123/45", "duplicate"); !ok || err != nil {
		t.Errorf("not-implemented reaction must report success, got ok=%t err=%v", ok, err)
	}
	if ok, err := u.AddReactionToMessage(context.Background(), "garbage", "whatever"); !ok || err != nil {
		t.Errorf("not-implemented reaction must report success regardless of input, got ok=%t err=%v", ok, err)
	}
}

func TestTelegramReply(t *testing.T) {
	mock := telegram.NewMockClient()
	u := NewTelegramUpdater(mock, ledger.NewInMemoryLedger())

	ok, err := u.AddReplyToMessage(context.Background(), "https://t.me/c/1234567/89", "hello")
	if !ok || err != nil {
		t.Fatalf("expected success, got ok=%t err=%v", ok, err)
	}
	if len(mock.Calls) != 1 || mock.Calls[0] != "1234567/89" {
		t.Errorf("unexpected client calls: %v", mock.Calls)
	}
}

func TestTelegramReplyBadURL(t *testing.T) {
	mock := telegram.NewMockClient()
	u := NewTelegramUpdater(mock, ledger.NewInMemoryLedger())
	if ok, err := u.AddReplyToMessage(context.Background(), "https://t.me/c/notanumber/89", "hi"); ok || err != nil {
		t.Errorf("malformed URL must fail in-band, got ok=%t err=%v", ok, err)
	}
	if len(mock.Calls) != 0 {
		t.Errorf("no network call may be made, got %v", mock.Calls)
	}
}

func TestTelegramReplyClientError(t *testing.T) {
	mock := telegram.NewMockClient()
	mock.Err = errors.New("telegram call timed out after 30s")
	u := NewTelegramUpdater(mock, ledger.NewInMemoryLedger())
	ok, err := u.AddReplyToMessage(context.Background(), "https://t.me/c/1234567/89", "hi")
	if ok {
		t.Error("client failure must collapse to false")
	}
	if err != nil {
		t.Errorf("an ordinary send failure must stay in-band, got %v", err)
	}
}

func TestTelegramReplyAuthFailureEscalates(t *testing.T) {
	mock := telegram.NewMockClient()
	mock.Err = &telegram.AuthError{Cause: errors.New("getMe returned 401")}
	u := NewTelegramUpdater(mock, ledger.NewInMemoryLedger())

	ok, err := u.AddReplyToMessage(context.Background(), "https://t.me/c/1234567/89", "hi")
	if ok {
		t.Error("auth failure must not report success")
	}
	if err == nil {
		t.Fatal("auth failure must escalate past the boolean result")
	}
	var authErr *telegram.AuthError
	if !errors.As(err, &authErr) {
		t.Errorf("escalated error must stay identifiable as an auth failure, got %T: %v", err, err)
	}
}

func TestTelegramMessageFromURLDelegatesToLedger(t *testing.T) {
	mock := telegram.NewMockClient()
	lg := ledger.NewInMemoryLedger()
	lg.MarkProcessed("t1", models.PlatformTelegram, "", models.RawData{
		Timestamp:       1700000000,
		Content:         "telegram says hi",
		ContributionURL: "https://t.me/c/1/2",
	})
	u := NewTelegramUpdater(mock, lg)

	msg := u.MessageFromURL(context.Background(), "https://t.me/c/1/2")
	if !msg.Success || msg.Content != "telegram says hi" {
		t.Errorf("unexpected record: %+v", msg)
	}
	if msg.Author != models.UnknownAuthor {
		t.Errorf("expected defaulted author, got %q", msg.Author)
	}
	if len(mock.Calls) != 0 {
		t.Errorf("message fetch must never call the remote API, got %v", mock.Calls)
	}
}
