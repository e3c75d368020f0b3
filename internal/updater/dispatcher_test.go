package updater

import (
	"context"
	"testing"

	"github.com/opencontrib/mentionbridge/internal/discord"
	"github.com/opencontrib/mentionbridge/internal/ledger"
	"github.com/opencontrib/mentionbridge/internal/models"
	"github.com/opencontrib/mentionbridge/internal/reddit"
	"github.com/opencontrib/mentionbridge/internal/telegram"
)

func newTestDispatcher() (*Dispatcher, *reddit.MockClient, *discord.MockClient) {
	lg := ledger.NewInMemoryLedger()
	discordMock := discord.NewMockClient()
	redditMock := reddit.NewMockClient()
	d := NewDispatcher(
		NewDiscordUpdater(discordMock, lg, []string{"111"}),
		NewRedditUpdater(redditMock, lg),
		NewTelegramUpdater(telegram.NewMockClient(), lg),
	)
	return d, redditMock, discordMock
}

func TestForPlatform(t *testing.T) {
	d, _, _ := newTestDispatcher()
	for _, p := range []models.Platform{models.PlatformDiscord, models.PlatformReddit, models.PlatformTelegram} {
		u, ok := d.ForPlatform(p)
		if !ok {
			t.Fatalf("missing updater for %s", p)
		}
		if u.Platform() != p {
			t.Errorf("updater for %s reports platform %s", p, u.Platform())
		}
	}
	if _, ok := d.ForPlatform("myspace"); ok {
		t.Error("unknown platform must not resolve")
	}
}

func TestPlatformForURL(t *testing.T) {
	tests := []struct {
		url      string
		platform models.Platform
		ok       bool
	}{
		{"https://discord.com/channels/1/2/3", models.PlatformDiscord, true},
		{"https://www.reddit.com/r/test/comments/abc123/t/", models.PlatformReddit, true},
		{"https://old.reddit.com/r/test/comments/abc123/t/", models.PlatformReddit, true},
		{"https://t.me/c/123/45", models.PlatformTelegram, true},
		{"https://telegram.me/c/123/45", models.PlatformTelegram, true},
		{"https://example.com/x", "", false},
		{"not a url", "", false},
	}
	for _, tt := range tests {
		p, ok := PlatformForURL(tt.url)
		if ok != tt.ok || p != tt.platform {
			t.Errorf("PlatformForURL(%q) = (%q, %v), want (%q, %v)", tt.url, p, ok, tt.platform, tt.ok)
		}
	}
}

func TestDispatcherForwardsActions(t *testing.T) {
	d, redditMock, _ := newTestDispatcher()

	ok, err := d.AddReplyToMessage(context.Background(), models.PlatformReddit, "https://reddit.com/r/test/comments/abc123/t/", "hi")
	if !ok || err != nil {
		t.Fatalf("expected forwarded reply to succeed, got ok=%t err=%v", ok, err)
	}
	if len(redditMock.Calls) != 1 {
		t.Errorf("reddit client not invoked: %v", redditMock.Calls)
	}

	if ok, err := d.AddReplyToMessage(context.Background(), "myspace", "https://x", "hi"); ok || err != nil {
		t.Errorf("unknown platform must yield false with no error, got ok=%t err=%v", ok, err)
	}
	if ok, err := d.AddReactionToMessage(context.Background(), "myspace", "https://x", "duplicate"); ok || err != nil {
		t.Errorf("unknown platform must yield false with no error, got ok=%t err=%v", ok, err)
	}
}

func TestDispatcherMessageFromURL(t *testing.T) {
	d, _, discordMock := newTestDispatcher()
	discordMock.Message = discord.ChannelMessage{ID: "3", Content: "from discord"}

	msg := d.MessageFromURL(context.Background(), "https://discord.com/channels/111/2/3")
	if !msg.Success || msg.Content != "from discord" {
		t.Errorf("unexpected record: %+v", msg)
	}

	msg = d.MessageFromURL(context.Background(), "https://example.com/elsewhere")
	if msg.Success || msg.Error == "" {
		t.Errorf("unknown host must yield a failure record, got %+v", msg)
	}
}

func TestReactionEmojiTable(t *testing.T) {
	emoji, ok := ReactionEmoji("duplicate")
	if !ok || emoji != "✅" {
		t.Errorf(`ReactionEmoji("duplicate") = (%q, %v)`, emoji, ok)
	}
	if _, ok := ReactionEmoji("nonexistent"); ok {
		t.Error("unknown reaction names must fail closed")
	}
}
