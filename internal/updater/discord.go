package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/opencontrib/mentionbridge/internal/discord"
	"github.com/opencontrib/mentionbridge/internal/ledger"
	"github.com/opencontrib/mentionbridge/internal/metrics"
	"github.com/opencontrib/mentionbridge/internal/models"
	"github.com/opencontrib/mentionbridge/internal/urlparse"
)

// DiscordUpdater implements Updater against the Discord REST API.
//
// URLs pointing at guilds outside the configured allow-list are rejected
// before any network call, as are reaction names with no emoji mapping.
type DiscordUpdater struct {
	client        discord.Sender
	ledger        ledger.Ledger
	allowedGuilds []string
}

// Compile-time check that DiscordUpdater implements Updater.
var _ Updater = (*DiscordUpdater)(nil)

// NewDiscordUpdater creates a Discord updater. The guild allow-list is
// injected here rather than read from ambient configuration.
func NewDiscordUpdater(client discord.Sender, lg ledger.Ledger, allowedGuilds []string) *DiscordUpdater {
	return &DiscordUpdater{client: client, ledger: lg, allowedGuilds: allowedGuilds}
}

func (u *DiscordUpdater) Platform() models.Platform {
	return models.PlatformDiscord
}

func (u *DiscordUpdater) AddReactionToMessage(ctx context.Context, url, reactionName string) (bool, error) {
	ref, ok := urlparse.Discord(url, u.allowedGuilds)
	if !ok {
		slog.Warn("DiscordUpdater reaction rejected: URL not recognized or guild not allowed", "url", url)
		metrics.RecordAction(models.PlatformDiscord, models.ActionReacted, false)
		return false, nil
	}
	emoji, ok := ReactionEmoji(reactionName)
	if !ok {
		slog.Warn("DiscordUpdater reaction rejected: no emoji mapping", "reaction", reactionName)
		metrics.RecordAction(models.PlatformDiscord, models.ActionReacted, false)
		return false, nil
	}

	err := u.client.AddReaction(ctx, ref.ChannelID, ref.MessageID, emoji)
	u.recordAction(models.ActionReacted, fmt.Sprintf("url=%s emoji=%s", url, emoji), err)
	if err != nil {
		slog.Error("DiscordUpdater reaction failed", "error", err, "url", url, "emoji", emoji)
		return false, nil
	}
	slog.Info("DiscordUpdater reaction added", "url", url, "emoji", emoji)
	return true, nil
}

func (u *DiscordUpdater) AddReplyToMessage(ctx context.Context, url, text string) (bool, error) {
	ref, ok := urlparse.Discord(url, u.allowedGuilds)
	if !ok {
		slog.Warn("DiscordUpdater reply rejected: URL not recognized or guild not allowed", "url", url)
		metrics.RecordAction(models.PlatformDiscord, models.ActionReplied, false)
		return false, nil
	}

	err := u.client.PostReply(ctx, ref.ChannelID, ref.MessageID, text)
	u.recordAction(models.ActionReplied, "url="+url, err)
	if err != nil {
		slog.Error("DiscordUpdater reply failed", "error", err, "url", url)
		return false, nil
	}
	slog.Info("DiscordUpdater reply posted", "url", url)
	return true, nil
}

func (u *DiscordUpdater) MessageFromURL(ctx context.Context, url string) models.Message {
	ref, ok := urlparse.Discord(url, u.allowedGuilds)
	if !ok {
		slog.Warn("DiscordUpdater fetch rejected: URL not recognized or guild not allowed", "url", url)
		metrics.RecordAction(models.PlatformDiscord, models.ActionFetched, false)
		return models.FailedMessage(fmt.Sprintf("Could not parse Discord URL: %s", url))
	}

	msg, err := u.client.GetMessage(ctx, ref.ChannelID, ref.MessageID)
	u.recordAction(models.ActionFetched, "url="+url, err)
	if err != nil {
		slog.Error("DiscordUpdater fetch failed", "error", err, "url", url)
		return models.FailedMessage(fmt.Sprintf("Could not fetch Discord message: %v", err))
	}

	author := msg.Author.Username
	if author == "" {
		author = models.UnknownAuthor
	}
	raw, _ := json.Marshal(msg)
	return models.Message{
		Success:   true,
		Content:   msg.Content,
		Author:    author,
		Timestamp: msg.Timestamp,
		MessageID: msg.ID,
		RawData:   raw,
	}
}

// recordAction writes the audit entry and the metric for an attempted remote
// action. Audit failures must not mask the action outcome, so they are only
// logged.
func (u *DiscordUpdater) recordAction(action, details string, actionErr error) {
	metrics.RecordAction(models.PlatformDiscord, action, actionErr == nil)
	detail := details + fmt.Sprintf(" success=%t", actionErr == nil)
	if err := u.ledger.LogAction(models.PlatformDiscord, action, detail); err != nil {
		slog.Error("DiscordUpdater failed to write action log", "error", err, "action", action)
	}
}
