package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opencontrib/mentionbridge/internal/ledger"
	"github.com/opencontrib/mentionbridge/internal/metrics"
	"github.com/opencontrib/mentionbridge/internal/models"
	"github.com/opencontrib/mentionbridge/internal/telegram"
	"github.com/opencontrib/mentionbridge/internal/urlparse"
)

// TelegramUpdater implements Updater against the Telegram Bot API.
//
// Like Reddit, message retrieval is backed by the ledger rather than a live
// fetch. Reactions are not implemented yet and report success; see
// AddReactionToMessage.
type TelegramUpdater struct {
	client telegram.Sender
	ledger ledger.Ledger
}

// Compile-time check that TelegramUpdater implements Updater.
var _ Updater = (*TelegramUpdater)(nil)

func NewTelegramUpdater(client telegram.Sender, lg ledger.Ledger) *TelegramUpdater {
	return &TelegramUpdater{client: client, ledger: lg}
}

func (u *TelegramUpdater) Platform() models.Platform {
	return models.PlatformTelegram
}

// AddReactionToMessage is not implemented for Telegram yet and returns true
// unconditionally so that callers treating reactions as best-effort keep
// working.
// TODO: implement via the setMessageReaction Bot API method once the client
// library exposes it.
func (u *TelegramUpdater) AddReactionToMessage(ctx context.Context, url, reactionName string) (bool, error) {
	slog.Debug("TelegramUpdater reaction not implemented, reporting success", "url", url, "reaction", reactionName)
	metrics.RecordAction(models.PlatformTelegram, models.ActionReacted, true)
	return true, nil
}

func (u *TelegramUpdater) AddReplyToMessage(ctx context.Context, url, text string) (bool, error) {
	chatID, messageID, err := urlparse.Telegram(url)
	if err != nil {
		slog.Warn("TelegramUpdater reply rejected: URL not recognized", "error", err, "url", url)
		metrics.RecordAction(models.PlatformTelegram, models.ActionReplied, false)
		return false, nil
	}

	err = u.client.SendReply(ctx, chatID, messageID, text)
	metrics.RecordAction(models.PlatformTelegram, models.ActionReplied, err == nil)
	u.logAction(models.ActionReplied, fmt.Sprintf("url=%s success=%t", url, err == nil))
	if err != nil {
		// A dead session is not an ordinary failed send: retrying the
		// reply cannot recover it, so it escalates to the caller instead
		// of collapsing into false.
		var authErr *telegram.AuthError
		if errors.As(err, &authErr) {
			slog.Error("TelegramUpdater reply aborted: authentication failed", "error", err, "url", url)
			return false, err
		}
		slog.Error("TelegramUpdater reply failed", "error", err, "url", url)
		return false, nil
	}
	slog.Info("TelegramUpdater reply posted", "url", url)
	return true, nil
}

// MessageFromURL consults the mention ledger only; there is no live fetch.
func (u *TelegramUpdater) MessageFromURL(ctx context.Context, url string) models.Message {
	msg, err := u.ledger.MessageFromURL(url)
	if err != nil {
		slog.Error("TelegramUpdater ledger lookup failed", "error", err, "url", url)
		metrics.RecordAction(models.PlatformTelegram, models.ActionFetched, false)
		return models.FailedMessage(fmt.Sprintf("Message lookup failed for URL: %s", url))
	}
	metrics.RecordAction(models.PlatformTelegram, models.ActionFetched, msg.Success)
	if msg.Success {
		u.logAction(models.ActionFetched, "url="+url)
	}
	return msg
}

func (u *TelegramUpdater) logAction(action, details string) {
	if err := u.ledger.LogAction(models.PlatformTelegram, action, details); err != nil {
		slog.Error("TelegramUpdater failed to write action log", "error", err, "action", action)
	}
}
