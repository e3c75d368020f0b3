package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opencontrib/mentionbridge/internal/ledger"
	"github.com/opencontrib/mentionbridge/internal/metrics"
	"github.com/opencontrib/mentionbridge/internal/models"
	"github.com/opencontrib/mentionbridge/internal/reddit"
	"github.com/opencontrib/mentionbridge/internal/urlparse"
)

// RedditUpdater implements Updater against the Reddit API.
//
// Reddit exposes no emoji-reaction concept, so AddReactionToMessage is an
// unconditional no-op success rather than a stub to be fixed. Message
// retrieval is backed entirely by the ledger: Reddit content is read from
// previously ingested data, never re-fetched live.
type RedditUpdater struct {
	client reddit.Sender
	ledger ledger.Ledger
}

// Compile-time check that RedditUpdater implements Updater.
var _ Updater = (*RedditUpdater)(nil)

func NewRedditUpdater(client reddit.Sender, lg ledger.Ledger) *RedditUpdater {
	return &RedditUpdater{client: client, ledger: lg}
}

func (u *RedditUpdater) Platform() models.Platform {
	return models.PlatformReddit
}

// AddReactionToMessage always succeeds without doing anything: the platform
// has no reactions to add.
func (u *RedditUpdater) AddReactionToMessage(ctx context.Context, url, reactionName string) (bool, error) {
	slog.Debug("RedditUpdater reaction is a no-op", "url", url, "reaction", reactionName)
	metrics.RecordAction(models.PlatformReddit, models.ActionReacted, true)
	return true, nil
}

func (u *RedditUpdater) AddReplyToMessage(ctx context.Context, url, text string) (bool, error) {
	submissionID, commentID := urlparse.Reddit(url)
	if submissionID == "" {
		slog.Warn("RedditUpdater reply rejected: URL not recognized", "url", url)
		metrics.RecordAction(models.PlatformReddit, models.ActionReplied, false)
		return false, nil
	}

	// Reply to the comment when one was parsed, else to the submission.
	fullname := reddit.SubmissionFullname(submissionID)
	if commentID != "" {
		fullname = reddit.CommentFullname(commentID)
	}

	err := u.client.Reply(ctx, fullname, text)
	metrics.RecordAction(models.PlatformReddit, models.ActionReplied, err == nil)
	u.logAction(models.ActionReplied, fmt.Sprintf("url=%s thing=%s success=%t", url, fullname, err == nil))
	if err == nil {
		slog.Info("RedditUpdater reply posted", "url", url, "thing", fullname)
		return true, nil
	}

	// Three distinct remote-error categories, logged distinctly, all
	// converging to false.
	var apiErr *reddit.APIError
	var transportErr *reddit.TransportError
	switch {
	case errors.As(err, &apiErr):
		slog.Error("RedditUpdater reply failed: Reddit API error", "error", apiErr, "url", url)
	case errors.As(err, &transportErr):
		slog.Error("RedditUpdater reply failed: client error", "error", transportErr, "url", url)
	default:
		slog.Error("RedditUpdater reply failed: unexpected error", "error", err, "url", url)
	}
	return false, nil
}

// MessageFromURL consults the mention ledger only; there is no live fetch.
func (u *RedditUpdater) MessageFromURL(ctx context.Context, url string) models.Message {
	msg, err := u.ledger.MessageFromURL(url)
	if err != nil {
		slog.Error("RedditUpdater ledger lookup failed", "error", err, "url", url)
		metrics.RecordAction(models.PlatformReddit, models.ActionFetched, false)
		return models.FailedMessage(fmt.Sprintf("Message lookup failed for URL: %s", url))
	}
	metrics.RecordAction(models.PlatformReddit, models.ActionFetched, msg.Success)
	if msg.Success {
		u.logAction(models.ActionFetched, "url="+url)
	}
	return msg
}

func (u *RedditUpdater) logAction(action, details string) {
	if err := u.ledger.LogAction(models.PlatformReddit, action, details); err != nil {
		slog.Error("RedditUpdater failed to write action log", "error", err, "action", action)
	}
}
