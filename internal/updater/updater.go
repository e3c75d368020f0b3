// Package updater implements the per-platform action protocol over Discord,
// Reddit and Telegram.
//
// Every updater exposes the same three operations: add a reaction, add a
// reply, and fetch the canonical message record for a URL. Failures almost
// never escape as errors; unparseable URLs, remote API errors and transport
// faults all collapse to the contract's failure value with detail in the
// logs, the action log and the metrics. The single exception is a failed
// Telegram authentication, which is returned alongside the failure value so
// that callers can abort instead of treating a dead session as one more
// flaky send.
package updater

import (
	"context"

	"github.com/opencontrib/mentionbridge/internal/models"
)

// Updater is the polymorphic capability over one social platform.
type Updater interface {
	// Platform returns the platform tag this updater serves.
	Platform() models.Platform

	// AddReactionToMessage attempts to add the named reaction to the
	// message identified by url. Returns false if the URL cannot be
	// parsed for this platform, the reaction name is unmapped, or the
	// remote call fails. The error is nil for all of those: it is
	// non-nil only for faults the caller must not absorb as a failed
	// action, currently a failed Telegram authentication
	// (telegram.AuthError).
	AddReactionToMessage(ctx context.Context, url, reactionName string) (bool, error)

	// AddReplyToMessage posts text as a threaded reply to the target
	// identified by url. Same error-containment contract as reactions.
	AddReplyToMessage(ctx context.Context, url, text string) (bool, error)

	// MessageFromURL fetches the canonical message record for the
	// target. Always returns the canonical shape.
	MessageFromURL(ctx context.Context, url string) models.Message
}

// reactionEmoji is the static reaction-name→emoji table consulted by
// platforms that support emoji reactions. Unknown names fail closed.
var reactionEmoji = map[string]string{
	"duplicate": "✅",
	"approved":  "👍",
	"rejected":  "👎",
	"seen":      "👀",
	"celebrate": "🎉",
	"thanks":    "🙏",
}

// ReactionEmoji resolves a reaction name to its platform emoji.
func ReactionEmoji(name string) (string, bool) {
	emoji, ok := reactionEmoji[name]
	return emoji, ok
}
