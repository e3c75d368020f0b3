package updater

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/opencontrib/mentionbridge/internal/models"
)

// Dispatcher selects the correct updater for a platform tag or a raw URL and
// forwards action calls, isolating callers from platform differences. It
// performs no retry and no queueing: callers invoke at most once per action.
type Dispatcher struct {
	updaters map[models.Platform]Updater
}

// NewDispatcher builds a dispatcher over the given updaters.
func NewDispatcher(updaters ...Updater) *Dispatcher {
	m := make(map[models.Platform]Updater, len(updaters))
	for _, u := range updaters {
		m[u.Platform()] = u
	}
	return &Dispatcher{updaters: m}
}

// ForPlatform returns the updater registered for the platform tag.
func (d *Dispatcher) ForPlatform(p models.Platform) (Updater, bool) {
	u, ok := d.updaters[p]
	return u, ok
}

// PlatformForURL infers the platform from a URL's host.
func PlatformForURL(raw string) (models.Platform, bool) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	switch {
	case host == "discord.com":
		return models.PlatformDiscord, true
	case host == "reddit.com" || strings.HasSuffix(host, ".reddit.com"):
		return models.PlatformReddit, true
	case host == "t.me" || host == "telegram.me" || host == "telegram.org":
		return models.PlatformTelegram, true
	default:
		return "", false
	}
}

// ForURL returns the updater whose platform matches the URL's host.
func (d *Dispatcher) ForURL(raw string) (Updater, bool) {
	p, ok := PlatformForURL(raw)
	if !ok {
		return nil, false
	}
	return d.ForPlatform(p)
}

// AddReactionToMessage forwards a reaction to the platform's updater.
// An unregistered platform is an input error and yields false.
func (d *Dispatcher) AddReactionToMessage(ctx context.Context, p models.Platform, url, reactionName string) (bool, error) {
	u, ok := d.ForPlatform(p)
	if !ok {
		slog.Warn("Dispatcher: no updater for platform", "platform", p)
		return false, nil
	}
	return u.AddReactionToMessage(ctx, url, reactionName)
}

// AddReplyToMessage forwards a reply to the platform's updater.
func (d *Dispatcher) AddReplyToMessage(ctx context.Context, p models.Platform, url, text string) (bool, error) {
	u, ok := d.ForPlatform(p)
	if !ok {
		slog.Warn("Dispatcher: no updater for platform", "platform", p)
		return false, nil
	}
	return u.AddReplyToMessage(ctx, url, text)
}

// MessageFromURL dispatches a fetch by the URL's host.
func (d *Dispatcher) MessageFromURL(ctx context.Context, raw string) models.Message {
	u, ok := d.ForURL(raw)
	if !ok {
		slog.Warn("Dispatcher: no updater for URL", "url", raw)
		return models.FailedMessage("No platform recognized for URL: " + raw)
	}
	return u.MessageFromURL(ctx, raw)
}
