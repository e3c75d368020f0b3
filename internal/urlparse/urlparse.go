// Package urlparse extracts platform-specific resource identifiers from raw
// message URLs. The parsers are pure functions; each platform keeps the exact
// matching rules its remote API requires.
package urlparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	discordMessageRe = regexp.MustCompile(`^https://discord\.com/channels/(\d+)/(\d+)/(\d+)$`)
	// Comment IDs are base-36. The length floor keeps short slug words (e.g.
	// "the") from being mistaken for an ID.
	redditCommentIDRe = regexp.MustCompile(`^[0-9a-zA-Z]{4,}$`)
)

// DiscordRef identifies a single Discord message.
type DiscordRef struct {
	GuildID   string
	ChannelID string
	MessageID string
}

// Discord parses a Discord message URL of the form
// https://discord.com/channels/{guild}/{channel}/{message} with three numeric
// path segments. The guild must additionally be a member of allowedGuilds;
// a syntactically valid URL pointing at a foreign guild is not recognized.
func Discord(raw string, allowedGuilds []string) (DiscordRef, bool) {
	m := discordMessageRe.FindStringSubmatch(raw)
	if m == nil {
		return DiscordRef{}, false
	}
	ref := DiscordRef{GuildID: m[1], ChannelID: m[2], MessageID: m[3]}
	for _, g := range allowedGuilds {
		if g == ref.GuildID {
			return ref, true
		}
	}
	return DiscordRef{}, false
}

// Reddit parses a Reddit URL into a submission ID and, when present, a
// comment ID. The submission ID is the path segment immediately after the
// literal "comments" segment. A comment ID is only recognized two segments
// further on, and only when it looks like a real base-36 identifier of at
// least 4 characters; the intermediate segment is the human-readable slug.
// URLs without a "comments" segment yield ("", "").
func Reddit(raw string) (submissionID, commentID string) {
	segments := strings.Split(strings.Trim(raw, "/"), "/")
	for i, seg := range segments {
		if seg != "comments" || i+1 >= len(segments) {
			continue
		}
		submissionID = segments[i+1]
		if i+3 < len(segments) {
			candidate := segments[i+3]
			if redditCommentIDRe.MatchString(candidate) {
				commentID = candidate
			}
		}
		return submissionID, commentID
	}
	return "", ""
}

// Telegram parses a Telegram message URL by taking the last two path
// segments as the chat ID and message ID. Unlike the Discord and Reddit
// parsers it returns an error on malformed input rather than a
// not-recognized value; callers treat that as an input fault.
func Telegram(raw string) (chatID, messageID int64, err error) {
	segments := strings.Split(strings.TrimRight(raw, "/"), "/")
	if len(segments) < 2 {
		return 0, 0, fmt.Errorf("telegram url %q has too few segments", raw)
	}
	chatID, err = strconv.ParseInt(segments[len(segments)-2], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("telegram url %q: invalid chat id: %w", raw, err)
	}
	messageID, err = strconv.ParseInt(segments[len(segments)-1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("telegram url %q: invalid message id: %w", raw, err)
	}
	return chatID, messageID, nil
}
