// Package discord wraps the Discord REST API v10 for mentionbridge.
//
// It provides the three message operations the updater needs: adding a
// reaction, posting a threaded reply, and fetching a message. Success codes
// are pinned per endpoint (204 for reaction add, 200 for reply post and
// message fetch); any other status is an error.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the Discord REST API v10 endpoint.
const DefaultBaseURL = "https://discord.com/api/v10"

// Discord allows 50 requests per second globally per bot token.
const requestsPerSecond = 50

// Sender is an interface for Discord message operations (for production and testing)
type Sender interface {
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
	PostReply(ctx context.Context, channelID, messageID, content string) error
	GetMessage(ctx context.Context, channelID, messageID string) (ChannelMessage, error)
}

// ChannelMessage is the subset of Discord's message object the updater reads.
type ChannelMessage struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Author  struct {
		Username string `json:"username"`
	} `json:"author"`
	Timestamp string `json:"timestamp"`
}

// StatusError reports a non-success HTTP status from the Discord API.
type StatusError struct {
	Status   int
	Endpoint string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("discord %s returned status %d", e.Endpoint, e.Status)
}

// Opts holds configuration options for the Discord client.
type Opts struct {
	BotToken   string
	BaseURL    string
	HTTPClient *http.Client
}

// Option defines a configuration option for the Discord client.
type Option func(*Opts)

// WithBotToken sets the bot token used for authentication.
func WithBotToken(token string) Option {
	return func(o *Opts) { o.BotToken = token }
}

// WithBaseURL overrides the API base URL (used by tests).
func WithBaseURL(base string) Option {
	return func(o *Opts) { o.BaseURL = base }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client talks to the Discord REST API with bot-token authentication.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Compile-time check that Client implements Sender.
var _ Sender = (*Client)(nil)

// NewClient creates a new Discord client, applying any provided options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	// Fallback to environment variables if not provided via options
	if cfg.BotToken == "" {
		cfg.BotToken = os.Getenv("DISCORD_BOT_TOKEN")
	}
	slog.Debug("Discord client config loaded", "token_set", cfg.BotToken != "", "base_url_set", cfg.BaseURL != "")

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("discord bot token must be provided")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.BotToken,
		httpClient: cfg.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}, nil
}

// AddReaction adds emoji to the given message on behalf of the bot.
// PUT /channels/{channel}/messages/{message}/reactions/{emoji}/@me, success 204.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	endpoint := fmt.Sprintf("%s/channels/%s/messages/%s/reactions/%s/@me",
		c.baseURL, channelID, messageID, url.PathEscape(emoji))
	resp, err := c.do(ctx, http.MethodPut, endpoint, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return &StatusError{Status: resp.StatusCode, Endpoint: "reaction add"}
	}
	return nil
}

// PostReply posts content as a reply referencing the given message.
// POST /channels/{channel}/messages, success 200.
func (c *Client) PostReply(ctx context.Context, channelID, messageID, content string) error {
	payload := map[string]interface{}{
		"content": content,
		"message_reference": map[string]string{
			"channel_id": channelID,
			"message_id": messageID,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode reply payload failed: %w", err)
	}
	endpoint := fmt.Sprintf("%s/channels/%s/messages", c.baseURL, channelID)
	resp, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Status: resp.StatusCode, Endpoint: "reply post"}
	}
	return nil
}

// GetMessage fetches the current content of the given message.
// GET /channels/{channel}/messages/{message}, success 200.
func (c *Client) GetMessage(ctx context.Context, channelID, messageID string) (ChannelMessage, error) {
	endpoint := fmt.Sprintf("%s/channels/%s/messages/%s", c.baseURL, channelID, messageID)
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ChannelMessage{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ChannelMessage{}, &StatusError{Status: resp.StatusCode, Endpoint: "message fetch"}
	}
	var msg ChannelMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return ChannelMessage{}, fmt.Errorf("decode message failed: %w", err)
	}
	return msg, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build discord request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discord request failed: %w", err)
	}
	return resp, nil
}

// MockClient implements Sender without network access (for tests).
// It records calls and returns the configured error, if any.
type MockClient struct {
	Err      error
	Message  ChannelMessage
	Calls    []string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	m.Calls = append(m.Calls, fmt.Sprintf("react %s/%s %s", channelID, messageID, emoji))
	return m.Err
}

func (m *MockClient) PostReply(ctx context.Context, channelID, messageID, content string) error {
	m.Calls = append(m.Calls, fmt.Sprintf("reply %s/%s", channelID, messageID))
	return m.Err
}

func (m *MockClient) GetMessage(ctx context.Context, channelID, messageID string) (ChannelMessage, error) {
	m.Calls = append(m.Calls, fmt.Sprintf("get %s/%s", channelID, messageID))
	return m.Message, m.Err
}
