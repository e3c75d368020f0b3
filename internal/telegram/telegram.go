// Package telegram wraps the Telegram Bot API client for mentionbridge.
//
// The connection is established lazily on first use and cached. Callers must
// serialize calls to a single client; the internal mutex enforces this and
// also guards the connected flag. Each network call runs on a dedicated
// worker goroutine with a bounded wait, and the worker can never block or
// leak: the result channel is buffered and panics inside the worker are
// recovered into errors.
package telegram

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DefaultCallTimeout bounds how long a single API call may take.
const DefaultCallTimeout = 30 * time.Second

// Sender is an interface for sending Telegram replies (for production and testing)
type Sender interface {
	SendReply(ctx context.Context, chatID, messageID int64, text string) error
}

// AuthError reports a failure to establish the authenticated session. Unlike
// send failures it must not be swallowed: a dead session will not recover by
// retrying the action, so callers are expected to surface it rather than
// fold it into an ordinary failed send.
type AuthError struct {
	Cause error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("telegram authentication failed: %v", e.Cause)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// Opts holds configuration options for the Telegram client.
type Opts struct {
	BotToken    string
	APIEndpoint string
	HTTPClient  *http.Client
	Interactive bool
	CallTimeout time.Duration
	Input       io.Reader // token prompt input, defaults to stdin
}

// Option defines a configuration option for the Telegram client.
type Option func(*Opts)

// WithBotToken sets the bot token used for authentication.
func WithBotToken(token string) Option {
	return func(o *Opts) { o.BotToken = token }
}

// WithAPIEndpoint overrides the Bot API endpoint (used by tests).
func WithAPIEndpoint(endpoint string) Option {
	return func(o *Opts) { o.APIEndpoint = endpoint }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// WithInteractive enables the terminal token prompt when no token is
// configured.
func WithInteractive() Option {
	return func(o *Opts) { o.Interactive = true }
}

// WithCallTimeout bounds the wait for a single API call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Opts) { o.CallTimeout = d }
}

// Client wraps the Telegram Bot API for modular use.
type Client struct {
	cfg Opts

	mu        sync.Mutex
	connected bool
	bot       *tgbotapi.BotAPI
}

// Compile-time check that Client implements Sender.
var _ Sender = (*Client)(nil)

// NewClient creates a new Telegram client. No connection is made here; the
// session is established lazily on the first call that needs the network.
func NewClient(opts ...Option) *Client {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BotToken == "" {
		cfg.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	slog.Debug("Telegram client created", "token_set", cfg.BotToken != "", "interactive", cfg.Interactive)
	return &Client{cfg: cfg}
}

// SendReply posts text as a reply to the given message. The first call
// establishes the session; authentication failures propagate to the caller
// instead of being swallowed.
func (c *Client) SendReply(ctx context.Context, chatID, messageID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return err
	}

	bot := c.bot
	err := runBounded(ctx, c.cfg.CallTimeout, func() error {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ReplyToMessageID = int(messageID)
		_, err := bot.Send(msg)
		return err
	})
	if err != nil {
		slog.Error("Telegram SendReply failed", "error", err, "chat_id", chatID, "message_id", messageID)
		return err
	}
	slog.Debug("Telegram reply sent", "chat_id", chatID, "message_id", messageID)
	return nil
}

// connectLocked establishes the authenticated session once. The caller must
// hold c.mu.
func (c *Client) connectLocked(ctx context.Context) error {
	if c.connected {
		return nil
	}

	token := c.cfg.BotToken
	if token == "" && c.cfg.Interactive {
		var err error
		token, err = c.promptToken()
		if err != nil {
			return &AuthError{Cause: fmt.Errorf("token prompt failed: %w", err)}
		}
	}
	if token == "" {
		return &AuthError{Cause: fmt.Errorf("bot token must be provided")}
	}

	var bot *tgbotapi.BotAPI
	err := runBounded(ctx, c.cfg.CallTimeout, func() error {
		var err error
		bot, err = tgbotapi.NewBotAPIWithClient(token, c.cfg.APIEndpoint, c.cfg.HTTPClient)
		return err
	})
	if err != nil {
		// Deliberately not converted into a soft failure: a broken
		// session must surface, silently failing auth would be worse.
		return &AuthError{Cause: err}
	}

	c.bot = bot
	c.connected = true
	slog.Info("Telegram session established", "bot", bot.Self.UserName)
	return nil
}

// promptToken runs the interactive terminal login flow.
func (c *Client) promptToken() (string, error) {
	in := c.cfg.Input
	if in == nil {
		in = os.Stdin
	}
	fmt.Print("Enter Telegram bot token: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", fmt.Errorf("no token entered")
	}
	return token, nil
}

// runBounded executes op on a dedicated worker goroutine and waits for it,
// bounded by the context and the timeout. The result channel is buffered and
// panics are recovered inside the worker, so the worker terminates on every
// exit path even when the caller has stopped waiting.
func runBounded(ctx context.Context, timeout time.Duration, op func() error) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("telegram call panicked: %v", r)
			}
		}()
		done <- op()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return fmt.Errorf("telegram call timed out after %s", timeout)
	}
}

// MockClient implements Sender without network access (for tests).
type MockClient struct {
	Err   error
	Calls []string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) SendReply(ctx context.Context, chatID, messageID int64, text string) error {
	m.Calls = append(m.Calls, fmt.Sprintf("%d/%d", chatID, messageID))
	return m.Err
}
