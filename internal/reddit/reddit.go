// Package reddit wraps the Reddit API for mentionbridge.
//
// It implements the OAuth2 script-app flow (password grant) and the single
// write operation the updater needs: posting a reply to a submission or
// comment. Remote failures are surfaced as distinct error types so the
// updater can log platform errors, transport errors and everything else
// separately.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default API endpoints.
const (
	DefaultBaseURL  = "https://oauth.reddit.com"
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"
)

// Reddit allows 100 requests per minute for OAuth clients.
const requestsPerMinute = 100

// Fullname prefixes for the two thing kinds the updater replies to.
const (
	commentKind    = "t1_"
	submissionKind = "t3_"
)

// CommentFullname returns the API fullname for a comment ID.
func CommentFullname(id string) string { return commentKind + id }

// SubmissionFullname returns the API fullname for a submission ID.
func SubmissionFullname(id string) string { return submissionKind + id }

// Sender is an interface for Reddit write operations (for production and testing)
type Sender interface {
	// Reply posts text as a reply to the thing identified by fullname
	// (t1_* for comments, t3_* for submissions).
	Reply(ctx context.Context, fullname, text string) error
}

// APIError reports an error the Reddit platform itself returned, either as a
// non-success status or as entries in the response's json.errors array.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reddit api error (status %d): %s", e.Status, e.Detail)
}

// TransportError reports a client/network failure before any platform
// response was received.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("reddit request failed: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// Opts holds configuration options for the Reddit client.
// This focuses solely on the script-app OAuth2 credentials.
type Opts struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string
	BaseURL      string
	TokenURL     string
	HTTPClient   *http.Client
}

// Option defines a configuration option for the Reddit client.
type Option func(*Opts)

func WithClientID(id string) Option {
	return func(o *Opts) { o.ClientID = id }
}

func WithClientSecret(secret string) Option {
	return func(o *Opts) { o.ClientSecret = secret }
}

func WithCredentials(username, password string) Option {
	return func(o *Opts) {
		o.Username = username
		o.Password = password
	}
}

func WithUserAgent(ua string) Option {
	return func(o *Opts) { o.UserAgent = ua }
}

// WithBaseURL overrides both API endpoints (used by tests).
func WithBaseURL(base string) Option {
	return func(o *Opts) {
		o.BaseURL = base
		o.TokenURL = base + "/api/v1/access_token"
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client talks to the Reddit API as an authenticated script app.
type Client struct {
	baseURL    string
	tokenURL   string
	cfg        Opts
	httpClient *http.Client
	limiter    *rate.Limiter

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// Compile-time check that Client implements Sender.
var _ Sender = (*Client)(nil)

// NewClient creates a new Reddit client, applying any provided options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	// Fallback to environment variables if not provided via options
	if cfg.ClientID == "" {
		cfg.ClientID = os.Getenv("REDDIT_CLIENT_ID")
	}
	if cfg.ClientSecret == "" {
		cfg.ClientSecret = os.Getenv("REDDIT_CLIENT_SECRET")
	}
	if cfg.Username == "" {
		cfg.Username = os.Getenv("REDDIT_USERNAME")
	}
	if cfg.Password == "" {
		cfg.Password = os.Getenv("REDDIT_PASSWORD")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = os.Getenv("REDDIT_USER_AGENT")
	}
	slog.Debug("Reddit client config loaded",
		"client_id_set", cfg.ClientID != "",
		"client_secret_set", cfg.ClientSecret != "",
		"username_set", cfg.Username != "")

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("reddit client id and secret must be provided")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("reddit username and password must be provided")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "mentionbridge/1.0"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		tokenURL:   cfg.TokenURL,
		cfg:        cfg,
		httpClient: cfg.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerMinute)/60, 5),
	}, nil
}

// Reply posts text as a reply to the given thing.
// POST /api/comment with thing_id and api_type=json.
func (c *Client) Reply(ctx context.Context, fullname, text string) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return &TransportError{Err: err}
	}

	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("thing_id", fullname)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/comment", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build reply request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Detail: "reply rejected"}
	}

	// api_type=json responses report errors in json.errors even on 200.
	var body struct {
		JSON struct {
			Errors [][]interface{} `json:"errors"`
		} `json:"json"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode reply response failed: %w", err)
	}
	if len(body.JSON.Errors) > 0 {
		return &APIError{Status: resp.StatusCode, Detail: fmt.Sprintf("%v", body.JSON.Errors)}
	}
	slog.Debug("Reddit reply posted", "thing_id", fullname)
	return nil
}

// token returns a valid access token, fetching one lazily when missing or
// expired.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.cfg.Username)
	form.Set("password", c.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request failed: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Status: resp.StatusCode, Detail: "token fetch rejected"}
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response failed: %w", err)
	}
	if body.AccessToken == "" {
		return "", &APIError{Status: resp.StatusCode, Detail: "empty access token"}
	}

	c.accessToken = body.AccessToken
	// Refresh a minute early to avoid using a token at the edge of expiry.
	c.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn)*time.Second - time.Minute)
	slog.Debug("Reddit access token refreshed", "expires_in", body.ExpiresIn)
	return c.accessToken, nil
}

// MockClient implements Sender without network access (for tests).
type MockClient struct {
	Err   error
	Calls []string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Reply(ctx context.Context, fullname, text string) error {
	m.Calls = append(m.Calls, fullname)
	return m.Err
}
