// Package api provides HTTP handlers and the main API server logic for
// mentionbridge.
//
// It exposes RESTful endpoints for reacting and replying to tracked mentions,
// resolving canonical message records from platform URLs, and ingesting newly
// processed items into the ledger.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opencontrib/mentionbridge/internal/discord"
	"github.com/opencontrib/mentionbridge/internal/ledger"
	"github.com/opencontrib/mentionbridge/internal/reddit"
	"github.com/opencontrib/mentionbridge/internal/telegram"
	"github.com/opencontrib/mentionbridge/internal/updater"
)

const (
	// DefaultAPIAddr is the default listen address for the API server.
	DefaultAPIAddr = ":8080"
	// DefaultLogLimit caps how many audit entries GET /logs returns when no
	// limit parameter is given.
	DefaultLogLimit = 50
)

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address (e.g. ":8080").
	Addr string
	// AllowedGuilds restricts which Discord servers mention URLs may point at.
	AllowedGuilds []string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address for the API server.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithAllowedGuilds sets the Discord guild allow-list.
func WithAllowedGuilds(guilds []string) Option {
	return func(o *Opts) {
		o.AllowedGuilds = guilds
	}
}

// Server holds the API dependencies: the platform dispatcher and the ledger.
type Server struct {
	dispatcher *updater.Dispatcher
	lg         ledger.Ledger
	addr       string
}

// NewServer creates an API server over the given dispatcher and ledger.
func NewServer(d *updater.Dispatcher, lg ledger.Ledger, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAPIAddr
	}
	return &Server{dispatcher: d, lg: lg, addr: cfg.Addr}
}

// Handler returns the routed http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/react", s.reactHandler)
	mux.HandleFunc("/reply", s.replyHandler)
	mux.HandleFunc("/message", s.messageHandler)
	mux.HandleFunc("/mentions", s.mentionsHandler)
	mux.HandleFunc("/mentions/processed", s.processedHandler)
	mux.HandleFunc("/mentions/last", s.lastHandler)
	mux.HandleFunc("/logs", s.logsHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Run builds the ledger, the platform clients, the updaters and the dispatcher
// from the given module options, then serves the API until the listener fails.
func Run(ledgerOpts []ledger.Option, discordOpts []discord.Option, redditOpts []reddit.Option, telegramOpts []telegram.Option, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	lg, err := openLedger(ledgerOpts)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer lg.Close()

	discordClient, err := discord.NewClient(discordOpts...)
	if err != nil {
		return fmt.Errorf("failed to create Discord client: %w", err)
	}
	redditClient, err := reddit.NewClient(redditOpts...)
	if err != nil {
		return fmt.Errorf("failed to create Reddit client: %w", err)
	}
	telegramClient := telegram.NewClient(telegramOpts...)

	dispatcher := updater.NewDispatcher(
		updater.NewDiscordUpdater(discordClient, lg, cfg.AllowedGuilds),
		updater.NewRedditUpdater(redditClient, lg),
		updater.NewTelegramUpdater(telegramClient, lg),
	)

	srv := NewServer(dispatcher, lg, apiOpts...)
	slog.Info("mentionbridge API running", "addr", srv.addr)
	httpSrv := &http.Server{
		Addr:              srv.addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return httpSrv.ListenAndServe()
}

// openLedger selects a ledger backend from the configured DSN: PostgreSQL for
// postgres-looking connection strings, SQLite for file paths, in-memory when
// no DSN is configured.
func openLedger(opts []ledger.Option) (ledger.Ledger, error) {
	var cfg ledger.Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Debug("No database DSN provided, using in-memory ledger")
		return ledger.NewInMemoryLedger(), nil
	}
	if ledger.DetectDSNType(cfg.DSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, opening PostgreSQL ledger")
		return ledger.NewPostgresLedger(opts...)
	}
	slog.Debug("Detected SQLite DSN, opening SQLite ledger", "db_path", cfg.DSN)
	return ledger.NewSQLiteLedger(opts...)
}
