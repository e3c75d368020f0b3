package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/opencontrib/mentionbridge/internal/api"
	"github.com/opencontrib/mentionbridge/internal/discord"
	"github.com/opencontrib/mentionbridge/internal/ledger"
	"github.com/opencontrib/mentionbridge/internal/lockfile"
	"github.com/opencontrib/mentionbridge/internal/reddit"
	"github.com/opencontrib/mentionbridge/internal/telegram"
	"github.com/opencontrib/mentionbridge/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for mentionbridge state data
	DefaultStateDir = "/var/lib/mentionbridge"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "mentionbridge.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Guard the state directory against a second running instance
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	// Build module options
	ledgerOpts := buildLedgerOptions(flags)
	discordOpts := buildDiscordOptions(flags)
	redditOpts := buildRedditOptions(config)
	telegramOpts := buildTelegramOptions(config, flags)
	apiOpts := buildAPIOptions(config, flags)

	// Start the service
	slog.Info("Bootstrapping mentionbridge with configured modules")
	slog.Debug("Module options counts", "ledger", len(ledgerOpts), "discord", len(discordOpts), "reddit", len(redditOpts), "telegram", len(telegramOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := api.Run(ledgerOpts, discordOpts, redditOpts, telegramOpts, apiOpts); err != nil {
		slog.Error("mentionbridge failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("mentionbridge exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL         string
	StateDir            string
	APIAddr             string
	DiscordToken        string
	DiscordGuilds       []string
	RedditClientID      string
	RedditClientSecret  string
	RedditUsername      string
	RedditPassword      string
	RedditUserAgent     string
	TelegramToken       string
	TelegramInteractive bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir     *string
	dbDSN        *string
	apiAddr      *string
	discordToken *string
	guilds       *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		StateDir:            os.Getenv("MENTIONBRIDGE_STATE_DIR"),
		APIAddr:             os.Getenv("API_ADDR"),
		DiscordToken:        os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordGuilds:       util.ParseStringListEnv("DISCORD_GUILD_ALLOWLIST"),
		RedditClientID:      os.Getenv("REDDIT_CLIENT_ID"),
		RedditClientSecret:  os.Getenv("REDDIT_CLIENT_SECRET"),
		RedditUsername:      os.Getenv("REDDIT_USERNAME"),
		RedditPassword:      os.Getenv("REDDIT_PASSWORD"),
		RedditUserAgent:     os.Getenv("REDDIT_USER_AGENT"),
		TelegramToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramInteractive: util.ParseBoolEnv("TELEGRAM_INTERACTIVE", false),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No MENTIONBRIDGE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("MENTIONBRIDGE_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"MENTIONBRIDGE_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"DISCORD_BOT_TOKEN_SET", config.DiscordToken != "",
		"DISCORD_GUILD_ALLOWLIST", config.DiscordGuilds,
		"REDDIT_CLIENT_ID_SET", config.RedditClientID != "",
		"TELEGRAM_BOT_TOKEN_SET", config.TelegramToken != "",
		"TELEGRAM_INTERACTIVE", config.TelegramInteractive)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for mentionbridge data (overrides $MENTIONBRIDGE_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "database DSN for the mention ledger (overrides $DATABASE_URL)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		discordToken: flag.String("discord-token", config.DiscordToken, "Discord bot token (overrides $DISCORD_BOT_TOKEN)"),
		guilds:       flag.String("discord-guilds", "", "comma-separated Discord guild allow-list (overrides $DISCORD_GUILD_ALLOWLIST)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"discordTokenSet", *flags.discordToken != "",
		"guilds", *flags.guilds)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if ledger.DetectDSNType(*flags.dbDSN) != "postgres" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
		slog.Debug("State directory created successfully", "state_dir", stateDir)
	}
	return nil
}

// buildLedgerOptions constructs ledger configuration options
func buildLedgerOptions(flags Flags) []ledger.Option {
	var ledgerOpts []ledger.Option
	if *flags.dbDSN != "" {
		ledgerOpts = append(ledgerOpts, ledger.WithDSN(*flags.dbDSN))
	}
	return ledgerOpts
}

// buildDiscordOptions constructs Discord client configuration options
func buildDiscordOptions(flags Flags) []discord.Option {
	var discordOpts []discord.Option
	if *flags.discordToken != "" {
		discordOpts = append(discordOpts, discord.WithBotToken(*flags.discordToken))
	}
	return discordOpts
}

// buildRedditOptions constructs Reddit client configuration options
func buildRedditOptions(config Config) []reddit.Option {
	var redditOpts []reddit.Option
	if config.RedditClientID != "" {
		redditOpts = append(redditOpts, reddit.WithClientID(config.RedditClientID))
	}
	if config.RedditClientSecret != "" {
		redditOpts = append(redditOpts, reddit.WithClientSecret(config.RedditClientSecret))
	}
	if config.RedditUsername != "" || config.RedditPassword != "" {
		redditOpts = append(redditOpts, reddit.WithCredentials(config.RedditUsername, config.RedditPassword))
	}
	if config.RedditUserAgent != "" {
		redditOpts = append(redditOpts, reddit.WithUserAgent(config.RedditUserAgent))
	}
	return redditOpts
}

// buildTelegramOptions constructs Telegram client configuration options
func buildTelegramOptions(config Config, flags Flags) []telegram.Option {
	var telegramOpts []telegram.Option
	if config.TelegramToken != "" {
		telegramOpts = append(telegramOpts, telegram.WithBotToken(config.TelegramToken))
	}
	if config.TelegramInteractive {
		telegramOpts = append(telegramOpts, telegram.WithInteractive())
	}
	return telegramOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(config Config, flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	guilds := config.DiscordGuilds
	if *flags.guilds != "" {
		guilds = util.SplitCommaList(*flags.guilds)
	}
	if len(guilds) > 0 {
		apiOpts = append(apiOpts, api.WithAllowedGuilds(guilds))
	}
	return apiOpts
}
