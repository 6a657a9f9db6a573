package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/CallPipe/internal/api"
	"github.com/BTreeMap/CallPipe/internal/classifier"
	"github.com/BTreeMap/CallPipe/internal/coordinator"
	"github.com/BTreeMap/CallPipe/internal/dialogue"
	"github.com/BTreeMap/CallPipe/internal/genai"
	"github.com/BTreeMap/CallPipe/internal/sentiment"
	"github.com/BTreeMap/CallPipe/internal/session"
	"github.com/BTreeMap/CallPipe/internal/store"
	"github.com/BTreeMap/CallPipe/internal/telephony"
	"github.com/BTreeMap/CallPipe/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for CallPipe state data
	DefaultStateDir = "/var/lib/callpipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "callpipe.db"
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

	slog.Info("Bootstrapping CallPipe with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := run(flags); err != nil {
		slog.Error("CallPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("CallPipe exited successfully")
}

func run(flags Flags) error {
	st, err := store.New(buildStoreOptions(flags)...)
	if err != nil {
		return err
	}
	defer st.Close()

	tables, err := loadPhraseTables(flags)
	if err != nil {
		return err
	}

	cfg := coordinator.DefaultConfig()
	cfg.AcceptConfidence = util.ParseFloatEnv("ACCEPT_CONFIDENCE", cfg.AcceptConfidence)
	cfg.SilenceThreshold = util.ParseIntEnv("SILENCE_THRESHOLD", cfg.SilenceThreshold)
	cfg.MemoryCap = util.ParseIntEnv("MEMORY_CAP", cfg.MemoryCap)
	if *flags.lexiconFile != "" {
		lex, err := sentiment.LoadLexicon(*flags.lexiconFile)
		if err != nil {
			return err
		}
		cfg.Lexicon = lex
	}

	generator, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		return err
	}

	cls := classifier.New(tables, cfg.AcceptConfidence)
	registry := session.NewRegistry(cfg.SystemPrompt, cfg.MemoryCap)
	coord := coordinator.New(cfg, cls, registry, generator)
	driver := dialogue.NewDriver(coord, st)

	idleTimeout := util.ParseDurationEnv("SESSION_IDLE_TIMEOUT", session.DefaultIdleTimeout)
	janitor, err := session.NewJanitor(registry, idleTimeout, os.Getenv("SESSION_SWEEP_SPEC"))
	if err != nil {
		return err
	}
	janitor.Start()
	defer janitor.Stop()

	renderer := telephony.NewRenderer("/voice/turn")
	server := api.NewServer(driver, renderer, st, buildAPIOptions(flags)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Run(ctx)
}

// Config holds environment configuration
type Config struct {
	DatabaseURL     string
	StateDir        string
	OpenAIKey       string
	TwilioAuthToken string
	WebhookBaseURL  string
	APIAddr         string
	TablesFile      string
	LexiconFile     string
}

// Flags holds command line flag values
type Flags struct {
	stateDir        *string
	dbDSN           *string
	openaiKey       *string
	twilioAuthToken *string
	webhookBaseURL  *string
	apiAddr         *string
	tablesFile      *string
	lexiconFile     *string
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
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("CALLPIPE_STATE_DIR"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		TwilioAuthToken: os.Getenv("TWILIO_AUTH_TOKEN"),
		WebhookBaseURL:  os.Getenv("WEBHOOK_BASE_URL"),
		APIAddr:         os.Getenv("API_ADDR"),
		TablesFile:      os.Getenv("PHRASE_TABLES_FILE"),
		LexiconFile:     os.Getenv("SENTIMENT_LEXICON_FILE"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CALLPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"CALLPIPE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"TWILIO_AUTH_TOKEN_SET", config.TwilioAuthToken != "",
		"WEBHOOK_BASE_URL", config.WebhookBaseURL,
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:        flag.String("state-dir", config.StateDir, "state directory for CallPipe data (overrides $CALLPIPE_STATE_DIR)"),
		dbDSN:           flag.String("db-dsn", config.DatabaseURL, "database DSN for the transcript store (overrides $DATABASE_URL)"),
		openaiKey:       flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		twilioAuthToken: flag.String("twilio-auth-token", config.TwilioAuthToken, "Twilio auth token for webhook validation (overrides $TWILIO_AUTH_TOKEN)"),
		webhookBaseURL:  flag.String("webhook-base-url", config.WebhookBaseURL, "public base URL Twilio delivers webhooks to (overrides $WEBHOOK_BASE_URL)"),
		apiAddr:         flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		tablesFile:      flag.String("phrase-tables", config.TablesFile, "YAML phrase tables for classification (overrides $PHRASE_TABLES_FILE)"),
		lexiconFile:     flag.String("sentiment-lexicon", config.LexiconFile, "YAML sentiment lexicon (overrides $SENTIMENT_LEXICON_FILE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"twilioAuthTokenSet", *flags.twilioAuthToken != "",
		"webhookBaseURL", *flags.webhookBaseURL,
		"apiAddr", *flags.apiAddr,
		"tablesFile", *flags.tablesFile,
		"lexiconFile", *flags.lexiconFile)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// loadPhraseTables loads classifier phrase tables from the configured file,
// falling back to the built-in Hindi/English tables.
func loadPhraseTables(flags Flags) (classifier.Tables, error) {
	if *flags.tablesFile == "" {
		return classifier.DefaultTables(), nil
	}
	return classifier.LoadTables(*flags.tablesFile)
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(model))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.twilioAuthToken != "" && *flags.webhookBaseURL != "" {
		apiOpts = append(apiOpts, api.WithValidator(telephony.NewSignatureValidator(*flags.twilioAuthToken, *flags.webhookBaseURL)))
	} else {
		slog.Warn("Twilio webhook validation disabled; set TWILIO_AUTH_TOKEN and WEBHOOK_BASE_URL to enable it")
	}
	return apiOpts
}
