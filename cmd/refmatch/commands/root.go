package commands

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/scrypster/refmatch/internal/config"
	"github.com/scrypster/refmatch/internal/engine"
	"github.com/scrypster/refmatch/internal/llm"
	"github.com/scrypster/refmatch/internal/storage"
	"github.com/scrypster/refmatch/internal/storage/postgres"
	"github.com/scrypster/refmatch/internal/storage/sqlite"
)

var envFile string

// NewRootCmd creates the refmatch root command and its subcommands.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refmatch",
		Short: "Match people by the refs they share",
		Long: `refmatch finds people who share your refs, explains each match with a
generated personality insight and remembers recent searches.

Configuration comes from REFMATCH_* environment variables, optionally
loaded from a .env file.

Examples:
  refmatch serve
  refmatch migrate --dir ./migrations
  refmatch vectors backfill
  refmatch personalities refresh
  refmatch backup --keep 48`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewVectorsCmd())
	cmd.AddCommand(NewPersonalitiesCmd())
	cmd.AddCommand(NewBackupCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads the env file, when present, then the configuration.
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	return config.LoadConfig()
}

// openStore opens the configured backend; both apply their schema on open.
func openStore(cfg *config.Config) (storage.Store, error) {
	log.Printf("Opening %s store at %s", cfg.Storage.StorageEngine, sanitizeDSN(cfg.Storage.DSN))

	switch cfg.Storage.StorageEngine {
	case "postgres":
		return postgres.NewStore(cfg.Storage.DSN)
	case "sqlite":
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return sqlite.NewStore(cfg.Storage.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage engine: %q", cfg.Storage.StorageEngine)
	}
}

// storeDB returns the store's connection pool and bookkeeping placeholder.
func storeDB(cfg *config.Config, store storage.Store) (*sql.DB, string, error) {
	withDB, ok := store.(interface{ GetDB() *sql.DB })
	if !ok {
		return nil, "", fmt.Errorf("storage engine %q does not expose a database", cfg.Storage.StorageEngine)
	}
	if cfg.Storage.StorageEngine == "postgres" {
		return withDB.GetDB(), storage.PlaceholderDollar, nil
	}
	return withDB.GetDB(), storage.PlaceholderQuestion, nil
}

// buildEngine creates the LLM clients and wires the engine over store.
// metrics may be nil.
func buildEngine(cfg *config.Config, store storage.Store, metrics *engine.Metrics) (*engine.Engine, error) {
	gen, embedder, err := llm.NewClients(llm.Config{
		Provider:       cfg.LLM.LLMProvider,
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		ChatModel:      cfg.LLM.ChatModel,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Timeout:        cfg.LLM.Timeout,
		OnStateChange:  metrics.CircuitStateChanged,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing LLM clients: %w", err)
	}
	if cfg.LLM.LLMProvider == "none" {
		log.Printf("LLM provider disabled: personality insights use fallback text and vector ranking is off")
	}

	return engine.New(store, gen, embedder, engine.Config{
		VectorLimit:            cfg.Search.VectorLimit,
		FillerTarget:           cfg.Search.FillerTarget,
		MaxPageSize:            cfg.Search.MaxPageSize,
		PersonalityConcurrency: cfg.Search.PersonalityConcurrency,
		DedupWindow:            cfg.Search.DedupWindow,
		CompositeLimit:         cfg.Personality.CompositeLimit,
		RefreshPerSecond:       cfg.Personality.RefreshPerSecond,
		Scoring: engine.ScoringPolicy{
			ExactMatchWeight:   cfg.Scoring.ExactMatchWeight,
			BaselineSimilarity: cfg.Scoring.BaselineSimilarity,
		},
	}, metrics), nil
}

// sanitizeDSN hides the password in a URL-style DSN for logging.
func sanitizeDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
