package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"boop/server/internal/config"
	"boop/server/internal/database"
	"boop/server/internal/presence"
	"boop/server/internal/store"
	"boop/server/internal/store/memory"
	"boop/server/internal/store/mongo"
	"boop/server/internal/store/postgres"
)

var (
	debugFlag bool
	logger    *slog.Logger
	cfg       *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "boop",
	Short:         "Real-time proximity alerts and boops for groups of friends",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		// Set up logging based on the debug flag
		logLevel := cfg.SlogLevel()
		if debugFlag {
			logLevel = slog.LevelDebug
		}

		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
	rootCmd.AddCommand(serveCmd, tokenCmd, seedCmd)
}

// openStore connects the configured store driver
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return postgres.New(pool), nil
	case config.DriverMongo:
		db, err := database.NewMongoDatabase(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		s, err := mongo.New(ctx, db)
		if err != nil {
			_ = db.Client().Disconnect(ctx)
			return nil, err
		}
		return s, nil
	default:
		return memory.New(), nil
	}
}

// openPresence returns the configured tracker and a func releasing it
func openPresence(ctx context.Context) (presence.Tracker, func(), error) {
	if cfg.PresenceDriver != config.DriverRedis {
		return presence.NewMemoryTracker(cfg.PresenceTTL), func() {}, nil
	}

	client, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return presence.NewRedisTracker(client, cfg.PresenceTTL), func() { closeRedis(client) }, nil
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		logger.Warn("failed to close redis client", "error", err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error("command failed", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
