// Package cli defines the Cobra commands of interviewctl.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aura-interview/backend/config"
	"github.com/aura-interview/backend/pkg/database"
	"github.com/aura-interview/backend/pkg/redis"
)

var (
	verbose bool
	version = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:           "interviewctl",
	Short:         "Operate the live interview core",
	Long:          `interviewctl applies the schema, re-dispatches scoring, rebuilds reports and issues interview tokens.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level to stderr")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(rescoreCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(purgeAudioCmd)
	rootCmd.AddCommand(queueCmd)
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// env holds the connections a command needs. close releases whatever was opened.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
	rdb    *redis.Client
}

func (e *env) close() {
	if e.rdb != nil {
		_ = e.rdb.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
	_ = e.logger.Sync()
}

func openEnv(ctx context.Context, withRedis bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	e := &env{cfg: cfg, logger: newLogger()}
	if e.pool, err = database.NewPostgresPool(ctx, cfg.Database, e.logger); err != nil {
		e.close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if withRedis {
		if e.rdb, err = redis.NewClient(ctx, cfg.Redis, e.logger); err != nil {
			e.close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
	}
	return e, nil
}
