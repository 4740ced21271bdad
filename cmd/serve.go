package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/freyabot/freya/api"
	"github.com/freyabot/freya/db"
	"github.com/freyabot/freya/internal/bot"
	"github.com/freyabot/freya/internal/config"
	"github.com/freyabot/freya/internal/dedup"
	"github.com/freyabot/freya/internal/line"
	"github.com/freyabot/freya/internal/profile"
	"github.com/freyabot/freya/internal/queue"
	"github.com/freyabot/freya/internal/rules"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook HTTP server",
	Long: `Starts the webhook server that receives LINE events.

Rule-matched questions are answered immediately; everything else gets an
acknowledgement and is queued for the batch processor (see "process").`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := newLogger(cfg)
	logger.Info("starting freya webhook server", "version", Version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("creating connection pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	handler := bot.NewHandler(
		dedup.New(cfg.DedupCapacity),
		rules.NewEngine(),
		profile.NewStore(pool, logger.With("component", "profile")),
		queue.New(pool, logger.With("component", "queue")),
		line.NewClient(cfg.ChannelAccessToken, logger.With("component", "line")),
		logger.With("component", "handler"),
	)

	server := api.NewServer(api.ServerConfig{
		Logger:        logger.With("component", "api"),
		ChannelSecret: cfg.ChannelSecret,
		Events:        handler,
		DB:            pool,
	})

	return server.Run(ctx, cfg.ListenAddr)
}
