package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/freyabot/freya/internal/bot"
	"github.com/freyabot/freya/internal/config"
	"github.com/freyabot/freya/internal/embed"
	"github.com/freyabot/freya/internal/history"
	"github.com/freyabot/freya/internal/knowledge"
	"github.com/freyabot/freya/internal/line"
	"github.com/freyabot/freya/internal/profile"
	"github.com/freyabot/freya/internal/queue"
	"github.com/freyabot/freya/internal/retrieval"
	"github.com/freyabot/freya/internal/rules"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process one batch of pending messages",
	Long: `Claims pending messages, generates answers from the knowledge base,
and pushes them to users. Run periodically (for example from cron).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess()
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}

func runProcess() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateProcess(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := newLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("creating connection pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	embedder, err := embed.NewGemini(ctx, cfg.EmbedderModel, cfg.EmbeddingDimension,
		logger.With("component", "embed"))
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	ranker := retrieval.NewRanker(
		embedder,
		knowledge.New(pool, logger.With("component", "knowledge")),
		retrieval.Config{
			TopK:  cfg.RetrievalTopK,
			Floor: float32(cfg.SimilarityFloor),
		},
		logger.With("component", "retrieval"),
	)

	processor := bot.NewProcessor(
		queue.New(pool, logger.With("component", "queue")),
		profile.NewStore(pool, logger.With("component", "profile")),
		rules.NewEngine(),
		ranker,
		line.NewClient(cfg.ChannelAccessToken, logger.With("component", "line")),
		history.NewRecorder(pool, logger.With("component", "history")),
		bot.ProcessorConfig{
			MaxAge:     time.Duration(cfg.PendingMaxAgeMinutes) * time.Minute,
			BatchLimit: cfg.BatchLimit,
		},
		logger.With("component", "processor"),
	)

	n, err := processor.Run(ctx)
	if err != nil {
		return fmt.Errorf("processing batch: %w", err)
	}

	fmt.Printf("processed %d pending messages\n", n)
	return nil
}
