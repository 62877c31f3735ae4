package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/backstage/services/identifier/internal/cache"
	"example.com/backstage/services/identifier/internal/messaging"
	"example.com/backstage/services/identifier/internal/services"
)

const reindexLockKey = redisKeyPrefix + "lock:reindex"

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long: `Start the background worker that issues identifiers requested over
Azure Service Bus and projects missed serials into Elasticsearch`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	rt, err := bootstrap(cfg, "identifier-worker")
	if err != nil {
		return err
	}
	defer rt.Close()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Azure.QueueConnStr != "" {
		consumer, err := messaging.NewConsumer(cfg.Azure, rt.metrics)
		if err != nil {
			return err
		}
		defer consumer.Close()

		g.Go(func() error {
			return consumer.Run(ctx, messaging.NewProcessor(rt.service))
		})
	} else {
		log.Warn().Msg("Azure Service Bus connection string not provided, request consumer disabled")
	}

	// Only one worker replica reindexes at a time when Redis is available.
	var locker *cache.Locker
	if rt.redis.Enabled() {
		locker = cache.NewLocker(rt.redis.Client())
	}

	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Engine.ReindexInterval),
			gocron.NewTask(func() {
				reindex(ctx, rt.service, locker, cfg.Engine.ReindexBatchSize, cfg.Engine.ReindexLockTTL)
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}

		log.Info().Dur("interval", cfg.Engine.ReindexInterval).Msg("Starting search reindex job")
		scheduler.Start()

		<-ctx.Done()
		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}

func reindex(ctx context.Context, service *services.IdentifierService, locker *cache.Locker, batchSize int, lockTTL time.Duration) {
	err := locker.RunExclusive(ctx, reindexLockKey, lockTTL, func(ctx context.Context) error {
		n, err := service.ReIndex(ctx, batchSize)
		if n > 0 {
			log.Info().Int("indexed", n).Msg("Reindexed serials")
		}
		return err
	})
	switch {
	case errors.Is(err, cache.ErrLocked):
		log.Debug().Msg("Reindex already running elsewhere")
	case err != nil:
		log.Error().Err(err).Msg("Failed to reindex serials")
	}
}
