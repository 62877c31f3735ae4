package cmd

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/backstage/services/identifier/config"
	"example.com/backstage/services/identifier/internal/cache"
	"example.com/backstage/services/identifier/internal/database"
	"example.com/backstage/services/identifier/internal/mapping"
	"example.com/backstage/services/identifier/internal/messaging"
	"example.com/backstage/services/identifier/internal/metrics"
	"example.com/backstage/services/identifier/internal/repositories"
	"example.com/backstage/services/identifier/internal/search"
	"example.com/backstage/services/identifier/internal/sequence"
	"example.com/backstage/services/identifier/internal/services"
	"example.com/backstage/services/identifier/internal/tracing"
)

const redisKeyPrefix = "identifier:"

// app holds everything a command needs to serve identifiers
type app struct {
	cfg       config.Config
	db        *gorm.DB
	redis     *cache.RedisCache
	metrics   *metrics.Metrics
	tracer    tracing.Tracer
	publisher messaging.Publisher
	service   *services.IdentifierService
}

// bootstrap connects the stores and builds the identifier service. source
// names the process in published events.
func bootstrap(cfg config.Config, source string) (*app, error) {
	rt := &app{cfg: cfg, metrics: metrics.NewMetrics()}

	var hooks *metrics.Metrics
	if cfg.MetricsEnabled {
		hooks = rt.metrics
	}
	db, err := database.Connect(cfg.DB, hooks)
	if err != nil {
		return nil, err
	}
	rt.db = db
	if err := database.Migrate(db); err != nil {
		return nil, errors.Wrap(err, "failed to run migrations")
	}
	rt.metrics.SetHealth("database", database.Ping(db) == nil)

	rt.redis, err = cache.NewRedisCache(cfg.Redis)
	if err != nil {
		if cfg.Engine.CounterBackend == config.CounterBackendRedis {
			return nil, err
		}
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		rt.redis = cache.NewRedisCacheFromClient(nil)
	}
	if rt.redis.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		rt.metrics.SetHealth("redis", rt.redis.Ping(ctx) == nil)
		cancel()
	}

	var counters sequence.CounterStore
	switch cfg.Engine.CounterBackend {
	case config.CounterBackendRedis:
		counters = cache.NewRedisCounterStore(rt.redis.Client(), redisKeyPrefix)
	default:
		counters = repositories.NewCounterRepository(db)
	}

	var store mapping.Store = repositories.NewMappingRepository(db)
	if rt.redis.Enabled() {
		store = cache.NewCachedMappingStore(store, rt.redis, cfg.Engine.MappingCacheTTL, rt.metrics)
	}

	rt.tracer, err = tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		rt.tracer = tracing.Disabled()
	}

	rt.publisher, err = messaging.NewPublisher(cfg.Azure, source)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize event publisher, events will not be published")
		rt.publisher = messaging.NoopPublisher{}
	}

	var indexer services.Indexer
	if cfg.Elastic.Enabled {
		elasticClient, err := search.NewElasticClient(cfg.Elastic)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search projection")
		} else {
			indexer = elasticClient
		}
	}

	rt.service = services.NewIdentifierService(
		sequence.NewAllocator(counters),
		store,
		rt.publisher,
		indexer,
		rt.tracer,
		rt.metrics,
	)
	return rt, nil
}

// Close releases every connection the app opened
func (rt *app) Close() {
	if err := rt.publisher.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close event publisher")
	}
	if err := rt.redis.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close Redis connection")
	}
	rt.tracer.Close()
	if err := database.Close(rt.db); err != nil {
		log.Warn().Err(err).Msg("Failed to close database")
	}
}
