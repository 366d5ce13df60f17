package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Taichi-iskw/yt-rank/internal/config"
	"github.com/Taichi-iskw/yt-rank/internal/logger"
	"github.com/Taichi-iskw/yt-rank/internal/repository"
	"github.com/Taichi-iskw/yt-rank/internal/service/cache"
	"github.com/Taichi-iskw/yt-rank/internal/service/collector"
	"github.com/Taichi-iskw/yt-rank/internal/service/ranking"
	"github.com/Taichi-iskw/yt-rank/internal/service/youtube"
	"github.com/Taichi-iskw/yt-rank/internal/telemetry"
)

const serviceName = "yt-rank"

// Services bundles everything a command needs, wired from one configuration
type Services struct {
	Config    *config.Config
	Pool      *pgxpool.Pool
	Channels  repository.ChannelRepository
	Videos    repository.VideoRepository
	Source    youtube.ChannelSource
	Cache     *cache.Cache
	Telemetry *telemetry.Telemetry
	Collector collector.Collector
	Ranking   ranking.RankingService
}

// ServiceFactory creates Services instances
type ServiceFactory struct {
	logWriter io.Writer
}

// NewServiceFactory creates a new service factory. CLI output goes to stdout,
// so logs go to stderr unless WithLogWriter says otherwise.
func NewServiceFactory() *ServiceFactory {
	return &ServiceFactory{logWriter: os.Stderr}
}

// WithLogWriter sends logs to w
func (f *ServiceFactory) WithLogWriter(w io.Writer) *ServiceFactory {
	f.logWriter = w
	return f
}

func (f *ServiceFactory) initLogging(level string) {
	logger.InitWithWriter(f.logWriter, level, serviceName)
}

// CreateServices loads configuration, connects to Postgres and Redis, and wires
// the collector and ranking engine. The returned cleanup closes every connection.
func (f *ServiceFactory) CreateServices(ctx context.Context) (*Services, func(), error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	f.initLogging(cfg.LogLevel)

	dbPool, err := config.NewDatabasePool(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	tel := telemetry.New(dbPool)
	rankingCache := cache.New(cfg.RedisURL, cfg.Ranking.CacheTTL, tel)

	channelRepo := repository.NewChannelRepository(dbPool)
	categoryRepo := repository.NewCategoryRepository(dbPool)
	videoRepo := repository.NewVideoRepository(dbPool)

	source := youtube.NewChannelSource(youtube.Options{
		Timeout:              cfg.YouTube.Timeout,
		EngagementSampleSize: cfg.YouTube.EngagementSampleSize,
	})

	coll := collector.NewCollector(collector.Dependencies{
		Source:     source,
		Channels:   channelRepo,
		Categories: categoryRepo,
		Videos:     videoRepo,
		Cache:      rankingCache,
		Telemetry:  tel,
	}, collector.Options{
		BatchSize:         cfg.Collector.BatchSize,
		StaleAfter:        cfg.Collector.StaleAfter,
		MaxPerRun:         cfg.Collector.MaxPerRun,
		SnapshotRetention: cfg.Collector.SnapshotRetention,
	})

	resolver := ranking.NewSourceResolver(source, cfg.YouTube.Credentials())

	svc := ranking.NewRankingService(channelRepo, rankingCache, resolver, ranking.Options{
		DefaultPageSize: cfg.Ranking.DefaultPageSize,
		MaxPageSize:     cfg.Ranking.MaxPageSize,
		TrendThreshold:  cfg.Ranking.TrendThreshold,
		TrendLimit:      cfg.Ranking.TrendLimit,
	})

	services := &Services{
		Config:    cfg,
		Pool:      dbPool,
		Channels:  channelRepo,
		Videos:    videoRepo,
		Source:    source,
		Cache:     rankingCache,
		Telemetry: tel,
		Collector: coll,
		Ranking:   svc,
	}

	cleanup := func() {
		if err := rankingCache.Close(); err != nil {
			log := logger.With("cmd")
			log.Warn().Err(err).Msg("failed to close redis client")
		}
		config.CloseDatabasePool(dbPool)
	}

	return services, cleanup, nil
}

// NewCredentialPool builds a fresh pool for one run from the configured keys
func (s *Services) NewCredentialPool() (*collector.CredentialPool, error) {
	creds := s.Config.YouTube.Credentials()
	if len(creds) == 0 {
		return nil, fmt.Errorf("no YouTube API keys configured: set youtube.api_keys or YOUTUBE_API_KEYS")
	}
	return collector.NewCredentialPool(creds, s.Config.YouTube.DailyQuota), nil
}
