package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"github.com/wonny/aodgrid/internal/export"
	"github.com/wonny/aodgrid/internal/external/earthdata"
	"github.com/wonny/aodgrid/internal/external/laads"
	"github.com/wonny/aodgrid/internal/external/s3store"
	"github.com/wonny/aodgrid/internal/manifest"
	"github.com/wonny/aodgrid/internal/metrics"
	"github.com/wonny/aodgrid/internal/pipeline"
	"github.com/wonny/aodgrid/internal/runconfig"
	"github.com/wonny/aodgrid/internal/swath"
	"github.com/wonny/aodgrid/pkg/config"
	"github.com/wonny/aodgrid/pkg/database"
	"github.com/wonny/aodgrid/pkg/httputil"
	"github.com/wonny/aodgrid/pkg/logger"
	"github.com/wonny/aodgrid/pkg/redis"
)

// redisPrefix namespaces every key this service writes
const redisPrefix = "aodgrid"

// app holds the wired process. Fields are filled in stages so that light
// commands (files list, db ping) do not build the whole pipeline.
type app struct {
	cfg *config.Config
	job *runconfig.Config
	log *logger.Logger

	redis *redis.Client
	db    *database.DB // nil without DATABASE_URL
	store manifest.Store

	catalog *laads.Client
}

// newApp loads both configuration layers and connects to optional backends
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	job, _, err := runconfig.Load(jobFile)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobFile, err)
	}

	a := &app{cfg: cfg, job: job, log: log}

	a.redis, err = redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	// DB 없으면 메모리 이력으로 동작
	a.db, err = database.New(ctx, cfg.Database)
	switch {
	case errors.Is(err, database.ErrNotConfigured):
		log.Warn("DATABASE_URL not set, run history is kept in memory")
		a.store = manifest.NewMemoryStore()
	case err != nil:
		a.redis.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	default:
		a.store = manifest.NewPostgresStore(a.db.Pool)
	}

	a.catalog = a.newCatalog()
	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	a.redis.Close()
}

// newCatalog builds the LAADS client with local and shared rate limits
func (a *app) newCatalog() *laads.Client {
	return laads.NewClient(a.laadsHTTP(), a.log, a.cfg.LAADS, a.cfg.Earthdata.Token).
		WithCache(redis.NewCache(a.redis, redisPrefix))
}

// laadsHTTP: 로컬 한도 + 공유 한도 (Redis 비활성 시 공유 한도는 통과)
func (a *app) laadsHTTP() *httputil.Client {
	lc := a.cfg.LAADS
	return httputil.NewWithTimeout(a.log, "laads", lc.Timeout).
		WithRetry(5, 2*time.Second).
		WithLocalLimit(lc.RatePerSec, 1).
		WithRateLimiter(redis.NewRateLimiter(a.redis, redisPrefix), redis.LAADSRateLimit(lc.RatePerSec))
}

// earthdataHTTP is the credentials endpoint client shared by every fetch worker
func (a *app) earthdataHTTP() *httputil.Client {
	return httputil.NewWithTimeout(a.log, "earthdata", 30*time.Second).
		WithRateLimiter(redis.NewRateLimiter(a.redis, redisPrefix), redis.EarthdataRateLimit)
}

// newFetcher picks S3 (temporary Earthdata keys) or HTTPS download
func (a *app) newFetcher(ctx context.Context) (pipeline.Fetcher, error) {
	dir := a.cfg.WorkDir
	if a.cfg.LAADS.FetchMode == "https" {
		return pipeline.NewHTTPSFetcher(a.catalog, dir), nil
	}

	provider := earthdata.NewProvider(a.earthdataHTTP(), a.log, a.cfg.Earthdata).
		WithCache(redis.NewCache(a.redis, redisPrefix))

	s3Client, err := s3store.NewClient(ctx, a.cfg.AWS.Region, provider)
	if err != nil {
		return nil, err
	}
	return pipeline.NewS3Fetcher(s3store.New(s3Client, a.cfg.LAADS.Bucket, a.log), dir), nil
}

// newMetrics returns the CloudWatch publisher when enabled
func (a *app) newMetrics(ctx context.Context) (metrics.Publisher, error) {
	if !a.cfg.Metrics.Enabled {
		return metrics.NopPublisher{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return metrics.NewCloudWatchPublisher(cloudwatch.NewFromConfig(awsCfg), a.cfg.Metrics.Namespace), nil
}

// newProcessor wires the full gridding pipeline
func (a *app) newProcessor(ctx context.Context, events pipeline.EventSink, keepDownloads bool) (*pipeline.Processor, error) {
	fetcher, err := a.newFetcher(ctx)
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}

	pub, err := a.newMetrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	writers := make([]export.Writer, 0, len(a.job.Output.Formats))
	for _, format := range a.job.Output.Formats {
		w, err := export.NewWriter(format, a.job.Output.ZarrChunk, a.log)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}

	return pipeline.NewProcessor(a.job, pipeline.Deps{
		Catalog:       a.catalog,
		Fetcher:       fetcher,
		Reader:        swath.NewNetCDFReader(a.log),
		Store:         a.store,
		Writers:       writers,
		Metrics:       pub,
		Locker:        redis.NewLocker(a.redis, redisPrefix),
		Events:        events,
		KeepDownloads: keepDownloads,
	}, a.log)
}
