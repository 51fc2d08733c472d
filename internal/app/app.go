// Package app builds the long-lived services of the harvester from
// configuration and exposes the operations the CLI runs.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/cavaliercoder/grab"
	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/JakeFAU/sermon-harvester/internal/api"
	"github.com/JakeFAU/sermon-harvester/internal/catalog"
	"github.com/JakeFAU/sermon-harvester/internal/clock/system"
	"github.com/JakeFAU/sermon-harvester/internal/config"
	"github.com/JakeFAU/sermon-harvester/internal/crawler"
	"github.com/JakeFAU/sermon-harvester/internal/dispatch"
	"github.com/JakeFAU/sermon-harvester/internal/download"
	collyfetcher "github.com/JakeFAU/sermon-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/sermon-harvester/internal/id/uuid"
	"github.com/JakeFAU/sermon-harvester/internal/naming"
	"github.com/JakeFAU/sermon-harvester/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/sermon-harvester/internal/publisher/pubsub"
	"github.com/JakeFAU/sermon-harvester/internal/sermon"
	"github.com/JakeFAU/sermon-harvester/internal/source"
	"github.com/JakeFAU/sermon-harvester/internal/source/registry"
	gcsstore "github.com/JakeFAU/sermon-harvester/internal/storage/gcs"
	"github.com/JakeFAU/sermon-harvester/internal/storage/local"
	"github.com/JakeFAU/sermon-harvester/internal/storage/postgres"
	"github.com/JakeFAU/sermon-harvester/internal/textnorm"
)

// Option adjusts how New wires the services.
type Option func(*options)

type options struct {
	publisher catalog.Publisher
	topic     string
	fetcher   crawler.Fetcher
	poolCheck func() bool
}

// WithPublisher replaces the Pub/Sub hand-off publisher.
func WithPublisher(p catalog.Publisher, topic string) Option {
	return func(o *options) { o.publisher, o.topic = p, topic }
}

// WithFetcher replaces the page fetcher that sits below retries and politeness.
func WithFetcher(f crawler.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithPoolCheck overrides the worker pool capability check.
func WithPoolCheck(check func() bool) Option {
	return func(o *options) { o.poolCheck = check }
}

// App holds the shared services.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	adapters  map[string]source.Adapter
	harvester *source.Harvester
	downloads *download.Manager
	catalog   *local.BlobStore
	ids       catalog.IDGenerator
	runs      *api.RunLog
	checks    map[string]api.ReadyCheck
	closers   []func() error
}

// New wires every service described by cfg.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{poolCheck: dispatch.PoolAvailable}
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		ids:    uuid.New(),
		runs:   api.NewRunLog(100),
		checks: make(map[string]api.ReadyCheck),
	}

	base := o.fetcher
	if base == nil {
		base = collyfetcher.New(collyfetcher.Config{
			UserAgent:     cfg.HTTP.UserAgent,
			RespectRobots: cfg.HTTP.RespectRobots,
			Timeout:       cfg.RequestTimeout(),
		})
	}
	fetcher := &crawler.RetryingFetcher{
		Fetcher: base,
		Policy: crawler.NewExponentialRetryPolicy(crawler.RetryConfig{
			MaxRetries: cfg.HTTP.MaxRetries,
			BaseDelay:  time.Duration(cfg.HTTP.BackoffInitialMs) * time.Millisecond,
			MaxDelay:   time.Duration(cfg.HTTP.BackoffMaxMs) * time.Millisecond,
		}),
		Limiter: ratelimit.New(ratelimit.Config{Delay: time.Duration(cfg.HTTP.DelayMs) * time.Millisecond}),
		Logger:  logger.Named("fetch"),
	}
	paginator := &crawler.Paginator{Fetcher: fetcher, MaxPages: cfg.Crawl.MaxPages, Logger: logger.Named("paginator")}
	namer := naming.New(textnorm.Normalizer{Replacement: cfg.Naming.Replacement, Transliterate: cfg.Naming.Transliterate})

	adapters, err := registry.BuildAll(cfg.Sources, registry.Deps{
		Fetcher:   fetcher,
		Paginator: paginator,
		Namer:     namer,
		Logger:    logger.Named("source"),
	})
	if err != nil {
		return nil, fmt.Errorf("build sources: %w", err)
	}
	a.adapters = adapters

	writer, err := a.buildWriter(ctx, o)
	if err != nil {
		a.Close()
		return nil, err
	}

	available := dispatch.AvailableCores()
	parseCores := dispatch.ParseCores(cfg.Crawl.Cores, available, logger)
	a.harvester = &source.Harvester{
		Executor:  dispatch.New(parseCores, dispatch.WithJobTimeout(cfg.JobTimeout()), dispatch.WithPoolCheck(o.poolCheck)),
		Persister: writer,
		Logger:    logger,
	}

	downloadCores := dispatch.ParseCores(cfg.Download.Cores, available, logger)
	client := grab.NewClient()
	if cfg.HTTP.UserAgent != "" {
		client.UserAgent = cfg.HTTP.UserAgent
	}
	a.downloads = &download.Manager{
		Dir:             cfg.Download.Dir,
		Extensions:      cfg.Download.Extensions,
		Continue:        cfg.Download.Continue,
		Transcode:       cfg.Download.Transcode,
		Transcoder:      download.FFmpeg{Path: cfg.Download.FFmpegPath, Logger: logger.Named("ffmpeg")},
		StaleClaimAfter: cfg.StaleClaimAfter(),
		Client:          client,
		Executor:        dispatch.New(downloadCores, dispatch.WithJobTimeout(cfg.JobTimeout()), dispatch.WithPoolCheck(o.poolCheck)),
		Logger:          logger,
	}

	logger.Info("application services initialized",
		zap.Int("sources", len(adapters)),
		zap.Int("parse_workers", a.harvester.Executor.Workers()),
		zap.Int("download_workers", a.downloads.Executor.Workers()),
	)
	return a, nil
}

func (a *App) buildWriter(ctx context.Context, o options) (*catalog.Writer, error) {
	cfg := a.cfg
	localStore, err := local.New(local.Config{BaseDir: cfg.Storage.Local.Dir})
	if err != nil {
		return nil, fmt.Errorf("init catalog dir: %w", err)
	}
	a.catalog = localStore
	a.checks["catalog"] = func(context.Context) error {
		_, err := os.Stat(localStore.Dir())
		return err
	}
	writer := &catalog.Writer{
		Blobs:  []catalog.BlobStore{localStore},
		Clock:  system.New(),
		IDs:    a.ids,
		Logger: a.logger,
	}

	if cfg.Storage.GCS.Bucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		mirror, err := gcsstore.New(client, gcsstore.Config{Bucket: cfg.Storage.GCS.Bucket, Prefix: cfg.Storage.GCS.Prefix})
		if err != nil {
			return nil, fmt.Errorf("init gcs mirror: %w", err)
		}
		writer.Blobs = append(writer.Blobs, mirror)
		a.logger.Info("mirroring catalog tables to gcs", zap.String("bucket", cfg.Storage.GCS.Bucket))
	}

	if cfg.Storage.Postgres.DSN != "" {
		store, err := postgres.NewRecordStore(ctx, postgres.Config{DSN: cfg.Storage.Postgres.DSN, Table: cfg.Storage.Postgres.Table})
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		a.checks["postgres"] = store.Ping
		writer.Records = store
	}

	switch {
	case o.publisher != nil:
		writer.Publisher, writer.Topic = o.publisher, o.topic
	case cfg.PubSub.TopicName != "":
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub client: %w", err)
		}
		pub := pubsubpublisher.New(client, cfg.PubSub.TopicName)
		a.closers = append(a.closers, pub.Close)
		writer.Publisher, writer.Topic = pub, cfg.PubSub.TopicName
	}
	return writer, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Downloads returns the download manager.
func (a *App) Downloads() *download.Manager {
	return a.downloads
}

// Sources lists the configured adapter names in sorted order.
func (a *App) Sources() []string {
	names := make([]string, 0, len(a.adapters))
	for name := range a.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Crawl harvests one source. An empty entry uses the configured entry URL.
func (a *App) Crawl(ctx context.Context, name, entry string) (source.Result, error) {
	adapter, ok := a.adapters[name]
	if !ok {
		return source.Result{}, fmt.Errorf("unknown source %q", name)
	}
	if entry == "" {
		if sc, ok := a.cfg.Source(name); ok {
			entry = sc.EntryURL
		}
	}
	run := api.Run{Kind: "harvest", Source: name, Entry: entry, Started: time.Now().UTC()}
	res, err := a.harvester.Harvest(ctx, adapter, entry)
	run.ID = res.Receipt.RunID
	run.Records, run.Failures = res.Table.Len(), len(res.Failures)
	a.finishRun(run, err)
	return res, err
}

// CrawlAll harvests every source that has a configured entry URL. A failing
// source does not stop the others.
func (a *App) CrawlAll(ctx context.Context) error {
	var errs []error
	for _, name := range a.Sources() {
		sc, _ := a.cfg.Source(name)
		if sc.EntryURL == "" {
			a.logger.Info("source has no entry url, skipping", zap.String("source", name))
			continue
		}
		if _, err := a.Crawl(ctx, name, ""); err != nil {
			a.logger.Error("harvest failed", zap.String("source", name), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadCatalog reads and compiles catalog files. Without paths every table
// file in the catalog directory is used. Unreadable files are skipped unless
// none could be read.
func (a *App) LoadCatalog(paths []string) ([]sermon.Record, error) {
	if len(paths) == 0 {
		matches, err := filepath.Glob(filepath.Join(a.catalog.Dir(), "*.csv"))
		if err != nil {
			return nil, fmt.Errorf("list catalog dir: %w", err)
		}
		sort.Strings(matches)
		paths = matches
	}
	tables := make([][]sermon.Record, 0, len(paths))
	var errs []error
	for _, p := range paths {
		records, err := catalog.ReadFile(p, a.logger)
		if err != nil {
			a.logger.Error("catalog table unreadable, skipping", zap.String("path", p), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		tables = append(tables, records)
	}
	if len(tables) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	var compiler catalog.Compiler = catalog.Distinct{}
	records := compiler.Compile(tables...)
	a.logger.Info("catalog loaded", zap.Int("files", len(paths)), zap.Int("records", len(records)))
	return records, nil
}

// Download fetches the audio of records.
func (a *App) Download(ctx context.Context, records []sermon.Record) []download.Outcome {
	id, _ := a.ids.NewID()
	run := api.Run{ID: id, Kind: "download", Started: time.Now().UTC()}
	outcomes := a.downloads.Run(ctx, records)
	run.Records = len(outcomes)
	for _, out := range outcomes {
		if out.Action == download.ActionFailed {
			run.Failures++
		}
	}
	a.finishRun(run, nil)
	return outcomes
}

// Schedule re-runs every harvest, and downloads when enabled, each interval
// until ctx ends. The first run starts immediately; overlapping ticks are skipped.
func (a *App) Schedule(ctx context.Context) error {
	interval := a.cfg.ScheduleInterval()
	scheduler := gocron.NewScheduler(time.UTC)
	var running sync.Mutex
	_, err := scheduler.Every(interval).Do(func() {
		if !running.TryLock() {
			a.logger.Warn("previous scheduled run still active, skipping tick")
			return
		}
		defer running.Unlock()
		a.scheduledRun(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule harvest: %w", err)
	}
	a.logger.Info("scheduler started", zap.Duration("interval", interval), zap.Bool("download", a.cfg.Schedule.Download))
	scheduler.StartAsync()
	<-ctx.Done()
	scheduler.Stop()
	a.logger.Info("scheduler stopped")
	return nil
}

func (a *App) scheduledRun(ctx context.Context) {
	if err := a.CrawlAll(ctx); err != nil {
		a.logger.Warn("scheduled harvest finished with errors", zap.Error(err))
	}
	if !a.cfg.Schedule.Download || ctx.Err() != nil {
		return
	}
	records, err := a.LoadCatalog(nil)
	if err != nil {
		a.logger.Error("load catalog failed", zap.Error(err))
		return
	}
	a.Download(ctx, records)
}

// Serve runs the ops server when metrics.listen_addr is set.
func (a *App) Serve(ctx context.Context) error {
	if a.cfg.Metrics.ListenAddr == "" {
		return nil
	}
	return api.NewServer(a.checks, a.runs, a.logger).ListenAndServe(ctx, a.cfg.Metrics.ListenAddr)
}

// Runs returns the recent run log.
func (a *App) Runs() *api.RunLog {
	return a.runs
}

func (a *App) finishRun(run api.Run, err error) {
	run.Finished = time.Now().UTC()
	if err != nil {
		run.Error = err.Error()
	}
	a.runs.Add(run)
}

// Close releases clients and flushes the logger.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	a.logger.Info("application services closed")
	_ = a.logger.Sync()
}
