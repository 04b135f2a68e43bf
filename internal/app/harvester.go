package app

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-article-harvester/internal/config"
	"github.com/samvad-hq/samvad-article-harvester/internal/crawler"
	"github.com/samvad-hq/samvad-article-harvester/internal/dedup"
	"github.com/samvad-hq/samvad-article-harvester/internal/document"
	"github.com/samvad-hq/samvad-article-harvester/internal/extract"
	"github.com/samvad-hq/samvad-article-harvester/internal/ledger"
	"github.com/samvad-hq/samvad-article-harvester/internal/logger"
	"github.com/samvad-hq/samvad-article-harvester/internal/pacing"
	"github.com/samvad-hq/samvad-article-harvester/internal/storage"
	"github.com/samvad-hq/samvad-article-harvester/pkg/feed"
	"github.com/samvad-hq/samvad-article-harvester/pkg/httpclient"
	"github.com/samvad-hq/samvad-article-harvester/pkg/publishers"
)

// Option adjusts how a Harvester is built.
type Option func(*buildOptions)

type buildOptions struct {
	sleeper  pacing.Sleeper
	now      func() time.Time
	client   httpclient.Client
	listOnly bool
}

// WithSleeper replaces the timer-based sleeper used for pacing and backoff.
func WithSleeper(s pacing.Sleeper) Option {
	return func(o *buildOptions) { o.sleeper = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *buildOptions) { o.now = now }
}

// ForListing builds a harvester that only serves list-only runs. The journal
// is not opened, so nothing under the output directory is created or locked.
func ForListing() Option {
	return func(o *buildOptions) { o.listOnly = true }
}

// WithHTTPClient replaces the resty client used for the feed and article pages.
func WithHTTPClient(c httpclient.Client) Option {
	return func(o *buildOptions) { o.client = c }
}

// Harvester represents the article harvester runtime. It owns the journal
// lock, the ledger store, optional publishers and the crawl service.
type Harvester struct {
	cfg          *config.Config
	crawlService *crawler.Service
	ledgers      *ledger.Store
	fanout       *publishers.Fanout
	journal      storage.Journal
	listOnly     bool
	now          func() time.Time
	log          logger.Logger
}

// NewHarvester builds a harvester runtime from config. The config is clamped
// with ApplyPolicy and every adjustment is logged.
func NewHarvester(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*Harvester, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	bo := buildOptions{now: time.Now}
	for _, opt := range opts {
		opt(&bo)
	}

	logAdjustments(log, cfg.ApplyPolicy())

	journalType := cfg.JournalType
	if bo.listOnly {
		journalType = storage.TypeNone
	}
	journal, err := storage.NewJournal(journalType, cfg.JournalPath, storage.Options{
		RunTTL:          cfg.JournalRetention,
		CleanupInterval: cfg.JournalCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}
	log.InfoObj("journal initialized", "journal_config", map[string]any{
		"type":                     journalType,
		"path":                     cfg.JournalPath,
		"retention_seconds":        int(cfg.JournalRetention.Seconds()),
		"cleanup_interval_seconds": int(cfg.JournalCleanupInterval.Seconds()),
	})

	fanout, err := buildPublishers(ctx, cfg, log)
	if err != nil {
		journal.Close()
		return nil, err
	}

	client := bo.client
	if client == nil {
		client = NewHTTPClient(cfg)
	}
	policy := pacingPolicy(cfg)
	store := ledger.NewStore(cfg.OutputBaseDir, log)

	fetcher := crawler.NewArticleFetcher(client, extract.New(extract.Options{
		Selectors:           cfg.ContentSelectors,
		ReadabilityFallback: cfg.ReadabilityFallback,
	}), crawler.FetcherOptions{
		Timeout: cfg.Timeout,
		Pacing:  policy,
		Sleeper: bo.sleeper,
		Log:     log,
	})

	source := feed.NewRSSSource(cfg.RSSFeedURL, client, nil)
	deps := crawler.Deps{
		Feed:      source,
		Filter:    dedup.NewFilter(store),
		Fetcher:   fetcher,
		Ledgers:   store,
		Documents: document.NewWriter(cfg.OutputBaseDir),
	}
	if fanout.Size() > 0 {
		deps.Events = fanout
	}

	svc, err := crawler.NewService(deps, crawler.Options{
		MaxWorkers: cfg.MaxWorkers,
		RetryLimit: cfg.RetryLimit,
		Location:   cfg.Location,
		Pacing:     policy,
		Sleeper:    bo.sleeper,
		Now:        bo.now,
		Log:        log,
	})
	if err != nil {
		fanout.Close()
		journal.Close()
		return nil, fmt.Errorf("init crawler: %w", err)
	}

	log.InfoObj("harvester initialized", "harvester_config", map[string]any{
		"feed":        source.URL(),
		"output":      cfg.OutputBaseDir,
		"workers":     svc.Workers(),
		"retry_limit": cfg.RetryLimit,
		"pacing_mode": cfg.PacingMode,
		"timezone":    cfg.Location.String(),
		"publishers":  fanout.Size(),
	})

	return &Harvester{
		cfg:          cfg,
		crawlService: svc,
		ledgers:      store,
		fanout:       fanout,
		journal:      journal,
		listOnly:     bo.listOnly,
		now:          bo.now,
		log:          log,
	}, nil
}

// Run performs one crawl for targetDate. Crawls that got past date
// resolution are recorded in the journal; list-only runs are not. A harvester
// built with ForListing refuses crawls.
func (h *Harvester) Run(ctx context.Context, targetDate string, listOnly bool) (*crawler.RunReport, error) {
	if h == nil || h.crawlService == nil {
		return nil, fmt.Errorf("harvester is not initialized")
	}
	if h.listOnly && !listOnly {
		return nil, fmt.Errorf("harvester was built for list-only runs")
	}

	start := h.now()
	report, err := h.crawlService.Run(ctx, targetDate, listOnly)
	if report != nil && !listOnly {
		h.record(report)
	}
	if err != nil {
		return report, err
	}

	h.log.InfoObj("harvest finished", "harvest_meta", map[string]any{
		"date":       report.Date,
		"list_only":  listOnly,
		"elapsed_ms": h.now().Sub(start).Milliseconds(),
	})
	return report, nil
}

// Close releases publishers and the journal lock.
func (h *Harvester) Close() {
	if h == nil {
		return
	}
	if err := h.fanout.Close(); err != nil {
		h.log.ErrorObj("publisher close failed", "error", err.Error())
	}
	if h.journal == nil {
		return
	}
	if err := h.journal.Close(); err != nil {
		h.log.ErrorObj("journal close failed", "error", err.Error())
	}
}

func (h *Harvester) record(r *crawler.RunReport) {
	rec := storage.RunRecord{
		ID:         r.RunID,
		Date:       r.Date,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Total:      r.Total,
		Success:    r.Success,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
		Error:      r.Error,
	}
	if err := h.journal.Record(rec); err != nil {
		h.log.WarnObj("journal record failed", "journal_error", map[string]any{
			"run_id": r.RunID,
			"error":  err.Error(),
		})
	}
}

func buildPublishers(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if cfg.PublishersFile == "" {
		return publishers.NewFanout(nil), nil
	}

	reg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := reg.Enabled()
	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, p := range enabled {
		summaries = append(summaries, map[string]string{"id": p.ID, "type": p.Type})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubs), nil
}

// NewHTTPClient builds the resty client shared by the feed, article and check
// requests. The configured User-Agent and Accept-Language go on every request.
func NewHTTPClient(cfg *config.Config) *httpclient.RestyClient {
	return httpclient.NewRestyClient(cfg.Timeout,
		httpclient.WithDefaultHeaders(requestHeaders(cfg)),
		httpclient.WithRedirectLimit(cfg.MaxRedirects),
	)
}

func requestHeaders(cfg *config.Config) map[string]string {
	return map[string]string{
		"User-Agent":      cfg.UserAgent,
		"Accept-Language": cfg.AcceptLanguage,
	}
}

func pacingPolicy(cfg *config.Config) pacing.Policy {
	if cfg.PacingMode == config.PacingFixed {
		return pacing.NewFixed(cfg.DelayBounds())
	}
	return pacing.NewAdaptive(cfg.Location)
}

func logAdjustments(log logger.Logger, adj []config.Adjustment) {
	for _, a := range adj {
		log.WarnObj("config value clamped", "config_adjustment", a)
	}
}
