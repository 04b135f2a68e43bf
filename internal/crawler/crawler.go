package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samvad-hq/samvad-article-harvester/internal/domain"
	"github.com/samvad-hq/samvad-article-harvester/internal/ledger"
	"github.com/samvad-hq/samvad-article-harvester/internal/logger"
	"github.com/samvad-hq/samvad-article-harvester/internal/pacing"
	"github.com/samvad-hq/samvad-article-harvester/pkg/feed"
	"github.com/samvad-hq/samvad-article-harvester/pkg/publishers"
)

// MaxWorkersCap bounds the worker pool whatever the configuration says.
const MaxWorkersCap = 3

// ErrFeed wraps failures to fetch or parse the feed.
var ErrFeed = errors.New("feed unavailable")

// Deps are the collaborators of a Service. Events may be nil.
type Deps struct {
	Feed      feed.Source
	Filter    URLFilter
	Fetcher   Fetcher
	Ledgers   LedgerStore
	Documents DocumentSaver
	Events    EventPublisher
}

// Options tune a Service.
type Options struct {
	MaxWorkers int
	RetryLimit int
	Location   *time.Location
	Pacing     pacing.Policy
	Sleeper    pacing.Sleeper
	Now        func() time.Time
	Log        logger.Logger
}

// Service orchestrates one day's crawl: feed, dedup, bounded fetch pool,
// paced collection, then ledger commit.
type Service struct {
	deps       Deps
	workers    int
	retryLimit int
	loc        *time.Location
	pacing     pacing.Policy
	sleeper    pacing.Sleeper
	now        func() time.Time
	newRunID   func() string
	log        logger.Logger
}

// NewService validates deps and applies defaults. MaxWorkers is clamped to
// [1, MaxWorkersCap].
func NewService(deps Deps, opts Options) (*Service, error) {
	switch {
	case deps.Feed == nil:
		return nil, fmt.Errorf("crawler requires a feed source")
	case deps.Filter == nil:
		return nil, fmt.Errorf("crawler requires a url filter")
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("crawler requires an article fetcher")
	case deps.Ledgers == nil:
		return nil, fmt.Errorf("crawler requires a ledger store")
	case deps.Documents == nil:
		return nil, fmt.Errorf("crawler requires a document saver")
	}

	workers := opts.MaxWorkers
	if workers > MaxWorkersCap {
		workers = MaxWorkersCap
	}
	if workers < 1 {
		workers = 1
	}
	retry := opts.RetryLimit
	if retry < 1 {
		retry = 1
	}

	s := &Service{
		deps:       deps,
		workers:    workers,
		retryLimit: retry,
		loc:        opts.Location,
		pacing:     opts.Pacing,
		sleeper:    opts.Sleeper,
		now:        opts.Now,
		newRunID:   uuid.NewString,
		log:        logger.Ensure(opts.Log),
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.pacing == nil {
		s.pacing = pacing.NewAdaptive(s.loc)
	}
	if s.sleeper == nil {
		s.sleeper = pacing.TimerSleeper{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Workers returns the effective pool size.
func (s *Service) Workers() int { return s.workers }

// Run crawls the articles published on targetDate. With listOnly it only
// reports candidates and how many are new, touching neither article pages
// nor ledgers. Feed failures return a report with Error set together with an
// ErrFeed error; ledger failures return the full report and a
// ledger.ErrCommit error.
func (s *Service) Run(ctx context.Context, targetDate string, listOnly bool) (*RunReport, error) {
	if s == nil {
		return nil, fmt.Errorf("crawler service is not initialized")
	}

	started := s.now().In(s.loc)
	day, err := ResolveDate(targetDate, started)
	if err != nil {
		return nil, err
	}
	date := day.Format(DateLayout)

	report := &RunReport{
		RunID:     s.newRunID(),
		Date:      date,
		ListOnly:  listOnly,
		StartedAt: started,
		Errors:    []FailureDetail{},
	}
	finish := func() *RunReport {
		report.FinishedAt = s.now().In(s.loc)
		if report.SuccessRate == "" {
			report.SuccessRate = SuccessRate(report.Success, report.Total)
		}
		return report
	}

	entries, err := s.deps.Feed.Entries(ctx)
	if err != nil {
		report.Error = err.Error()
		s.log.ErrorObj("feed fetch failed", "feed_error", map[string]any{
			"run_id": report.RunID,
			"date":   date,
			"error":  err.Error(),
		})
		return finish(), fmt.Errorf("%w: %w", ErrFeed, err)
	}

	candidates := feed.FilterByDate(entries, day, s.loc)
	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		urls = append(urls, c.URL)
	}

	newURLs, err := s.deps.Filter.FilterNew(urls, date)
	if err != nil {
		report.Error = err.Error()
		return finish(), fmt.Errorf("dedup: %w", err)
	}

	s.log.InfoObj("feed candidates resolved", "crawl_plan", map[string]any{
		"run_id":       report.RunID,
		"date":         date,
		"feed_entries": len(entries),
		"candidates":   len(candidates),
		"new":          len(newURLs),
		"list_only":    listOnly,
	})

	if listOnly {
		report.Candidates = candidates
		report.Count = len(candidates)
		report.NewCount = len(newURLs)
		return finish(), nil
	}

	report.Skipped = len(candidates) - len(newURLs)
	if len(newURLs) == 0 {
		s.log.InfoObj("nothing new to crawl", "crawl_skip", map[string]any{
			"run_id":  report.RunID,
			"date":    date,
			"skipped": report.Skipped,
		})
		return finish(), nil
	}

	global, err := s.deps.Ledgers.Load()
	if err != nil {
		report.Error = err.Error()
		return finish(), fmt.Errorf("load global ledger: %w", err)
	}
	previous, _, err := s.deps.Ledgers.LoadDate(date)
	if err != nil {
		report.Error = err.Error()
		return finish(), fmt.Errorf("load date ledger: %w", err)
	}

	outcomes := s.collect(ctx, report, date, newURLs)
	report.tally(outcomes)

	global.Merge(date, s.now().In(s.loc), outcomes)
	dateLedger := ledger.NewDateLedger(date, previous, outcomes)
	if err := s.deps.Ledgers.Commit(dateLedger, global); err != nil {
		if !errors.Is(err, ledger.ErrCommit) {
			err = fmt.Errorf("%w: %w", ledger.ErrCommit, err)
		}
		report.Error = err.Error()
		s.log.ErrorObj("ledger commit failed", "ledger_error", map[string]any{
			"run_id": report.RunID,
			"date":   date,
			"error":  err.Error(),
		})
		return finish(), err
	}

	s.log.InfoObj("crawl completed", "crawl_result", map[string]any{
		"run_id":       report.RunID,
		"date":         date,
		"total":        report.Total,
		"success":      report.Success,
		"failed":       report.Failed,
		"success_rate": report.SuccessRate,
	})
	return finish(), nil
}

// collect dispatches urls to the pool and handles outcomes in completion
// order. Pacing runs between completions only. Documents are numbered on
// from the last one already saved for date.
func (s *Service) collect(ctx context.Context, report *RunReport, date string, urls []string) []domain.FetchOutcome {
	results := dispatch(ctx, urls, s.workers, func(ctx context.Context, u string) domain.FetchOutcome {
		return s.deps.Fetcher.FetchArticle(ctx, u, s.retryLimit)
	})

	outcomes := make([]domain.FetchOutcome, 0, len(urls))
	first := s.deps.Documents.NextIndex(date)
	pace := true
	index := 0
	for outcome := range results {
		index++
		outcome = s.handle(ctx, report, date, first+index-1, index, len(urls), outcome)
		outcomes = append(outcomes, outcome)

		if index < len(urls) && pace {
			if err := s.sleeper.Sleep(ctx, s.pacing.NextDelay()); err != nil {
				pace = false
				s.log.WarnObj("pacing interrupted", "pacing_state", map[string]any{
					"run_id": report.RunID,
					"error":  err.Error(),
				})
			}
		}
	}
	return outcomes
}

func (s *Service) handle(ctx context.Context, report *RunReport, date string, docIndex, index, total int, outcome domain.FetchOutcome) domain.FetchOutcome {
	if !outcome.Success {
		s.log.WarnObj("article failed", "article_failure", map[string]any{
			"run_id":   report.RunID,
			"progress": fmt.Sprintf("%d/%d", index, total),
			"url":      outcome.URL,
			"attempts": outcome.Attempts,
			"error":    outcome.Error,
		})
		return outcome
	}

	path, err := s.deps.Documents.Save(date, docIndex, outcome.URL, outcome.Article)
	if err != nil {
		failed := domain.Failed(outcome.URL, "save document: "+err.Error(), outcome.Attempts)
		s.log.ErrorObj("article save failed", "article_failure", map[string]any{
			"run_id": report.RunID,
			"url":    outcome.URL,
			"error":  failed.Error,
		})
		return failed
	}
	report.Documents = append(report.Documents, path)

	s.log.InfoObj("article saved", "article_saved", map[string]any{
		"run_id":   report.RunID,
		"progress": fmt.Sprintf("%d/%d", index, total),
		"url":      outcome.URL,
		"title":    outcome.Article.Title,
		"path":     path,
	})

	if s.deps.Events != nil {
		evt := publishers.NewEvent(report.RunID, date, outcome.URL, path, outcome.Article)
		if _, err := s.deps.Events.Publish(ctx, evt); err != nil {
			s.log.WarnObj("article event publish failed", "publish_error", map[string]any{
				"run_id": report.RunID,
				"url":    outcome.URL,
				"error":  err.Error(),
			})
		}
	}
	return outcome
}
