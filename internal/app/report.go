package app

import (
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-article-harvester/internal/config"
	"github.com/samvad-hq/samvad-article-harvester/internal/crawler"
	"github.com/samvad-hq/samvad-article-harvester/internal/document"
	"github.com/samvad-hq/samvad-article-harvester/internal/ledger"
	"github.com/samvad-hq/samvad-article-harvester/internal/logger"
	"github.com/samvad-hq/samvad-article-harvester/internal/report"
	"github.com/samvad-hq/samvad-article-harvester/internal/storage"
)

// BuildReport rebuilds the summary of targetDate from the ledgers under the
// output directory. With runs > 0 it also lists that many journal records.
func BuildReport(cfg *config.Config, targetDate string, runs int, now time.Time, log logger.Logger) (report.Summary, error) {
	if cfg == nil {
		return report.Summary{}, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)

	day, err := crawler.ResolveDate(targetDate, now.In(cfg.Location))
	if err != nil {
		return report.Summary{}, err
	}
	date := day.Format(crawler.DateLayout)

	store := ledger.NewStore(cfg.OutputBaseDir, log)
	dateLedger, _, err := store.LoadDate(date)
	if err != nil {
		return report.Summary{}, err
	}
	global, err := store.Load()
	if err != nil {
		return report.Summary{}, err
	}

	summary := report.SummaryFromLedgers(date, dateLedger, global)
	if summary.Articles, err = document.ListSaved(cfg.OutputBaseDir, date); err != nil {
		return report.Summary{}, err
	}
	summary.StartedAt = now
	summary.FinishedAt = now
	summary.GeneratedAt = now

	if runs > 0 {
		journal, err := storage.NewJournal(cfg.JournalType, cfg.JournalPath, storage.Options{
			RunTTL:          cfg.JournalRetention,
			CleanupInterval: cfg.JournalCleanupInterval,
		})
		if err != nil {
			return summary, fmt.Errorf("open journal: %w", err)
		}
		defer journal.Close()
		if summary.Runs, err = journal.Recent(runs); err != nil {
			return summary, fmt.Errorf("read journal: %w", err)
		}
	}
	return summary, nil
}
