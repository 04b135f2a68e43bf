// Package ledger keeps the durable record of attempted article URLs at two
// granularities: one file per target date and one global file.
package ledger

import (
	"time"

	"github.com/samvad-hq/samvad-article-harvester/internal/domain"
)

const (
	SchemaVersion = "1.0"
	FileName      = "_metadata.json"

	StatusSuccess = "success"
	StatusFailed  = "failed"

	// TimeLayout is the crawl_time format stored in the global ledger.
	TimeLayout = "2006-01-02 15:04:05"
)

// Entry is the global record for one URL.
type Entry struct {
	CrawlTime string `json:"crawl_time"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Date      string `json:"date,omitempty"`
}

// Statistics are cumulative counters across every committed run.
type Statistics struct {
	TotalCrawled int `json:"total_crawled"`
	SuccessCount int `json:"success_count"`
	FailedCount  int `json:"failed_count"`
}

// GlobalLedger maps every attempted URL to its latest meaningful outcome.
type GlobalLedger struct {
	Version     string           `json:"version"`
	CrawledURLs map[string]Entry `json:"crawled_urls"`
	Statistics  Statistics       `json:"statistics"`
}

// NewGlobal returns an empty ledger at the current schema version.
func NewGlobal() *GlobalLedger {
	return &GlobalLedger{
		Version:     SchemaVersion,
		CrawledURLs: make(map[string]Entry),
	}
}

// Merge folds one run's outcomes into the ledger. A URL is added when absent,
// replaced when its previous entry failed, and left alone when it already
// succeeded. Counters grow by the run's totals.
func (g *GlobalLedger) Merge(date string, at time.Time, outcomes []domain.FetchOutcome) {
	if g.CrawledURLs == nil {
		g.CrawledURLs = make(map[string]Entry, len(outcomes))
	}
	if g.Version == "" {
		g.Version = SchemaVersion
	}

	stamp := at.Format(TimeLayout)
	for _, o := range outcomes {
		prev, exists := g.CrawledURLs[o.URL]
		if exists && prev.Status == StatusSuccess {
			continue
		}
		entry := Entry{CrawlTime: stamp, Status: StatusSuccess, Date: date}
		if !o.Success {
			entry.Status = StatusFailed
			entry.Error = o.Error
			if entry.Error == "" {
				entry.Error = "Unknown"
			}
		}
		g.CrawledURLs[o.URL] = entry
	}

	success, failed := Count(outcomes)
	g.Statistics.TotalCrawled += len(outcomes)
	g.Statistics.SuccessCount += success
	g.Statistics.FailedCount += failed
}

// FailuresOn returns the failed entries recorded for date, keyed by URL.
func (g *GlobalLedger) FailuresOn(date string) map[string]Entry {
	out := make(map[string]Entry)
	for u, e := range g.CrawledURLs {
		if e.Status == StatusFailed && e.Date == date {
			out[u] = e
		}
	}
	return out
}

// DateLedger is the per-date record written at the end of every run for that
// date.
type DateLedger struct {
	Date              string   `json:"date"`
	TotalArticles     int      `json:"total_articles"`
	SuccessfulScrapes int      `json:"successful_scrapes"`
	FailedScrapes     int      `json:"failed_scrapes"`
	ScrapedURLs       []string `json:"scraped_urls"`
}

// NewDateLedger builds the ledger for date from this run's outcomes. URLs a
// previous run already recorded as successful are carried forward so they
// stay excluded from later runs. Counts describe this run only.
func NewDateLedger(date string, previous *DateLedger, outcomes []domain.FetchOutcome) *DateLedger {
	success, failed := Count(outcomes)
	dl := &DateLedger{
		Date:              date,
		TotalArticles:     len(outcomes),
		SuccessfulScrapes: success,
		FailedScrapes:     failed,
		ScrapedURLs:       []string{},
	}

	seen := make(map[string]struct{})
	add := func(u string) {
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		dl.ScrapedURLs = append(dl.ScrapedURLs, u)
	}
	if previous != nil {
		for _, u := range previous.ScrapedURLs {
			add(u)
		}
	}
	for _, o := range outcomes {
		if o.Success {
			add(o.URL)
		}
	}
	return dl
}

// Contains reports whether url was recorded as successful.
func (d *DateLedger) Contains(url string) bool {
	if d == nil {
		return false
	}
	for _, u := range d.ScrapedURLs {
		if u == url {
			return true
		}
	}
	return false
}

// Count splits outcomes into success and failure totals.
func Count(outcomes []domain.FetchOutcome) (success, failed int) {
	for _, o := range outcomes {
		if o.Success {
			success++
		} else {
			failed++
		}
	}
	return success, failed
}
