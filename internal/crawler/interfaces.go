package crawler

import (
	"context"

	"github.com/samvad-hq/samvad-article-harvester/internal/domain"
	"github.com/samvad-hq/samvad-article-harvester/internal/ledger"
	"github.com/samvad-hq/samvad-article-harvester/pkg/publishers"
)

// ContentExtractor turns article HTML into structured fields.
type ContentExtractor interface {
	Extract(page []byte, pageURL string) (domain.Article, error)
}

// Fetcher runs one article's fetch-retry cycle.
type Fetcher interface {
	FetchArticle(ctx context.Context, url string, retryLimit int) domain.FetchOutcome
}

// URLFilter drops URLs already crawled successfully for a date.
type URLFilter interface {
	FilterNew(urls []string, date string) ([]string, error)
}

// LedgerStore loads and persists the date and global ledgers.
type LedgerStore interface {
	Load() (*ledger.GlobalLedger, error)
	LoadDate(date string) (*ledger.DateLedger, bool, error)
	Commit(date *ledger.DateLedger, global *ledger.GlobalLedger) error
}

// DocumentSaver persists one extracted article and returns its path.
// NextIndex is the first free document number for date.
type DocumentSaver interface {
	NextIndex(date string) int
	Save(date string, index int, url string, art domain.Article) (string, error)
}

// EventPublisher announces saved articles downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}
