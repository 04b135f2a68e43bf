// Package dedup removes URLs that an earlier run already crawled successfully
// for the same date.
package dedup

import (
	"fmt"

	"github.com/samvad-hq/samvad-article-harvester/internal/ledger"
)

// DateLedgers loads the per-date ledger; ok is false when none exists.
type DateLedgers interface {
	LoadDate(date string) (*ledger.DateLedger, bool, error)
}

// Filter screens candidate URLs against the date ledger.
type Filter struct {
	ledgers DateLedgers
}

// NewFilter returns a Filter backed by ledgers.
func NewFilter(ledgers DateLedgers) *Filter {
	return &Filter{ledgers: ledgers}
}

// FilterNew returns the urls not recorded as successful for date, in input
// order with duplicates dropped. Previously failed URLs are kept so they are
// retried.
func (f *Filter) FilterNew(urls []string, date string) ([]string, error) {
	dl, ok, err := f.ledgers.LoadDate(date)
	if err != nil {
		return nil, fmt.Errorf("load date ledger: %w", err)
	}

	done := make(map[string]struct{})
	if ok {
		for _, u := range dl.ScrapedURLs {
			done[u] = struct{}{}
		}
	}

	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, skip := done[u]; skip {
			continue
		}
		done[u] = struct{}{}
		out = append(out, u)
	}
	return out, nil
}
