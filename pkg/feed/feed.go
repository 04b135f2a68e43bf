// Package feed fetches an RSS/Atom feed and turns its entries into crawl
// candidates for a given day.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/samvad-hq/samvad-article-harvester/internal/domain"
	"github.com/samvad-hq/samvad-article-harvester/pkg/httpclient"
)

const (
	DefaultTitle  = "Untitled"
	DefaultAuthor = "Unknown"

	feedAccept = "application/rss+xml, application/xml, text/xml, */*"
)

// Entry is one parsed feed item. Published is zero when the item carried no
// parseable published or updated timestamp.
type Entry struct {
	Title     string
	Link      string
	Author    string
	Published time.Time
}

// Source yields the entries of a feed.
type Source interface {
	Entries(ctx context.Context) ([]Entry, error)
}

// RSSSource downloads a feed over HTTP and parses it with gofeed.
type RSSSource struct {
	url     string
	client  httpclient.Client
	headers map[string]string
}

// NewRSSSource builds a Source for url. headers are sent with the request in
// addition to the feed Accept header.
func NewRSSSource(url string, client httpclient.Client, headers map[string]string) *RSSSource {
	h := map[string]string{"Accept": feedAccept}
	for k, v := range headers {
		if strings.TrimSpace(v) != "" {
			h[k] = v
		}
	}
	return &RSSSource{url: url, client: client, headers: h}
}

// URL returns the feed location.
func (s *RSSSource) URL() string { return s.url }

// Entries fetches and parses the feed.
func (s *RSSSource) Entries(ctx context.Context) ([]Entry, error) {
	resp, err := s.client.Get(ctx, s.url, s.headers)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	if !httpclient.IsSuccess(resp.StatusCode()) {
		return nil, fmt.Errorf("feed returned status %d body: %s", resp.StatusCode(), responseSnippet(resp.Body()))
	}
	entries, err := Parse(resp.Body())
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Parse decodes raw RSS or Atom bytes.
func Parse(raw []byte) ([]Entry, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("parse feed: empty document")
	}
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, EntryFromItem(item))
	}
	return entries, nil
}

// EntryFromItem maps a gofeed item. Published falls back to the updated
// timestamp.
func EntryFromItem(item *gofeed.Item) Entry {
	e := Entry{
		Title:  strings.TrimSpace(item.Title),
		Link:   strings.TrimSpace(item.Link),
		Author: itemAuthor(item),
	}
	if e.Title == "" {
		e.Title = DefaultTitle
	}
	if e.Author == "" {
		e.Author = DefaultAuthor
	}
	switch {
	case item.PublishedParsed != nil:
		e.Published = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		e.Published = *item.UpdatedParsed
	}
	return e
}

func itemAuthor(item *gofeed.Item) string {
	if item.Author != nil && strings.TrimSpace(item.Author.Name) != "" {
		return strings.TrimSpace(item.Author.Name)
	}
	for _, a := range item.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			return strings.TrimSpace(a.Name)
		}
	}
	if item.DublinCoreExt != nil {
		for _, c := range item.DublinCoreExt.Creator {
			if strings.TrimSpace(c) != "" {
				return strings.TrimSpace(c)
			}
		}
	}
	return ""
}

// FilterByDate keeps entries whose publish day, observed in loc, equals day.
// Entries without a timestamp or a link are dropped.
func FilterByDate(entries []Entry, day time.Time, loc *time.Location) []domain.Candidate {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := day.Date()

	out := make([]domain.Candidate, 0, len(entries))
	for _, e := range entries {
		if e.Published.IsZero() || e.Link == "" {
			continue
		}
		py, pm, pd := e.Published.In(loc).Date()
		if py != y || pm != m || pd != d {
			continue
		}
		out = append(out, domain.Candidate{
			URL:       e.Link,
			Title:     e.Title,
			Author:    e.Author,
			Published: e.Published.In(loc),
		})
	}
	return out
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
