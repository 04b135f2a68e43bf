package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/samvad-article-harvester/internal/domain"
	"github.com/samvad-hq/samvad-article-harvester/internal/ledger"
	"github.com/samvad-hq/samvad-article-harvester/pkg/feed"
	"github.com/samvad-hq/samvad-article-harvester/pkg/httpclient"
	"github.com/samvad-hq/samvad-article-harvester/pkg/publishers"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

// fakeSource returns preset feed entries or an error.
type fakeSource struct {
	entries []feed.Entry
	err     error
}

func (f fakeSource) Entries(context.Context) ([]feed.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func entriesOn(day time.Time, urls ...string) []feed.Entry {
	out := make([]feed.Entry, 0, len(urls))
	for i, u := range urls {
		out = append(out, feed.Entry{
			Title:     fmt.Sprintf("Article %d", i+1),
			Link:      u,
			Author:    "Author",
			Published: day.Add(time.Duration(i+1) * time.Hour),
		})
	}
	return out
}

func urlsN(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://mp.example.com/s/%02d", i+1)
	}
	return out
}

// stubFetcher serves outcomes per URL and tracks concurrency.
type stubFetcher struct {
	hold     time.Duration
	fail     map[string]string
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	mu   sync.Mutex
	seen []string
}

func (f *stubFetcher) FetchArticle(_ context.Context, url string, retryLimit int) domain.FetchOutcome {
	f.calls.Add(1)
	cur := f.inFlight.Add(1)
	for {
		prev := f.maxSeen.Load()
		if cur <= prev || f.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}
	if f.hold > 0 {
		time.Sleep(f.hold)
	}
	f.inFlight.Add(-1)

	f.mu.Lock()
	f.seen = append(f.seen, url)
	f.mu.Unlock()

	if msg, ok := f.fail[url]; ok {
		return domain.Failed(url, msg, retryLimit)
	}
	return domain.Succeeded(url, domain.Article{Title: "Title " + url, Author: "A", Content: "body"}, 1)
}

func (f *stubFetcher) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

// memLedgers is an in-memory LedgerStore that also satisfies dedup.DateLedgers.
type memLedgers struct {
	mu        sync.Mutex
	global    *ledger.GlobalLedger
	dates     map[string]*ledger.DateLedger
	commits   int
	commitErr error
}

func newMemLedgers() *memLedgers {
	return &memLedgers{global: ledger.NewGlobal(), dates: map[string]*ledger.DateLedger{}}
}

func (m *memLedgers) Load() (*ledger.GlobalLedger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.global
	cp.CrawledURLs = make(map[string]ledger.Entry, len(m.global.CrawledURLs))
	for k, v := range m.global.CrawledURLs {
		cp.CrawledURLs[k] = v
	}
	return &cp, nil
}

func (m *memLedgers) LoadDate(date string) (*ledger.DateLedger, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dl, ok := m.dates[date]
	return dl, ok, nil
}

func (m *memLedgers) Commit(date *ledger.DateLedger, global *ledger.GlobalLedger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++
	if m.commitErr != nil {
		return m.commitErr
	}
	m.dates[date.Date] = date
	m.global = global
	return nil
}

// memDocs records saved documents.
type memDocs struct {
	mu      sync.Mutex
	saved   []string
	indexes []int
	failFor string
	next    int
}

func (m *memDocs) NextIndex(string) int {
	if m.next == 0 {
		return 1
	}
	return m.next
}

func (m *memDocs) Save(date string, index int, url string, _ domain.Article) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if url == m.failFor {
		return "", errors.New("disk full")
	}
	m.saved = append(m.saved, url)
	m.indexes = append(m.indexes, index)
	return fmt.Sprintf("/out/%s/%03d.md", date, index), nil
}

// recordingSleeper captures requested durations without sleeping.
type recordingSleeper struct {
	mu     sync.Mutex
	slept  []time.Duration
	failOn int
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slept = append(r.slept, d)
	if r.failOn > 0 && len(r.slept) == r.failOn {
		return context.Canceled
	}
	return ctx.Err()
}

func (r *recordingSleeper) durations() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.slept...)
}

// constPolicy always returns d.
type constPolicy struct{ d time.Duration }

func (c constPolicy) NextDelay() time.Duration { return c.d }

// recordingEvents captures published events.
type recordingEvents struct {
	mu     sync.Mutex
	events []publishers.Event
	err    error
}

func (r *recordingEvents) Publish(_ context.Context, evt publishers.Event) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	if r.err != nil {
		return 0, r.err
	}
	return 1, nil
}

// scriptedClient returns responses in order, repeating the last one.
type scriptedClient struct {
	mu      sync.Mutex
	steps   []scriptStep
	calls   int
	headers map[string]string
}

type scriptStep struct {
	status int
	body   string
	err    error
}

type scriptedResponse struct {
	status int
	body   []byte
}

func (s scriptedResponse) Body() []byte    { return s.body }
func (s scriptedResponse) StatusCode() int { return s.status }

func (c *scriptedClient) Get(_ context.Context, _ string, headers map[string]string) (httpclient.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers = headers
	step := c.steps[len(c.steps)-1]
	if c.calls < len(c.steps) {
		step = c.steps[c.calls]
	}
	c.calls++
	if step.err != nil {
		return nil, step.err
	}
	return scriptedResponse{status: step.status, body: []byte(step.body)}, nil
}

// staticExtractor returns a fixed article unless the page says "broken".
type staticExtractor struct{}

func (staticExtractor) Extract(page []byte, _ string) (domain.Article, error) {
	if string(page) == "broken" {
		return domain.Article{}, errors.New("no title and no content container")
	}
	return domain.Article{Title: "Extracted", Author: "Li", Content: string(page), PublishTime: "2026-03-14"}, nil
}
