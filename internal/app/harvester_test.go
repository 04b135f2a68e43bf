package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/samvad-article-harvester/internal/config"
	"github.com/samvad-hq/samvad-article-harvester/internal/crawler"
	"github.com/samvad-hq/samvad-article-harvester/internal/ledger"
	"github.com/samvad-hq/samvad-article-harvester/internal/storage"
)

var fixedNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

type noSleep struct{}

func (noSleep) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

const feedTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>Daily</title>
  <item><title>First</title><link>%[1]s/s/first</link><dc:creator>Li Wei</dc:creator><pubDate>Sat, 14 Mar 2026 08:00:00 +0000</pubDate></item>
  <item><title>Second</title><link>%[1]s/s/second</link><pubDate>Sat, 14 Mar 2026 09:00:00 +0000</pubDate></item>
  <item><title>Broken</title><link>%[1]s/s/broken</link><pubDate>Sat, 14 Mar 2026 09:30:00 +0000</pubDate></item>
  <item><title>Old</title><link>%[1]s/s/old</link><pubDate>Fri, 13 Mar 2026 08:00:00 +0000</pubDate></item>
</channel>
</rss>`

const articlePage = `<html><head>
<meta property="og:title" content="%s">
<meta name="author" content="Li Wei">
</head><body><div id="js_content"><p>Paragraph one.</p></div></body></html>`

type site struct {
	srv        *httptest.Server
	brokenHits atomic.Int32
	feedStatus int
}

func newSite(t *testing.T) *site {
	t.Helper()
	s := &site{feedStatus: http.StatusOK}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed.xml":
			if s.feedStatus != http.StatusOK {
				w.WriteHeader(s.feedStatus)
				return
			}
			fmt.Fprintf(w, feedTemplate, s.srv.URL)
		case "/s/broken":
			s.brokenHits.Add(1)
			http.Error(w, "upstream busy", http.StatusInternalServerError)
		default:
			title := strings.TrimPrefix(r.URL.Path, "/s/")
			fmt.Fprintf(w, articlePage, title)
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func loadConfig(t *testing.T, feedURL, outDir string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "harvester.yaml")
	raw := fmt.Sprintf(`
rss_feed_url: %s
output_base_dir: %s
timezone: UTC
max_workers: 8
retry_limit: 2
timeout: 5
`, feedURL, outDir)
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func newTestHarvester(t *testing.T, cfg *config.Config, opts ...Option) *Harvester {
	t.Helper()
	opts = append([]Option{WithSleeper(noSleep{}), WithClock(func() time.Time { return fixedNow })}, opts...)
	h, err := NewHarvester(context.Background(), cfg, nil, opts...)
	require.NoError(t, err)
	return h
}

func TestHarvesterRunsEndToEnd(t *testing.T) {
	site := newSite(t)
	out := t.TempDir()
	cfg := loadConfig(t, site.srv.URL+"/feed.xml", out)

	h := newTestHarvester(t, cfg)
	require.Equal(t, config.MaxWorkersCap, cfg.MaxWorkers)

	report, err := h.Run(context.Background(), "today", false)
	require.NoError(t, err)
	require.Equal(t, "2026-03-14", report.Date)
	require.Equal(t, 3, report.Total)
	require.Equal(t, 2, report.Success)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, site.srv.URL+"/s/broken", report.Errors[0].URL)
	require.EqualValues(t, 2, site.brokenHits.Load())

	docs, err := filepath.Glob(filepath.Join(out, "2026-03-14", "*.md"))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	raw, err := os.ReadFile(docs[0])
	require.NoError(t, err)
	require.Contains(t, string(raw), "Paragraph one.")

	h.Close()

	store := ledger.NewStore(out, nil)
	dl, ok, err := store.LoadDate("2026-03-14")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, dl.ScrapedURLs, 2)

	summary, err := BuildReport(cfg, "2026-03-14", 5, fixedNow, nil)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Total)
	require.Len(t, summary.Errors, 1)
	require.Len(t, summary.Runs, 1)
	require.Equal(t, report.RunID, summary.Runs[0].ID)
	require.Len(t, summary.Articles, 2)
	require.Equal(t, "Li Wei", summary.Articles[0].Author)
}

func TestHarvesterSecondRunOnlyRetriesFailures(t *testing.T) {
	site := newSite(t)
	out := t.TempDir()
	cfg := loadConfig(t, site.srv.URL+"/feed.xml", out)

	first := newTestHarvester(t, cfg)
	_, err := first.Run(context.Background(), "2026-03-14", false)
	require.NoError(t, err)
	first.Close()

	second := newTestHarvester(t, cfg)
	defer second.Close()
	report, err := second.Run(context.Background(), "2026-03-14", false)
	require.NoError(t, err)
	require.Equal(t, 1, report.Total)
	require.Equal(t, 1, report.Failed)
}

func TestHarvesterListOnly(t *testing.T) {
	site := newSite(t)
	out := t.TempDir()
	cfg := loadConfig(t, site.srv.URL+"/feed.xml", out)

	h := newTestHarvester(t, cfg)
	defer h.Close()

	report, err := h.Run(context.Background(), "yesterday", true)
	require.NoError(t, err)
	require.Equal(t, 1, report.Count)
	require.Equal(t, 1, report.NewCount)
	require.Equal(t, "Old", report.Candidates[0].Title)

	_, err = os.Stat(filepath.Join(out, ledger.FileName))
	require.True(t, os.IsNotExist(err), "list-only run must not write ledgers")
}

func TestHarvesterListingLeavesFreshOutputUntouched(t *testing.T) {
	site := newSite(t)
	out := filepath.Join(t.TempDir(), "fresh")
	cfg := loadConfig(t, site.srv.URL+"/feed.xml", out)

	h := newTestHarvester(t, cfg, ForListing())
	report, err := h.Run(context.Background(), "yesterday", true)
	require.NoError(t, err)
	require.Equal(t, 1, report.Count)
	h.Close()

	_, err = os.Stat(out)
	require.True(t, os.IsNotExist(err), "list-only run created %s", out)

	_, err = h.Run(context.Background(), "yesterday", false)
	require.Error(t, err)
}

func TestHarvesterListingIgnoresHeldLock(t *testing.T) {
	site := newSite(t)
	cfg := loadConfig(t, site.srv.URL+"/feed.xml", t.TempDir())

	crawl := newTestHarvester(t, cfg)
	defer crawl.Close()

	listing := newTestHarvester(t, cfg, ForListing())
	defer listing.Close()
	report, err := listing.Run(context.Background(), "today", true)
	require.NoError(t, err)
	require.Equal(t, 3, report.Count)
}

func TestNewHTTPClientSendsIdentityAndCapsRedirects(t *testing.T) {
	var agent, lang atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/hop1":
			http.Redirect(w, r, "/hop2", http.StatusFound)
		case "/hop2":
			http.Redirect(w, r, "/page", http.StatusFound)
		default:
			agent.Store(r.Header.Get("User-Agent"))
			lang.Store(r.Header.Get("Accept-Language"))
			fmt.Fprint(w, "ok")
		}
	}))
	defer srv.Close()

	cfg := loadConfig(t, srv.URL+"/feed.xml", t.TempDir())
	cfg.MaxRedirects = 1
	client := NewHTTPClient(cfg)

	resp, err := client.Get(context.Background(), srv.URL+"/page", map[string]string{"Accept": "text/html"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	require.Equal(t, cfg.UserAgent, agent.Load())
	require.Equal(t, cfg.AcceptLanguage, lang.Load())

	_, err = client.Get(context.Background(), srv.URL+"/hop1", nil)
	require.Error(t, err)
}

func TestHarvesterFeedFailure(t *testing.T) {
	site := newSite(t)
	site.feedStatus = http.StatusBadGateway
	cfg := loadConfig(t, site.srv.URL+"/feed.xml", t.TempDir())

	h := newTestHarvester(t, cfg)
	defer h.Close()

	report, err := h.Run(context.Background(), "today", false)
	require.ErrorIs(t, err, crawler.ErrFeed)
	require.NotEmpty(t, report.Error)
}

func TestHarvesterHoldsOutputLock(t *testing.T) {
	site := newSite(t)
	cfg := loadConfig(t, site.srv.URL+"/feed.xml", t.TempDir())

	h := newTestHarvester(t, cfg)
	defer h.Close()

	_, err := NewHarvester(context.Background(), cfg, nil)
	require.True(t, errors.Is(err, storage.ErrLocked), "got %v", err)
}
