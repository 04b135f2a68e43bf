package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/samvad-article-harvester/internal/crawler"
	"github.com/samvad-hq/samvad-article-harvester/internal/document"
	"github.com/samvad-hq/samvad-article-harvester/internal/ledger"
	"github.com/samvad-hq/samvad-article-harvester/internal/storage"
)

func sampleSummary() Summary {
	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	return Summary{
		Date:        "2026-03-14",
		StartedAt:   start,
		FinishedAt:  start.Add(95 * time.Second),
		GeneratedAt: start.Add(2 * time.Minute),
		Total:       4,
		Success:     3,
		Failed:      1,
		Skipped:     2,
		Errors: []crawler.FailureDetail{{
			URL:   "https://mp.example.com/s/" + strings.Repeat("x", 80),
			Error: "Max retries exceeded",
		}},
	}
}

func TestRenderMarkdown(t *testing.T) {
	doc, err := RenderMarkdown(sampleSummary(), "/data/out")
	require.NoError(t, err)
	out := string(doc)

	require.Contains(t, out, "# Harvest Report 2026-03-14")
	require.Contains(t, out, "**Window**: 2026-03-14 10:00:00 ~ 2026-03-14 10:01:35")
	require.Contains(t, out, "**Duration**: 95.0 s")
	require.Contains(t, out, "| Saved | 3 | 75.0% |")
	require.Contains(t, out, "| Failed | 1 | 25.0% |")
	require.Contains(t, out, "| Skipped (already crawled) | 2 | - |")
	require.Contains(t, out, "1. **https://mp.example.com/s/"+strings.Repeat("x", 35)+"**\n")
	require.Contains(t, out, "   - error: Max retries exceeded")
	require.Contains(t, out, "`/data/out/2026-03-14/_metadata.json`")
	require.NotContains(t, out, "## Recent runs")
}

func TestRenderMarkdownEmptyRun(t *testing.T) {
	doc, err := RenderMarkdown(Summary{Date: "2026-03-14"}, "out")
	require.NoError(t, err)
	out := string(doc)

	require.Contains(t, out, "| Saved | 0 | 0% |")
	require.NotContains(t, out, "## Failures")
}

func TestRenderMarkdownListsRuns(t *testing.T) {
	s := sampleSummary()
	s.Runs = []storage.RunRecord{{ID: "r1", Date: "2026-03-13", StartedAt: s.StartedAt, Total: 5, Success: 5}}

	doc, err := RenderMarkdown(s, "out")
	require.NoError(t, err)
	require.Contains(t, string(doc), "| 2026-03-14 10:00:00 | 2026-03-13 | 5 | 5 | 0 | 0 |  |")
}

func TestRenderMarkdownListsSavedArticles(t *testing.T) {
	s := sampleSummary()
	s.Articles = []document.Saved{{
		File:        "001_Rates.md",
		FrontMatter: document.FrontMatter{Title: "Rates", Author: "Li Wei"},
	}}

	doc, err := RenderMarkdown(s, "out")
	require.NoError(t, err)
	require.Contains(t, string(doc), "## Saved articles")
	require.Contains(t, string(doc), "| 001_Rates.md | Rates | Li Wei |")

	doc, err = RenderMarkdown(sampleSummary(), "out")
	require.NoError(t, err)
	require.NotContains(t, string(doc), "## Saved articles")
}

func TestSummaryFromLedgers(t *testing.T) {
	day := &ledger.DateLedger{Date: "2026-03-14", TotalArticles: 3, SuccessfulScrapes: 2, FailedScrapes: 1}
	global := ledger.NewGlobal()
	global.CrawledURLs["https://b"] = ledger.Entry{Status: ledger.StatusFailed, Error: "timeout", Date: "2026-03-14"}
	global.CrawledURLs["https://a"] = ledger.Entry{Status: ledger.StatusFailed, Error: "404", Date: "2026-03-14"}
	global.CrawledURLs["https://c"] = ledger.Entry{Status: ledger.StatusFailed, Error: "old", Date: "2026-03-13"}
	global.CrawledURLs["https://d"] = ledger.Entry{Status: ledger.StatusSuccess, Date: "2026-03-14"}

	s := SummaryFromLedgers("2026-03-14", day, global)

	require.Equal(t, 3, s.Total)
	require.Equal(t, 2, s.Success)
	require.Equal(t, 1, s.Failed)
	require.Equal(t, []crawler.FailureDetail{
		{URL: "https://a", Error: "404"},
		{URL: "https://b", Error: "timeout"},
	}, s.Errors)
}

func TestSummaryFromLedgersMissingDate(t *testing.T) {
	s := SummaryFromLedgers("2026-01-01", nil, nil)
	require.Zero(t, s.Total)
	require.Empty(t, s.Errors)
}

func TestSaveNamesReportByTimestamp(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	at := time.Date(2026, 3, 14, 9, 5, 7, 0, time.UTC)

	path, err := Save([]byte("# hi\n"), dir, at)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "report_20260314_090507.md"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "# hi\n", string(raw))
}

func TestBanner(t *testing.T) {
	b := Banner(sampleSummary())
	lines := strings.Split(strings.TrimRight(b, "\n"), "\n")

	require.Len(t, lines, 10)
	for _, l := range lines {
		require.Len(t, l, 42, "line %q", l)
	}
	require.Contains(t, b, "Saved:      3  (75.0%)")
	require.Contains(t, b, "Elapsed:   95.0 s")
}

func TestFromRun(t *testing.T) {
	r := &crawler.RunReport{Date: "2026-03-14", Total: 2, Success: 1, Failed: 1, Errors: []crawler.FailureDetail{{URL: "u", Error: "e"}}}
	s := FromRun(r)
	require.Equal(t, "2026-03-14", s.Date)
	require.Len(t, s.Errors, 1)
	require.Equal(t, Summary{}, FromRun(nil))
}
