package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/samvad-hq/samvad-article-harvester/internal/crawler"
	"github.com/samvad-hq/samvad-article-harvester/internal/document"
	"github.com/samvad-hq/samvad-article-harvester/internal/ledger"
	"github.com/samvad-hq/samvad-article-harvester/internal/storage"
)

const stampLayout = "2006-01-02 15:04:05"

//go:embed templates/summary.md.tmpl
var summaryTemplate string

var tmpl = template.Must(template.New("summary").Funcs(template.FuncMap{
	"pct":      crawler.SuccessRate,
	"truncate": truncate,
	"inc":      func(i int) int { return i + 1 },
	"stamp":    func(t time.Time) string { return t.Format(stampLayout) },
	"seconds":  func(from, to time.Time) string { return fmt.Sprintf("%.1f", to.Sub(from).Seconds()) },
}).Parse(summaryTemplate))

// Summary is the data behind a rendered report.
type Summary struct {
	Date        string
	StartedAt   time.Time
	FinishedAt  time.Time
	GeneratedAt time.Time
	Total       int
	Success     int
	Failed      int
	Skipped     int
	Errors      []crawler.FailureDetail
	Articles    []document.Saved
	Runs        []storage.RunRecord
}

// FromRun converts a crawl report.
func FromRun(r *crawler.RunReport) Summary {
	if r == nil {
		return Summary{}
	}
	return Summary{
		Date:       r.Date,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Total:      r.Total,
		Success:    r.Success,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
		Errors:     r.Errors,
	}
}

// SummaryFromLedgers rebuilds the summary of a past date from the ledgers.
// Either ledger may be nil. Failures are the global entries that failed on date.
func SummaryFromLedgers(date string, day *ledger.DateLedger, global *ledger.GlobalLedger) Summary {
	s := Summary{Date: date}
	if day != nil {
		s.Total = day.TotalArticles
		s.Success = day.SuccessfulScrapes
		s.Failed = day.FailedScrapes
	}
	if global == nil {
		return s
	}

	failures := global.FailuresOn(date)
	urls := make([]string, 0, len(failures))
	for u := range failures {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	for _, u := range urls {
		s.Errors = append(s.Errors, crawler.FailureDetail{URL: u, Error: failures[u].Error})
	}
	return s
}

// RenderMarkdown renders s as a Markdown report for outputDir.
func RenderMarkdown(s Summary, outputDir string) ([]byte, error) {
	if s.GeneratedAt.IsZero() {
		s.GeneratedAt = time.Now()
	}
	data := struct {
		Summary
		OutputDir string
	}{Summary: s, OutputDir: filepath.ToSlash(outputDir)}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes a rendered report as report_YYYYMMDD_HHMMSS.md under outputDir.
func Save(doc []byte, outputDir string, at time.Time) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outputDir, "report_"+at.Format("20060102_150405")+".md")
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

const bannerWidth = 40

// Banner is the boxed console summary printed after a crawl.
func Banner(s Summary) string {
	lines := []string{
		"Harvest complete",
		"",
		"Date:     " + s.Date,
		fmt.Sprintf("Total:    %3d", s.Total),
		fmt.Sprintf("Saved:    %3d  (%s)", s.Success, crawler.SuccessRate(s.Success, s.Total)),
		fmt.Sprintf("Failed:   %3d", s.Failed),
		fmt.Sprintf("Skipped:  %3d", s.Skipped),
		fmt.Sprintf("Elapsed:  %5.1f s", s.FinishedAt.Sub(s.StartedAt).Seconds()),
	}

	var b strings.Builder
	rule := strings.Repeat("=", bannerWidth)
	b.WriteString("+" + rule + "+\n")
	for i, l := range lines {
		if i == 1 {
			b.WriteString("+" + rule + "+\n")
			continue
		}
		fmt.Fprintf(&b, "| %-*s |\n", bannerWidth-2, truncate(l, bannerWidth-2))
	}
	b.WriteString("+" + rule + "+\n")
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
