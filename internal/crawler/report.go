package crawler

import (
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-article-harvester/internal/domain"
)

// FailureDetail names a URL that could not be crawled and why.
type FailureDetail struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// RunReport summarizes one orchestrator run. Success+Failed always equals
// Total. List-only runs fill Candidates, Count and NewCount instead.
type RunReport struct {
	RunID       string          `json:"run_id,omitempty"`
	Date        string          `json:"date"`
	ListOnly    bool            `json:"list_only,omitempty"`
	Total       int             `json:"total"`
	Success     int             `json:"success"`
	Failed      int             `json:"failed"`
	Skipped     int             `json:"skipped"`
	SuccessRate string          `json:"success_rate"`
	Errors      []FailureDetail `json:"errors"`
	Documents   []string        `json:"documents,omitempty"`

	Candidates []domain.Candidate `json:"articles,omitempty"`
	Count      int                `json:"count,omitempty"`
	NewCount   int                `json:"new_count,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// SuccessRate formats success/total as a one-decimal percentage, or "0%"
// when nothing was attempted.
func SuccessRate(success, total int) string {
	if total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(success)/float64(total)*100)
}

func (r *RunReport) tally(outcomes []domain.FetchOutcome) {
	r.Total = len(outcomes)
	r.Success, r.Failed = 0, 0
	r.Errors = r.Errors[:0]
	for _, o := range outcomes {
		if o.Success {
			r.Success++
			continue
		}
		r.Failed++
		r.Errors = append(r.Errors, FailureDetail{URL: o.URL, Error: o.Error})
	}
	r.SuccessRate = SuccessRate(r.Success, r.Total)
}
