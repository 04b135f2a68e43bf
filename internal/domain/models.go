package domain

import "time"

// Candidate is an article reference discovered in the feed for the target date.
type Candidate struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Published time.Time `json:"published"`
}

// Article holds the fields extracted from an article page.
type Article struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Content     string `json:"content"`
	PublishTime string `json:"publish_time"`
}

// FetchOutcome is the result of one article's fetch-retry cycle. Success
// outcomes carry Article; failures carry Error.
type FetchOutcome struct {
	URL      string  `json:"url"`
	Success  bool    `json:"success"`
	Article  Article `json:"article"`
	Error    string  `json:"error,omitempty"`
	Attempts int     `json:"attempts"`
}

// Succeeded builds a success outcome.
func Succeeded(url string, art Article, attempts int) FetchOutcome {
	return FetchOutcome{URL: url, Success: true, Article: art, Attempts: attempts}
}

// Failed builds a failure outcome.
func Failed(url, msg string, attempts int) FetchOutcome {
	return FetchOutcome{URL: url, Error: msg, Attempts: attempts}
}
