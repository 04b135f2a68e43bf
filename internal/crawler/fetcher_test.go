package crawler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestFetcher(client *scriptedClient, sleeper *recordingSleeper) *ArticleFetcher {
	return NewArticleFetcher(client, staticExtractor{}, FetcherOptions{
		Timeout: time.Second,
		Headers: map[string]string{"User-Agent": "test-agent"},
		Pacing:  constPolicy{d: 4 * time.Second},
		Sleeper: sleeper,
	})
}

func TestFetchArticleRecoversOnThirdAttempt(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{
		{err: errors.New("connection reset")},
		{status: 502, body: "bad gateway"},
		{status: 200, body: "<html>ok</html>"},
	}}
	sleeper := &recordingSleeper{}

	out := newTestFetcher(client, sleeper).FetchArticle(context.Background(), "https://mp.example.com/s/a", 3)

	if !out.Success {
		t.Fatalf("expected success, got %#v", out)
	}
	if out.Attempts != 3 || client.calls != 3 {
		t.Fatalf("expected 3 attempts, got attempts=%d calls=%d", out.Attempts, client.calls)
	}
	if out.Article.Title != "Extracted" || out.Article.Content != "<html>ok</html>" {
		t.Fatalf("unexpected article %#v", out.Article)
	}
	slept := sleeper.durations()
	if len(slept) != 2 || slept[0] != 8*time.Second || slept[1] != 8*time.Second {
		t.Fatalf("expected two 8s backoffs, got %v", slept)
	}
}

func TestFetchArticleExhaustsRetries(t *testing.T) {
	for _, limit := range []int{1, 2, 3} {
		client := &scriptedClient{steps: []scriptStep{{status: 404, body: "missing"}}}
		sleeper := &recordingSleeper{}

		out := newTestFetcher(client, sleeper).FetchArticle(context.Background(), "u", limit)

		if out.Success {
			t.Fatalf("limit %d: expected failure", limit)
		}
		if client.calls != limit {
			t.Fatalf("limit %d: expected %d attempts, got %d", limit, limit, client.calls)
		}
		if got := len(sleeper.durations()); got != limit-1 {
			t.Fatalf("limit %d: expected %d sleeps, got %d", limit, limit-1, got)
		}
		if out.Error != "status 404 body: missing" {
			t.Fatalf("limit %d: error = %q", limit, out.Error)
		}
	}
}

func TestFetchArticleTreatsNonPositiveLimitAsOne(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{{err: errors.New("dns failure")}}}
	sleeper := &recordingSleeper{}

	out := newTestFetcher(client, sleeper).FetchArticle(context.Background(), "u", 0)

	if out.Success || client.calls != 1 || len(sleeper.durations()) != 0 {
		t.Fatalf("expected single failed attempt, got %#v calls=%d", out, client.calls)
	}
	if !strings.Contains(out.Error, "dns failure") {
		t.Fatalf("error should carry last cause, got %q", out.Error)
	}
}

func TestFetchArticleExtractionFailureIsRetried(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{
		{status: 200, body: "broken"},
		{status: 200, body: "fine"},
	}}
	sleeper := &recordingSleeper{}

	out := newTestFetcher(client, sleeper).FetchArticle(context.Background(), "u", 2)

	if !out.Success || out.Attempts != 2 {
		t.Fatalf("expected success on second attempt, got %#v", out)
	}
}

func TestFetchArticleSendsBrowserHeaders(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{{status: 200, body: "x"}}}
	newTestFetcher(client, &recordingSleeper{}).FetchArticle(context.Background(), "u", 1)

	if client.headers["User-Agent"] != "test-agent" {
		t.Fatalf("User-Agent = %q", client.headers["User-Agent"])
	}
	if client.headers["Cache-Control"] != "no-cache" {
		t.Fatalf("Cache-Control = %q", client.headers["Cache-Control"])
	}
	if client.headers["Accept"] != articleAccept {
		t.Fatalf("Accept = %q", client.headers["Accept"])
	}
}

func TestFetchArticleStopsWhenBackoffInterrupted(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{{status: 500, body: "oops"}}}
	sleeper := &recordingSleeper{failOn: 1}

	out := newTestFetcher(client, sleeper).FetchArticle(context.Background(), "u", 3)

	if out.Success || client.calls != 1 {
		t.Fatalf("expected abort after first attempt, got %#v calls=%d", out, client.calls)
	}
	if !strings.Contains(out.Error, "retry aborted") {
		t.Fatalf("error = %q", out.Error)
	}
}
