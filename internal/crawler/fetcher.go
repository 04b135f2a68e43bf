package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-article-harvester/internal/domain"
	"github.com/samvad-hq/samvad-article-harvester/internal/logger"
	"github.com/samvad-hq/samvad-article-harvester/internal/pacing"
	"github.com/samvad-hq/samvad-article-harvester/pkg/httpclient"
)

const (
	maxHTMLBodyBytes = 10 << 20 // 10 MiB
	maxRetriesMsg    = "Max retries exceeded"

	articleAccept = "text/html,application/xhtml+xml,application/xml;q=0.9"
)

// FetcherOptions tunes an ArticleFetcher.
type FetcherOptions struct {
	Timeout time.Duration
	Headers map[string]string
	Pacing  pacing.Policy
	Sleeper pacing.Sleeper
	Log     logger.Logger
}

// ArticleFetcher downloads and extracts one article with bounded retries.
type ArticleFetcher struct {
	client    httpclient.Client
	extractor ContentExtractor
	timeout   time.Duration
	headers   map[string]string
	pacing    pacing.Policy
	sleeper   pacing.Sleeper
	log       logger.Logger
}

// NewArticleFetcher wires an ArticleFetcher.
func NewArticleFetcher(client httpclient.Client, extractor ContentExtractor, opts FetcherOptions) *ArticleFetcher {
	headers := map[string]string{
		"Accept":        articleAccept,
		"Cache-Control": "no-cache",
	}
	for k, v := range opts.Headers {
		if v != "" {
			headers[k] = v
		}
	}
	if opts.Pacing == nil {
		opts.Pacing = pacing.NewAdaptive(time.Local)
	}
	if opts.Sleeper == nil {
		opts.Sleeper = pacing.TimerSleeper{}
	}
	return &ArticleFetcher{
		client:    client,
		extractor: extractor,
		timeout:   opts.Timeout,
		headers:   headers,
		pacing:    opts.Pacing,
		sleeper:   opts.Sleeper,
		log:       logger.Ensure(opts.Log),
	}
}

// FetchArticle attempts fetch+extract up to retryLimit times (at least once),
// sleeping twice the pacing delay between attempts. The failure message is
// the last attempt's error.
func (f *ArticleFetcher) FetchArticle(ctx context.Context, url string, retryLimit int) domain.FetchOutcome {
	if retryLimit < 1 {
		retryLimit = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retryLimit; attempt++ {
		art, err := f.attempt(ctx, url)
		if err == nil {
			return domain.Succeeded(url, art, attempt)
		}
		lastErr = err
		f.log.DebugObj("article attempt failed", "article_attempt", map[string]any{
			"url":     url,
			"attempt": attempt,
			"limit":   retryLimit,
			"error":   err.Error(),
		})

		if attempt == retryLimit {
			break
		}
		backoff := 2 * f.pacing.NextDelay()
		if serr := f.sleeper.Sleep(ctx, backoff); serr != nil {
			return domain.Failed(url, fmt.Sprintf("%v (retry aborted: %v)", lastErr, serr), attempt)
		}
	}

	msg := maxRetriesMsg
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return domain.Failed(url, msg, retryLimit)
}

func (f *ArticleFetcher) attempt(ctx context.Context, url string) (domain.Article, error) {
	reqCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	resp, err := f.client.Get(reqCtx, url, f.headers)
	if err != nil {
		return domain.Article{}, fmt.Errorf("http fetch: %w", err)
	}
	if !httpclient.IsSuccess(resp.StatusCode()) {
		return domain.Article{}, fmt.Errorf("status %d body: %s", resp.StatusCode(), httpclient.Snippet(resp.Body(), 256))
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	art, err := f.extractor.Extract(body, url)
	if err != nil {
		return domain.Article{}, fmt.Errorf("extract: %w", err)
	}
	return art, nil
}
