package crawler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/samvad-hq/samvad-article-harvester/internal/domain"
)

// dispatch runs fn for every url with at most workers calls in flight and
// delivers outcomes in completion order. The channel is closed once every
// call has returned.
func dispatch(ctx context.Context, urls []string, workers int, fn func(context.Context, string) domain.FetchOutcome) <-chan domain.FetchOutcome {
	if workers < 1 {
		workers = 1
	}
	out := make(chan domain.FetchOutcome, len(urls))

	var g errgroup.Group
	g.SetLimit(workers)

	go func() {
		for _, u := range urls {
			g.Go(func() error {
				out <- fn(ctx, u)
				return nil
			})
		}
		_ = g.Wait()
		close(out)
	}()

	return out
}
