package httpclient

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultRedirectLimit = 10

// Option customizes the underlying resty client.
type Option func(*resty.Client)

// WithDefaultHeaders sets headers sent on every request unless overridden per call.
func WithDefaultHeaders(headers map[string]string) Option {
	return func(c *resty.Client) {
		for k, v := range headers {
			if k == "" || v == "" {
				continue
			}
			c.SetHeader(k, v)
		}
	}
}

// WithRedirectLimit caps how many redirects a request may follow.
func WithRedirectLimit(n int) Option {
	return func(c *resty.Client) {
		c.SetRedirectPolicy(resty.FlexibleRedirectPolicy(n))
	}
}

// RestyClient adapts resty.Client to the httpclient.Client interface.
type RestyClient struct {
	client *resty.Client
}

// NewRestyClient creates a RestyClient with the given per-request timeout.
func NewRestyClient(timeout time.Duration, opts ...Option) *RestyClient {
	return &RestyClient{client: NewRestyHTTPClient(timeout, opts...)}
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration, opts ...Option) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	c.SetRedirectPolicy(resty.FlexibleRedirectPolicy(defaultRedirectLimit))
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Get performs an HTTP GET. Non-2xx statuses are not errors here; callers
// inspect StatusCode.
func (r *RestyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	req := r.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	resp, err := req.Get(url)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte    { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int { return r.resp.StatusCode() }
