// Package httpclient is the narrow HTTP surface used for feed and article
// requests.
package httpclient

import (
	"context"
	"strings"
)

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client abstracts HTTP calls so callers can inject fakes or different transports.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}

// IsSuccess reports whether status is 2xx.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// Snippet returns at most limit bytes of body, trimmed, for error messages.
func Snippet(body []byte, limit int) string {
	if len(body) == 0 {
		return ""
	}
	if limit > 0 && len(body) > limit {
		body = body[:limit]
	}
	return strings.TrimSpace(string(body))
}
