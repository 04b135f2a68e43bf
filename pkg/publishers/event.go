package publishers

import (
	"time"

	"github.com/samvad-hq/samvad-article-harvester/internal/domain"
)

// ArticleRef describes a saved article without its body.
type ArticleRef struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	PublishTime string `json:"publish_time"`
	Path        string `json:"path"`
}

// Event represents the payload published downstream for each saved article.
type Event struct {
	RunID       string     `json:"run_id"`
	Date        string     `json:"date"`
	Article     ArticleRef `json:"article"`
	CollectedAt time.Time  `json:"collected_at"`
}

// NewEvent constructs an Event for an article saved at path.
func NewEvent(runID, date, url, path string, art domain.Article) Event {
	return Event{
		RunID: runID,
		Date:  date,
		Article: ArticleRef{
			URL:         url,
			Title:       art.Title,
			Author:      art.Author,
			PublishTime: art.PublishTime,
			Path:        path,
		},
		CollectedAt: time.Now().UTC(),
	}
}

// attributes are the routing attributes attached to queue and topic messages.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"run_id": e.RunID,
		"date":   e.Date,
	}
}
