// Package extract pulls title, author, publish time and a Markdown body out
// of an article page.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/samvad-hq/samvad-article-harvester/internal/domain"
)

// UnavailableBody replaces the body when a page has a title but no content
// container.
const UnavailableBody = "[content unavailable]"

var (
	ErrEmptyDocument = errors.New("empty html document")
	ErrNoContent     = errors.New("no title and no content container")
)

// DefaultSelectors match the article body container of WeChat pages.
var DefaultSelectors = []string{"#js_content", ".rich_media_content"}

// Options configures an Extractor.
type Options struct {
	Selectors           []string
	ReadabilityFallback bool
}

// Extractor converts article HTML into domain.Article. It is safe for
// concurrent use.
type Extractor struct {
	selectors   []string
	readability bool
	conv        *md.Converter
}

// New builds an Extractor.
func New(opts Options) *Extractor {
	selectors := opts.Selectors
	if len(selectors) == 0 {
		selectors = DefaultSelectors
	}
	return &Extractor{
		selectors:   selectors,
		readability: opts.ReadabilityFallback,
		conv:        md.NewConverter("", true, nil),
	}
}

// Extract parses page. pageURL is only used to resolve relative links in the
// readability fallback and may be empty.
func (e *Extractor) Extract(page []byte, pageURL string) (domain.Article, error) {
	if len(bytes.TrimSpace(page)) == 0 {
		return domain.Article{}, ErrEmptyDocument
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return domain.Article{}, fmt.Errorf("parse html: %w", err)
	}

	meta := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	art := domain.Article{
		Title: firstNonEmpty(
			meta(`meta[property="og:title"]`),
			doc.Find("title").First().Text(),
		),
		Author: firstNonEmpty(
			meta(`meta[property="og:article:author"]`),
			meta(`meta[name="author"]`),
		),
		PublishTime: firstNonEmpty(
			meta(`meta[property="og:article:published_time"]`),
			meta(`meta[property="article:published_time"]`),
		),
	}

	container := e.findContainer(doc)
	switch {
	case container != nil:
		body, err := e.toMarkdown(container)
		if err != nil {
			return domain.Article{}, err
		}
		art.Content = body
	case art.Title == "":
		return domain.Article{}, ErrNoContent
	case e.readability:
		art.Content = e.readable(page, pageURL)
	}

	if strings.TrimSpace(art.Content) == "" {
		art.Content = UnavailableBody
	}
	return art, nil
}

func (e *Extractor) findContainer(doc *goquery.Document) *goquery.Selection {
	for _, sel := range e.selectors {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			return node
		}
	}
	return nil
}

// toMarkdown converts a container to Markdown. Lazy-loaded images keep
// their real address in data-src.
func (e *Extractor) toMarkdown(container *goquery.Selection) (string, error) {
	container.Find("script, style").Remove()
	container.Find("img[data-src]").Each(func(_ int, img *goquery.Selection) {
		if src, _ := img.Attr("src"); strings.TrimSpace(src) == "" || strings.HasPrefix(src, "data:") {
			dataSrc, _ := img.Attr("data-src")
			img.SetAttr("src", dataSrc)
		}
	})

	html, err := goquery.OuterHtml(container)
	if err != nil {
		return "", fmt.Errorf("render container: %w", err)
	}
	body, err := e.conv.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	return strings.TrimSpace(body), nil
}

// readable runs go-readability over the whole page and returns "" when it
// finds nothing usable.
func (e *Extractor) readable(page []byte, pageURL string) string {
	var base *url.URL
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			base = u
		}
	}
	article, err := readability.FromReader(bytes.NewReader(page), base)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		return ""
	}
	body, err := e.conv.ConvertString(article.Content)
	if err != nil {
		return strings.TrimSpace(article.TextContent)
	}
	return strings.TrimSpace(body)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
