// Package document writes crawled articles as Markdown files with YAML
// front matter.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/samvad-hq/samvad-article-harvester/internal/domain"
)

const (
	maxTitleRunes = 50
	untitled      = "untitled"
	timeLayout    = "2006-01-02 15:04:05"
)

// FrontMatter is the YAML header of every saved article.
type FrontMatter struct {
	Title       string `yaml:"title"`
	Author      string `yaml:"author"`
	PublishTime string `yaml:"publish_time"`
	URL         string `yaml:"url"`
	CrawlTime   string `yaml:"crawl_time"`
}

// Writer saves articles under baseDir/<date>/.
type Writer struct {
	baseDir string
	now     func() time.Time
}

// NewWriter returns a Writer rooted at baseDir.
func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir, now: time.Now}
}

// Save writes art as <baseDir>/<date>/<NNN>_<title>.md and returns the path.
func (w *Writer) Save(date string, index int, url string, art domain.Article) (string, error) {
	dir := filepath.Join(w.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create date directory: %w", err)
	}

	content, err := Render(url, art, w.now())
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, FileName(index, art.Title))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return path, nil
}

// NextIndex returns one past the highest NNN prefix among the documents
// already saved for date, or 1 when there are none.
func (w *Writer) NextIndex(date string) int {
	entries, err := os.ReadDir(filepath.Join(w.baseDir, date))
	if err != nil {
		return 1
	}
	highest := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(prefix); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1
}

// FileName builds the document name for the index-th completed article.
func FileName(index int, title string) string {
	return fmt.Sprintf("%03d_%s.md", index, SanitizeTitle(title))
}

// SanitizeTitle makes title safe for use in a file name: reserved and control
// characters become '_' and the result is cut to 50 runes.
func SanitizeTitle(title string) string {
	var b strings.Builder
	n := 0
	for _, r := range strings.TrimSpace(title) {
		if n == maxTitleRunes {
			break
		}
		if strings.ContainsRune(`<>:"/\|?*`, r) || unicode.IsControl(r) {
			r = '_'
		}
		b.WriteRune(r)
		n++
	}
	out := strings.TrimSpace(b.String())
	if out == "" || out == "." || out == ".." {
		return untitled
	}
	return out
}

// Render produces the full Markdown document.
func Render(url string, art domain.Article, crawledAt time.Time) ([]byte, error) {
	fm, err := yaml.Marshal(FrontMatter{
		Title:       art.Title,
		Author:      art.Author,
		PublishTime: art.PublishTime,
		URL:         url,
		CrawlTime:   crawledAt.Format(timeLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n")
	fmt.Fprintf(&buf, "# %s\n\n", art.Title)
	fmt.Fprintf(&buf, "**Author**: %s\n", art.Author)
	fmt.Fprintf(&buf, "**Published**: %s\n", art.PublishTime)
	fmt.Fprintf(&buf, "**Source**: %s\n\n", url)
	buf.WriteString("---\n\n")
	buf.WriteString(art.Content)
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// ParseFrontMatter reads the header back from a saved document.
func ParseFrontMatter(doc []byte) (FrontMatter, error) {
	rest, ok := bytes.CutPrefix(doc, []byte("---\n"))
	if !ok {
		return FrontMatter{}, fmt.Errorf("document has no front matter")
	}
	header, _, ok := bytes.Cut(rest, []byte("\n---\n"))
	if !ok {
		return FrontMatter{}, fmt.Errorf("front matter is not terminated")
	}
	var fm FrontMatter
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return FrontMatter{}, fmt.Errorf("decode front matter: %w", err)
	}
	return fm, nil
}

// Saved is a document found on disk with its header.
type Saved struct {
	File string
	FrontMatter
}

// ListSaved reads the front matter of every document saved under
// baseDir/<date>/, in file name order. Markdown files without a readable
// header are skipped. A missing date directory yields no documents.
func ListSaved(baseDir, date string) ([]Saved, error) {
	dir := filepath.Join(baseDir, date)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read date directory: %w", err)
	}

	var out []Saved
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read document: %w", err)
		}
		fm, err := ParseFrontMatter(raw)
		if err != nil {
			continue
		}
		out = append(out, Saved{File: e.Name(), FrontMatter: fm})
	}
	return out, nil
}
