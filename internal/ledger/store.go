package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/samvad-hq/samvad-article-harvester/internal/logger"
)

// ErrCommit wraps every failure to persist ledgers at the end of a run.
var ErrCommit = errors.New("ledger commit failed")

// Store reads and writes ledgers under an output base directory.
type Store struct {
	baseDir string
	log     logger.Logger
	now     func() time.Time
}

// NewStore returns a Store rooted at baseDir.
func NewStore(baseDir string, log logger.Logger) *Store {
	return &Store{
		baseDir: baseDir,
		log:     logger.Ensure(log),
		now:     time.Now,
	}
}

// GlobalPath is the location of the global ledger.
func (s *Store) GlobalPath() string {
	return filepath.Join(s.baseDir, FileName)
}

// DatePath is the location of the ledger for date.
func (s *Store) DatePath(date string) string {
	return filepath.Join(s.baseDir, date, FileName)
}

// Load returns the global ledger. A missing file yields an empty ledger. An
// undecodable file is moved aside and replaced by an empty ledger.
func (s *Store) Load() (*GlobalLedger, error) {
	path := s.GlobalPath()
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewGlobal(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read global ledger: %w", err)
	}

	g := NewGlobal()
	if err := json.Unmarshal(raw, g); err != nil {
		backup := fmt.Sprintf("%s.corrupt-%d", path, s.now().Unix())
		s.log.WarnObj("global ledger unreadable; starting fresh", "ledger_recovery", map[string]any{
			"path":   path,
			"backup": backup,
			"error":  err.Error(),
		})
		if rerr := os.Rename(path, backup); rerr != nil {
			return nil, fmt.Errorf("move corrupt global ledger aside: %w", rerr)
		}
		return NewGlobal(), nil
	}
	if g.CrawledURLs == nil {
		g.CrawledURLs = make(map[string]Entry)
	}
	if g.Version == "" {
		g.Version = SchemaVersion
	}
	return g, nil
}

// LoadDate returns the ledger for date, or ok=false when none was written yet.
func (s *Store) LoadDate(date string) (*DateLedger, bool, error) {
	raw, err := os.ReadFile(s.DatePath(date))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read date ledger %s: %w", date, err)
	}
	var dl DateLedger
	if err := json.Unmarshal(raw, &dl); err != nil {
		return nil, false, fmt.Errorf("decode date ledger %s: %w", date, err)
	}
	return &dl, true, nil
}

// Commit writes the date ledger and then the global ledger, each atomically.
func (s *Store) Commit(date *DateLedger, global *GlobalLedger) error {
	if date == nil || global == nil {
		return fmt.Errorf("%w: nil ledger", ErrCommit)
	}
	if err := writeJSONAtomic(s.DatePath(date.Date), date); err != nil {
		return fmt.Errorf("%w: date ledger: %w", ErrCommit, err)
	}
	if err := writeJSONAtomic(s.GlobalPath(), global); err != nil {
		return fmt.Errorf("%w: global ledger: %w", ErrCommit, err)
	}
	return nil
}

// writeJSONAtomic writes v to a temp file in the target directory and renames
// it over path.
func writeJSONAtomic(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
