package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Package storage keeps a local journal of harvester runs. The journal file
// doubles as a lock on the output directory.

// ErrLocked reports that another run holds the journal.
var ErrLocked = errors.New("journal is locked by another run")

// RunRecord summarizes one harvester run.
type RunRecord struct {
	ID         string    `json:"id"`
	Date       string    `json:"date"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Success    int       `json:"success"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Error      string    `json:"error,omitempty"`
}

// Journal records runs and lists the most recent ones.
type Journal interface {
	Close() error
	Record(rec RunRecord) error
	Recent(limit int) ([]RunRecord, error)
}

// Options controls retention characteristics for concrete journal implementations.
type Options struct {
	RunTTL          time.Duration
	CleanupInterval time.Duration
	LockTimeout     time.Duration
}

const (
	defaultRunTTL          = 30 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
	defaultLockTimeout     = time.Second
)

// Journal backends.
const (
	TypeNone  = "none"
	TypeBbolt = "bbolt"
)

// NewJournal creates the configured journal backend.
func NewJournal(typ, path string, opts Options) (Journal, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", TypeNone, "disabled":
		return noopJournal{}, nil
	case TypeBbolt:
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt journal requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported journal type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.RunTTL <= 0 {
		opts.RunTTL = defaultRunTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	return opts
}

type noopJournal struct{}

func (noopJournal) Close() error                    { return nil }
func (noopJournal) Record(RunRecord) error          { return nil }
func (noopJournal) Recent(int) ([]RunRecord, error) { return nil, nil }
