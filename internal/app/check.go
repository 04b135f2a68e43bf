package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samvad-hq/samvad-article-harvester/internal/config"
	"github.com/samvad-hq/samvad-article-harvester/internal/logger"
	"github.com/samvad-hq/samvad-article-harvester/pkg/httpclient"
)

const scratchFile = ".write_check"

// CheckResult is the outcome of a pre-flight check.
type CheckResult struct {
	ConfigFile  string              `json:"config_file,omitempty"`
	Adjustments []config.Adjustment `json:"adjustments,omitempty"`
	OutputDir   string              `json:"output_dir"`
	FeedURL     string              `json:"feed_url"`
	FeedStatus  int                 `json:"feed_status,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// Check verifies the output directory is writable and requests the feed. Feed
// problems are reported as warnings; only an unusable output directory fails.
func Check(ctx context.Context, cfg *config.Config, client httpclient.Client, log logger.Logger) (*CheckResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)

	res := &CheckResult{
		ConfigFile:  cfg.SourceFile,
		Adjustments: cfg.ApplyPolicy(),
		OutputDir:   cfg.OutputBaseDir,
		FeedURL:     cfg.RSSFeedURL,
	}
	logAdjustments(log, res.Adjustments)

	if err := checkWritable(cfg.OutputBaseDir); err != nil {
		return res, err
	}

	if client == nil {
		client = NewHTTPClient(cfg)
	}
	resp, err := client.Get(ctx, cfg.RSSFeedURL, nil)
	switch {
	case err != nil:
		res.Warnings = append(res.Warnings, fmt.Sprintf("feed unreachable: %v", err))
	case !httpclient.IsSuccess(resp.StatusCode()):
		res.FeedStatus = resp.StatusCode()
		res.Warnings = append(res.Warnings, fmt.Sprintf("feed returned status %d", resp.StatusCode()))
	default:
		res.FeedStatus = resp.StatusCode()
	}

	for _, w := range res.Warnings {
		log.WarnObj("pre-check warning", "check_warning", w)
	}
	log.InfoObj("pre-check passed", "check_result", res)
	return res, nil
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	scratch := filepath.Join(dir, scratchFile)
	if err := os.WriteFile(scratch, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("output dir not writable: %w", err)
	}
	if err := os.Remove(scratch); err != nil {
		return fmt.Errorf("remove scratch file: %w", err)
	}
	return nil
}
