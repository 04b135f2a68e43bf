package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/samvad-hq/samvad-article-harvester/internal/app"
	"github.com/samvad-hq/samvad-article-harvester/internal/config"
	"github.com/samvad-hq/samvad-article-harvester/internal/logger"
	"github.com/samvad-hq/samvad-article-harvester/internal/report"
)

// runtime is what every subcommand needs once flags are parsed.
type runtime struct {
	cfgFile string
	cfg     *config.Config
	log     logger.Logger
}

// newRootCmd builds the harvester command tree. The root command crawls one
// day; check and report are subcommands.
func newRootCmd() *cobra.Command {
	rt := &runtime{}
	var (
		date     string
		listOnly bool
		noBanner bool
	)

	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Harvest the articles a feed published on one day",
		Long: `harvester reads an RSS/Atom feed, keeps the entries published on the
target date, skips URLs already saved for that date and downloads the rest
as Markdown documents with bounded concurrency and human-like pacing.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts []app.Option
			if listOnly {
				opts = append(opts, app.ForListing())
			}
			h, err := app.NewHarvester(cmd.Context(), rt.cfg, rt.log, opts...)
			if err != nil {
				return err
			}
			defer h.Close()

			res, runErr := h.Run(cmd.Context(), date, listOnly)
			if res != nil {
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				if !listOnly && !noBanner {
					fmt.Fprint(cmd.ErrOrStderr(), report.Banner(report.FromRun(res)))
				}
			}
			return runErr
		},
	}

	cmd.PersistentFlags().StringVar(&rt.cfgFile, "config", "", "config file (default ./configs/harvester.yaml or ./harvester.yaml)")
	cmd.Flags().StringVar(&date, "date", "today", "target date: today, yesterday or YYYY-MM-DD")
	cmd.Flags().BoolVar(&listOnly, "list-only", false, "list candidate articles without downloading them")
	cmd.Flags().BoolVar(&noBanner, "no-banner", false, "do not print the summary box to stderr")

	cmd.AddCommand(newCheckCmd(rt), newReportCmd(rt))
	return cmd
}

func (rt *runtime) init() error {
	cfg, err := config.Load(rt.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log.InfoObj("harvester starting", "config", map[string]any{
		"app":         cfg.AppName,
		"env":         cfg.Env,
		"config_file": cfg.SourceFile,
	})
	rt.cfg = cfg
	rt.log = log
	return nil
}

func newCheckCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration, output directory and feed reachability",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := app.Check(cmd.Context(), rt.cfg, nil, rt.log)
			if res != nil {
				if werr := writeJSON(cmd.OutOrStdout(), res); werr != nil {
					return werr
				}
			}
			return err
		},
	}
}

func newReportCmd(rt *runtime) *cobra.Command {
	var (
		date string
		save bool
		runs int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the Markdown summary of a past date from the ledgers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now()
			summary, err := app.BuildReport(rt.cfg, date, runs, now, rt.log)
			if err != nil {
				return err
			}
			doc, err := report.RenderMarkdown(summary, rt.cfg.OutputBaseDir)
			if err != nil {
				return err
			}
			if _, err := cmd.OutOrStdout().Write(doc); err != nil {
				return err
			}
			if !save {
				return nil
			}
			path, err := report.Save(doc, rt.cfg.OutputBaseDir, now)
			if err != nil {
				return err
			}
			rt.log.InfoObj("report saved", "report_path", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "today", "date to summarize: today, yesterday or YYYY-MM-DD")
	cmd.Flags().BoolVar(&save, "save", false, "also write report_YYYYMMDD_HHMMSS.md to the output directory")
	cmd.Flags().IntVar(&runs, "runs", 0, "append the N most recent journal records")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
