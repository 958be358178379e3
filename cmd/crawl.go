package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sportsnavi-harvester/internal/coordinator"
	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
)

type crawlFlags struct {
	sources  []string
	mode     string
	start    string
	end      string
	maxPages int
}

func newCrawlCmd() *cobra.Command {
	var flags crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the selected sources once and prints the run report",
		Long: `Crawls every selected source (all registered sources by default) within the
optional date window, ingests the articles, and prints the run report as JSON.
The command fails only when every source failed.`,
		Example: `  harvester crawl --source npb --source mlb --start 2025-01-01 --end 2025-01-05
  harvester crawl --mode sequential --max-pages 3`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, flags)
		},
	}
	cmd.Flags().StringSliceVar(&flags.sources, "source", nil, "source id to crawl (repeatable, default: crawler.sources or all)")
	cmd.Flags().StringVar(&flags.mode, "mode", "", "concurrent or sequential (default: crawler.mode)")
	cmd.Flags().StringVar(&flags.start, "start", "", "first day to keep, YYYY-MM-DD in crawler.timezone")
	cmd.Flags().StringVar(&flags.end, "end", "", "last day to keep, YYYY-MM-DD in crawler.timezone")
	cmd.Flags().IntVar(&flags.maxPages, "max-pages", -1, "list pages per source, 0 for no limit (default: crawler.max_pages_default)")
	return cmd
}

func runCrawl(cmd *cobra.Command, flags crawlFlags) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()

	mode := crawler.Mode(cfg.Crawler.Mode)
	if flags.mode != "" {
		mode = crawler.Mode(flags.mode)
		if mode != crawler.ModeConcurrent && mode != crawler.ModeSequential {
			return fmt.Errorf("unknown mode %q", flags.mode)
		}
	}

	req := coordinator.JobRequest{SourceIDs: flags.sources}
	if len(req.SourceIDs) == 0 {
		req.SourceIDs = cfg.Crawler.Sources
	}
	loc := cfg.Location()
	if req.StartDate, err = parseDay(flags.start, loc); err != nil {
		return fmt.Errorf("parse --start: %w", err)
	}
	if req.EndDate, err = parseDay(flags.end, loc); err != nil {
		return fmt.Errorf("parse --end: %w", err)
	}
	if flags.maxPages >= 0 {
		pages := flags.maxPages
		req.MaxPages = &pages
	}

	jobs, err := coordinator.BuildJobs(appInstance.Registry(), req)
	if err != nil {
		return err
	}

	report := appInstance.Coordinator().Run(cmd.Context(), mode, jobs)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if len(jobs) > 0 && report.Succeeded == 0 {
		return fmt.Errorf("all %d sources failed", report.Failed)
	}
	appInstance.Logger().Info("crawl command finished", zap.String("run_id", report.RunID))
	return nil
}

func parseDay(value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, value, loc)
	if err != nil {
		return nil, fmt.Errorf("expected YYYY-MM-DD: %w", err)
	}
	return &t, nil
}
