package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/screenharvest/internal/config"
	"github.com/jmylchreest/screenharvest/internal/harvest"
	"github.com/jmylchreest/screenharvest/internal/logger"
	"github.com/jmylchreest/screenharvest/internal/output"
)

// errNoRows marks a successful run that found nothing.
var errNoRows = errors.New("no rows harvested")

var harvestCmd = &cobra.Command{
	Use:   "harvest [region]",
	Short: "Filter the screener by region and harvest every results page",
	Long: `Open the equity screener, select exactly one region in the Region filter,
then page through the results, appending unique rows to the output as each
page is read.

The output format follows the file extension (.csv, .jsonl, .yaml, .db)
unless --format is given. Existing files are appended to; a CSV header is
only written to new files.

Exit status is 0 when at least one row was harvested, 2 when the run
succeeded but found nothing, and 1 on error.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(harvestCmd)

	flags := harvestCmd.Flags()

	flags.StringP("region", "r", "", "region to select (e.g. Brazil)")
	flags.StringP("output", "o", "equities.csv", "output file")
	flags.String("format", "", "output format: csv, jsonl, yaml, sqlite (default: from extension)")

	flags.String("url", "", "screener URL (default: the equity screener)")
	flags.Int("max-pages", 0, "max results pages to read (0 = built-in limit)")
	flags.Duration("page-delay", 0, "minimum pause between page advances")
	flags.String("diagnostics-dir", "", "write screenshot, markup and manifest here on setup failure")

	flags.Bool("headless", true, "run Chrome headless")
	flags.Bool("stealth", false, "inject anti-automation-detection script")
	flags.String("chrome-path", "", "Chrome binary (default: search PATH)")
	flags.Duration("op-timeout", 30*time.Second, "timeout for a single browser operation")

	for key, name := range map[string]string{
		"region":              "region",
		"output":              "output",
		"format":              "format",
		"url":                 "url",
		"max_pages":           "max-pages",
		"page_delay":          "page-delay",
		"diagnostics_dir":     "diagnostics-dir",
		"browser.headless":    "headless",
		"browser.stealth":     "stealth",
		"browser.chrome_path": "chrome-path",
		"browser.op_timeout":  "op-timeout",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(name))
	}
}

func runHarvest(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	if len(args) == 1 {
		v.Set("region", args[0])
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logger.Init(cfg.LoggerOptions())
	defer logger.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	format, err := output.FormatFor(cfg.Output, cfg.Format)
	if err != nil {
		return err
	}
	appender, err := output.New(format)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := appender.Close(); cerr != nil {
			logger.Warn("failed to close output", "dest", cfg.Output, "error", cerr)
		}
	}()
	logger.Debug("output", "dest", cfg.Output, "format", format)

	svc := harvest.New(harvest.Config{
		Browser:        cfg.BrowserOptions(),
		Screener:       cfg.ScreenerOptions(),
		DiagnosticsDir: cfg.DiagnosticsDir,
	}, appender)

	res, err := svc.Run(ctx, harvest.Request{
		Region:   cfg.Region,
		Dest:     cfg.Output,
		MaxPages: cfg.MaxPages,
	})
	if err != nil {
		if res.Stats != nil && res.Stats.Unique > 0 {
			logger.Error("harvest failed after partial progress",
				"unique", res.Stats.Unique, "pages", res.Stats.Pages, "dest", cfg.Output)
		}
		return err
	}

	printSummary(cmd.OutOrStdout(), res)
	if res.Stats.Unique == 0 {
		return &ExitError{Code: 2, Err: errNoRows}
	}
	return nil
}

// printSummary writes the human-readable result of a run.
func printSummary(w io.Writer, res harvest.Result) {
	s := res.Stats
	fmt.Fprintf(w, "Harvested %s unique rows (%d pages) into %s\n",
		humanize.Comma(int64(s.Unique)), s.Pages, res.Dest)

	detail := fmt.Sprintf("  %s duplicates dropped, stopped: %s, took %s",
		humanize.Comma(int64(s.Duplicates)), s.StopReason, s.Elapsed.Round(time.Millisecond))
	if fi, err := os.Stat(res.Dest); err == nil {
		detail += fmt.Sprintf(", output now %s", humanize.Bytes(uint64(fi.Size())))
	}
	if n := s.WarningCount(); n > 0 {
		detail += fmt.Sprintf(", %d warnings", n)
	}
	fmt.Fprintln(w, detail)
}
