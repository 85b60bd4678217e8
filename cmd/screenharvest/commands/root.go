// Package commands implements the CLI commands for screenharvest.
package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/screenharvest/internal/config"
)

// ExitError carries a non-default process exit status.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

var rootCmd = &cobra.Command{
	Use:   "screenharvest",
	Short: "Harvest equity screener results filtered by region",
	Long: `Screenharvest drives a headless Chrome through a JavaScript-rendered
equity screener: it applies a region filter, walks every results page and
appends unique rows (symbol, name, price) to an output file as it goes.

Examples:
  # Harvest Brazilian equities into a CSV file
  screenharvest harvest --region Brazil -o brazil.csv

  # JSON lines, stop after 10 pages, pause 1s between pages
  screenharvest harvest -r Chile -o chile.jsonl --max-pages 10 --page-delay 1s

  # Keep screenshots and markup when setup fails
  screenharvest harvest -r Peru -o peru.db --diagnostics-dir ./diag`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default ./.screenharvest.yaml or $HOME/.screenharvest.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.Bool("log-json", false, "log as JSON")
	flags.String("log-file", "", "also write JSON logs to this file (rotated by size)")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("log.debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("log.quiet", flags.Lookup("quiet"))
	_ = viper.BindPFlag("log.json", flags.Lookup("log-json"))
	_ = viper.BindPFlag("log.file", flags.Lookup("log-file"))
}

func initConfig(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	config.SetDefaults(v)
	config.BindEnv(v)
	return config.ReadInConfig(v, v.GetString("config"))
}

// Execute runs the root command. Errors are printed here, except exit
// statuses that are not failures.
func Execute() error {
	err := rootCmd.Execute()
	var exit *ExitError
	if err != nil && !(errors.As(err, &exit) && exit.Code != 1) {
		logError("%v", err)
	}
	return err
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
