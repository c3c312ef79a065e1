// Package cmd provides the command-line interface for gnomeview.
package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/gnomeview/config"
)

var cfg config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gnomeview",
	Short: "gnomeview serves trajectory model runs and plays them back.",
	Long: `gnomeview serves trajectory model runs one time step at a ` +
		`time and plays them back from a local cache of fetched steps.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}

		cfg = loaded

		if cmd.Flags().Changed("log-level") {
			levelName, _ := cmd.Flags().GetString("log-level")

			level, err := zerolog.ParseLevel(levelName)
			if err != nil {
				return err
			}

			cfg.LogLevel = level
		}

		setupLogging(cfg.LogLevel)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info",
		"Log level (trace, debug, info, warn, error).")
}

func setupLogging(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.TimeOnly,
	}).With().Timestamp().Logger()
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
