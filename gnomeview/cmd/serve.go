package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sarchlab/gnomeview/datarecording"
	"github.com/sarchlab/gnomeview/monitoring"
	"github.com/sarchlab/gnomeview/runner"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve model runs over HTTP.",
	Long: "`serve` starts the runner service. Viewers create runs, start " +
		"them, and fetch their time steps one at a time.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()

		if flags.Changed("port") {
			cfg.Port, _ = flags.GetInt("port")
		}

		if flags.Changed("db") {
			cfg.DB, _ = flags.GetString("db")
		}

		if flags.Changed("scenario") {
			cfg.Scenario, _ = flags.GetString("scenario")
		}

		noRecord, _ := flags.GetBool("no-record")
		open, _ := flags.GetBool("open")

		scenario := runner.DefaultScenario()
		if cfg.Scenario != "" {
			var err error

			scenario, err = runner.LoadScenario(cfg.Scenario)
			if err != nil {
				return err
			}
		}

		m := monitoring.NewMonitor().
			WithPortNumber(cfg.Port).
			WithScenario(scenario).
			WithBrowser(open)

		if !noRecord {
			writer, err := datarecording.New(cfg.DB)
			if err != nil {
				return err
			}
			defer writer.Close()

			m.WithDataRecording(writer,
				datarecording.NewReaderWithDB(writer.DB))
		}

		ctx, stop := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info().
			Time("start", scenario.StartTime).
			Dur("time_step", scenario.TimeStep).
			Int("steps", scenario.NumTimeSteps()).
			Msg("serving scenario")

		return m.StartServer(ctx)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0,
		"Port to listen on. Ports below 1000 pick a random port.")
	serveCmd.Flags().String("db", "",
		"SQLite file, without extension, to record time steps in.")
	serveCmd.Flags().String("scenario", "", "YAML scenario for new runs.")
	serveCmd.Flags().Bool("no-record", false, "Do not record time steps.")
	serveCmd.Flags().Bool("open", false, "Open the service in a browser.")

	rootCmd.AddCommand(serveCmd)
}
