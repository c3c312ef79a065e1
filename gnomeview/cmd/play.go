package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/gnomeview/fetch"
	"github.com/sarchlab/gnomeview/playback"
	"github.com/sarchlab/gnomeview/timestep"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play back a model run from the runner service.",
	Long: "`play` creates a run on the runner service, or follows the one " +
		"given with --run, and prints one time step per frame interval.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()

		if flags.Changed("url") {
			cfg.URL, _ = flags.GetString("url")
		}

		if flags.Changed("interval") {
			cfg.FrameInterval, _ = flags.GetDuration("interval")
		}

		runID, _ := flags.GetString("run")

		ctx, stop := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		return play(ctx, cmd, runID)
	},
}

func play(ctx context.Context, cmd *cobra.Command, runID string) error {
	client := fetch.NewClient(cfg.URL)

	if runID == "" {
		var err error

		runID, err = client.CreateRun(ctx)
		if err != nil {
			return err
		}
	}

	loader := fetch.NewLoader(client, runID)

	model, err := loader.Start(ctx)
	if err != nil {
		return err
	}

	if !model.HasData() {
		return errors.Errorf("run %s has no time steps", runID)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Playing run %s (%d steps)\n",
		runID, model.NumExpectedTimeSteps())

	player := playback.NewPlayer(model, loader)

	err = player.Run(ctx, cfg.FrameInterval, func(s timestep.TimeStep) error {
		_, err := fmt.Fprintf(out, "%5d  %s  %s\n", s.ID, s.Timestamp, s.URL)
		return err
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func init() {
	playCmd.Flags().String("url", "", "Address of the runner service.")
	playCmd.Flags().Duration("interval", 0, "Time between two frames.")
	playCmd.Flags().String("run", "", "Follow an existing run.")

	rootCmd.AddCommand(playCmd)
}
