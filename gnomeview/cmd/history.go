package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/gnomeview/datarecording"
)

var historyCmd = &cobra.Command{
	Use:   "history [db file]",
	Short: "List the time steps recorded by the runner service.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		runID, _ := flags.GetString("run")
		limit, _ := flags.GetInt("limit")
		offset, _ := flags.GetInt("offset")

		reader, err := datarecording.NewReader(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		params := datarecording.QueryParams{
			Limit:  limit,
			Offset: offset,
		}

		if runID != "" {
			params.Where = "RunID = ?"
			params.Args = []any{runID}
		}

		entries, total, err := reader.QuerySteps(cmd.Context(), params)
		if err != nil {
			return errors.Wrap(err, "reading history")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tSTEP\tTIMESTAMP\tURL")

		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				e.RunID, e.StepID, e.Timestamp, e.URL)
		}

		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d steps\n", len(entries), total)

		return nil
	},
}

func init() {
	historyCmd.Flags().String("run", "", "Only list steps of this run.")
	historyCmd.Flags().Int("limit", 0, "Maximum number of steps to list.")
	historyCmd.Flags().Int("offset", 0, "Number of steps to skip.")

	rootCmd.AddCommand(historyCmd)
}
