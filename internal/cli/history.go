package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or clear the verdict history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded verdicts, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		entries := a.history.List(cmd.Context())
		stats := a.history.Stats(cmd.Context())

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tIMAGE\tUSER\tSUGGESTED\tCORRECT\tCONFIDENCE")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%.2f\n",
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				e.ImageName, e.UserClassification, e.SuggestedClassification,
				e.IsCorrect, e.Confidence)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d correct\n", stats.Correct, stats.Total)
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every recorded verdict",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.history.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyClearCmd)
}
