package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/equitax/internal/txfile"
)

func newMergeCommand(a *app) *cobra.Command {
	var inputs []string
	var output string

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge transaction files into one date-sorted file",
		Long: "Merge transaction files, typically one per fiscal year, into one file sorted\n" +
			"by date with purchases ahead of sales on the same day. Process the merged file\n" +
			"to carry holdings and average cost across years. The output is overwritten.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			output = txfile.EnsureExt(output)
			n, err := a.runMerge(inputs, output)
			a.audit("merge", strings.Join(inputs, ","), output, n, err)
			if err != nil {
				return err
			}
			a.commit(cmd.Context(), "merge: "+output, output)
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d transactions from %d files into %s\n", n, len(inputs), output)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "transaction CSV (repeatable, required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output CSV (required)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func (a *app) runMerge(inputs []string, output string) (int, error) {
	txs, err := txfile.Merge(inputs...)
	if err != nil {
		return 0, err
	}
	if err := txfile.SaveTransactions(output, txs, true); err != nil {
		return 0, err
	}
	a.log.Info().Int("files", len(inputs)).Int("transactions", len(txs)).Msg("Merged transactions")
	return len(txs), nil
}
