package commands

import (
	"github.com/spf13/cobra"

	"github.com/cleared-dev/equitax/internal/report"
	"github.com/cleared-dev/equitax/internal/txfile"
)

func newShowCommand(a *app) *cobra.Command {
	var input, style string
	var reverse bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a processed file as a table with a yearly summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recs, err := txfile.LoadRecords(txfile.EnsureExt(input))
			if err != nil {
				return err
			}
			return a.printReport(cmd.OutOrStdout(), recs, reverse, style)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "processed CSV (required)")
	cmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "print newest first")
	cmd.Flags().StringVar(&style, "style", report.DefaultStyle, "table style: auto, dark, light, notty, ascii")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}
