package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/equitax/internal/config"
	"github.com/cleared-dev/equitax/internal/fxrate"
	"github.com/cleared-dev/equitax/internal/txfile"
)

func newRatesCommand(a *app) *cobra.Command {
	ratesCmd := &cobra.Command{
		Use:   "rates",
		Short: "Exchange rate operations",
	}
	ratesCmd.AddCommand(newRatesSyncCommand(a))
	ratesCmd.AddCommand(newRatesShowCommand(a))
	ratesCmd.AddCommand(newRatesExportCommand(a))
	return ratesCmd
}

func newRatesSyncCommand(a *app) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Download official PTAX quotes into the local rate store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fromDay, toDay, err := parseRange(from, to)
			if err != nil {
				return err
			}

			storePath := a.cfg.Path(a.cfg.Rates.StorePath)
			store, err := fxrate.OpenStore(storePath)
			if err != nil {
				return err
			}
			defer store.Close()

			client := fxrate.NewPTAXClient(a.cfg.PTAXClientConfig(), a.log)
			n, err := fxrate.Sync(cmd.Context(), client, store, a.cfg.Currency.Foreign, fromDay, toDay, a.log)
			a.audit("rates sync", from+".."+to, storePath, n, err)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Stored %d %s quotes from %s to %s in %s\n",
				n, a.cfg.Currency.Foreign, from, to, storePath)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func newRatesShowCommand(a *app) *cobra.Command {
	var sideName string

	cmd := &cobra.Command{
		Use:   "show DATE",
		Short: "Show the rate a transaction on DATE would be converted at",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.Parse(dateFormat, args[0])
			if err != nil {
				return fmt.Errorf("parsing date %q: %w", args[0], err)
			}
			side, err := fxrate.ParseSide(sideName)
			if err != nil {
				return err
			}

			resolver, closeSrc, err := a.resolver()
			if err != nil {
				return err
			}
			defer closeSrc()

			rate, err := resolver.Resolve(cmd.Context(), d, side)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s/%s %s %s", d.Format(dateFormat),
				a.cfg.Currency.Foreign, a.cfg.Currency.Local, side, rate.Value)
			if !rate.PublishedOn.Equal(rate.Requested) {
				fmt.Fprintf(out, " (published %s)", rate.PublishedOn.Format(dateFormat))
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&sideName, "side", string(fxrate.Ask), "quote side: bid or ask")

	return cmd
}

func newRatesExportCommand(a *app) *cobra.Command {
	var from, to, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored quotes to a rate table CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fromDay, toDay, err := parseRange(from, to)
			if err != nil {
				return err
			}

			store, err := fxrate.OpenStore(a.cfg.Path(a.cfg.Rates.StorePath))
			if err != nil {
				return err
			}
			defer store.Close()

			quotes, err := store.Quotes(cmd.Context(), a.cfg.Currency.Foreign, fromDay, toDay)
			if err != nil {
				return err
			}

			output = txfile.EnsureExt(output)
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			if err := fxrate.WriteQuotes(f, quotes); err != nil {
				f.Close()
				return fmt.Errorf("writing %s: %w", output, err)
			}
			if err := f.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d quotes to %s\n", len(quotes), output)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output CSV (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

// rateSource opens the configured source. The returned func releases it.
func (a *app) rateSource() (fxrate.Source, func(), error) {
	nop := func() {}
	switch a.cfg.Rates.Source {
	case config.SourcePTAX:
		return fxrate.NewPTAXClient(a.cfg.PTAXClientConfig(), a.log), nop, nil
	case config.SourceTable:
		t, err := fxrate.LoadTable(a.cfg.Path(a.cfg.Rates.TablePath), a.cfg.Currency.Foreign)
		if err != nil {
			return nil, nil, err
		}
		return t, nop, nil
	case config.SourceStore:
		s, err := fxrate.OpenStore(a.cfg.Path(a.cfg.Rates.StorePath))
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown rate source %q", a.cfg.Rates.Source)
	}
}

func parseRange(from, to string) (time.Time, time.Time, error) {
	fromDay, err := time.Parse(dateFormat, from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing --from %q: %w", from, err)
	}
	toDay := time.Now().UTC().Truncate(24 * time.Hour)
	if to != "" {
		if toDay, err = time.Parse(dateFormat, to); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing --to %q: %w", to, err)
		}
	}
	if toDay.Before(fromDay) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", toDay.Format(dateFormat), from)
	}
	return fromDay, toDay, nil
}
