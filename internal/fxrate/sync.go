package fxrate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/equitax/internal/model"
)

// Sync copies every quote src publishes for currency between from and to into
// store, one calendar year per request. It returns the number of quotes saved.
func Sync(ctx context.Context, src Source, store *Store, currency string, from, to time.Time, log zerolog.Logger) (int, error) {
	from, to = model.Day(from), model.Day(to)
	if to.Before(from) {
		return 0, fmt.Errorf("sync range ends (%s) before it starts (%s)", to.Format(dayFormat), from.Format(dayFormat))
	}

	total := 0
	for start := from; !start.After(to); {
		end := time.Date(start.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
		if end.After(to) {
			end = to
		}

		quotes, err := src.Quotes(ctx, currency, start, end)
		if err != nil {
			return total, fmt.Errorf("fetching %s quotes %s..%s: %w",
				currency, start.Format(dayFormat), end.Format(dayFormat), err)
		}
		if err := store.Save(ctx, currency, quotes); err != nil {
			return total, err
		}
		total += len(quotes)

		log.Info().
			Str("currency", currency).
			Str("from", start.Format(dayFormat)).
			Str("to", end.Format(dayFormat)).
			Int("quotes", len(quotes)).
			Msg("Synced rates")

		start = end.AddDate(0, 0, 1)
	}
	return total, nil
}
