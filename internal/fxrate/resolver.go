package fxrate

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/cleared-dev/equitax/internal/model"
)

// DefaultLookbackDays bounds the backward walk when no lookback is configured.
const DefaultLookbackDays = 10

// cachedDay records what the source said about one day. A zero-value quote
// with published=false marks a day known to have no publication.
type cachedDay struct {
	quote     Quote
	published bool
}

// Resolver maps a day to a published rate, walking back over days without a
// publication. Quotes fetched from the source are kept in a run-local cache
// and never written anywhere.
type Resolver struct {
	src      Source
	currency string
	lookback int
	days     *cache.Cache
	fetches  int
	log      zerolog.Logger
}

// NewResolver creates a resolver over src for one foreign currency.
// lookbackDays <= 0 selects DefaultLookbackDays.
func NewResolver(src Source, currency string, lookbackDays int, log zerolog.Logger) *Resolver {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	return &Resolver{
		src:      src,
		currency: currency,
		lookback: lookbackDays,
		days:     cache.New(cache.NoExpiration, 0),
		log:      log.With().Str("component", "fxrate").Str("currency", currency).Logger(),
	}
}

// LookbackDays returns the configured window.
func (r *Resolver) LookbackDays() int { return r.lookback }

// Fetches returns how many times the source has been queried.
func (r *Resolver) Fetches() int { return r.fetches }

// Resolve returns the rate published on d or, failing that, on the nearest
// earlier day at most LookbackDays before d.
func (r *Resolver) Resolve(ctx context.Context, d time.Time, side Side) (Rate, error) {
	d = model.Day(d)
	for k := 0; k <= r.lookback; k++ {
		candidate := d.AddDate(0, 0, -k)
		entry, err := r.dayEntry(ctx, candidate, d)
		if err != nil {
			return Rate{}, err
		}
		if !entry.published {
			continue
		}
		if k > 0 {
			r.log.Debug().
				Str("requested", d.Format(dayFormat)).
				Str("published", candidate.Format(dayFormat)).
				Msg("No rate published on requested day, using earlier publication")
		}
		return Rate{
			Requested:   d,
			PublishedOn: candidate,
			Value:       entry.quote.Value(side),
		}, nil
	}
	return Rate{}, &RateUnavailableError{Currency: r.currency, Day: d, LookbackDays: r.lookback}
}

// dayEntry returns the cached state of candidate, fetching the whole window
// ending on windowEnd from the source when candidate has not been seen yet.
func (r *Resolver) dayEntry(ctx context.Context, candidate, windowEnd time.Time) (cachedDay, error) {
	key := candidate.Format(dayFormat)
	if v, ok := r.days.Get(key); ok {
		return v.(cachedDay), nil
	}

	from := windowEnd.AddDate(0, 0, -r.lookback)
	r.fetches++
	quotes, err := r.src.Quotes(ctx, r.currency, from, windowEnd)
	if err != nil {
		return cachedDay{}, fmt.Errorf("fetching %s rates %s..%s: %w",
			r.currency, from.Format(dayFormat), windowEnd.Format(dayFormat), err)
	}
	r.log.Debug().
		Str("from", from.Format(dayFormat)).
		Str("to", windowEnd.Format(dayFormat)).
		Int("quotes", len(quotes)).
		Msg("Fetched rate window")

	// Every day in the window is now known, published or not.
	for d := from; !d.After(windowEnd); d = d.AddDate(0, 0, 1) {
		k := d.Format(dayFormat)
		if _, ok := r.days.Get(k); !ok {
			r.days.Set(k, cachedDay{}, cache.NoExpiration)
		}
	}
	for _, q := range quotes {
		q.Day = model.Day(q.Day)
		if q.Day.Before(from) || q.Day.After(windowEnd) {
			continue
		}
		r.days.Set(q.Day.Format(dayFormat), cachedDay{quote: q, published: true}, cache.NoExpiration)
	}

	v, _ := r.days.Get(key)
	return v.(cachedDay), nil
}
