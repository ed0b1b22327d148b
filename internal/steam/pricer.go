package steam

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"sjsage522/steamdealworker/helpers"
	"sjsage522/steamdealworker/internal/model"
	"sjsage522/steamdealworker/logger"
	"sjsage522/steamdealworker/pkg/errors"
	"sjsage522/steamdealworker/pkg/metrics"
)

// ErrNoPrice is returned for items the store does not sell for money in the configured country
var ErrNoPrice = stderrors.New("no price overview")

// CheckOptions controls a batch price check
type CheckOptions struct {
	// Delay is the idle time after each response before the next request
	Delay time.Duration
	// MaxItems caps how many entries are checked; zero or less checks all
	MaxItems int
	// Concurrency bounds in-flight requests; zero or less means one. It only
	// absorbs slow responses: the request rate still follows Delay plus latency.
	Concurrency int
	// ProgressEvery logs progress after this many completed checks
	ProgressEvery int
}

// DefaultCheckOptions matches the store's tolerance for anonymous traffic
func DefaultCheckOptions() CheckOptions {
	return CheckOptions{
		Delay:         150 * time.Millisecond,
		MaxItems:      100,
		Concurrency:   1,
		ProgressEvery: 25,
	}
}

// Pricer joins list entries with current store prices
type Pricer struct {
	client *Client
}

func NewPricer(client *Client) *Pricer {
	return &Pricer{client: client}
}

type priceOverview struct {
	Currency         string `json:"currency"`
	Initial          int64  `json:"initial"`
	Final            int64  `json:"final"`
	DiscountPercent  int    `json:"discount_percent"`
	InitialFormatted string `json:"initial_formatted"`
	FinalFormatted   string `json:"final_formatted"`
}

// Quote fetches the price overview of one item
func (p *Pricer) Quote(ctx context.Context, itemID string) (model.PriceQuote, error) {
	store := p.client.Endpoints().Store
	resp, err := p.client.Get(ctx, "appdetails_price", store+"/api/appdetails",
		url.Values{"appids": {itemID}, "filters": {"price_overview"}, "cc": {p.client.Country()}},
		helpers.XHRHeaders(store+"/"))
	if err != nil {
		return model.PriceQuote{}, err
	}
	if err := Expect200("appdetails_price", resp); err != nil {
		return model.PriceQuote{}, err
	}
	return parsePriceEnvelope(itemID, resp.Body)
}

func parsePriceEnvelope(itemID string, body []byte) (model.PriceQuote, error) {
	var envelope map[string]struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return model.PriceQuote{}, errors.NewParsing("appdetails_price", "invalid envelope", err)
	}
	entry, ok := envelope[itemID]
	if !ok {
		return model.PriceQuote{}, errors.NewParsing("appdetails_price", fmt.Sprintf("envelope has no key %s", itemID), nil)
	}
	if !entry.Success {
		return model.PriceQuote{}, errors.NewParsing("appdetails_price", fmt.Sprintf("lookup of %s unsuccessful", itemID), nil)
	}

	// free or unlisted items come back with data: []
	data := bytes.TrimSpace(entry.Data)
	if len(data) == 0 || data[0] != '{' {
		return model.PriceQuote{}, ErrNoPrice
	}
	var details struct {
		PriceOverview *priceOverview `json:"price_overview"`
	}
	if err := json.Unmarshal(data, &details); err != nil {
		return model.PriceQuote{}, errors.NewParsing("appdetails_price", "invalid data object", err)
	}
	if details.PriceOverview == nil {
		return model.PriceQuote{}, ErrNoPrice
	}

	po := details.PriceOverview
	return model.PriceQuote{
		Currency:         po.Currency,
		InitialAmount:    po.Initial,
		FinalAmount:      po.Final,
		DiscountPercent:  po.DiscountPercent,
		InitialFormatted: po.InitialFormatted,
		FinalFormatted:   po.FinalFormatted,
	}, nil
}

// CheckPrices quotes up to opts.MaxItems entries and returns those on sale, in
// input order, together with the number of lookups that completed. Failed
// lookups are logged and skipped. Each lookup is followed by opts.Delay of
// idle time before its slot is released. Cancelling ctx stops scheduling new
// lookups; finished ones are still returned.
func (p *Pricer) CheckPrices(ctx context.Context, entries []model.ListEntry, opts CheckOptions) ([]model.DiscountedItem, int) {
	log := logger.ForSteam("pricer")

	if opts.MaxItems > 0 && len(entries) > opts.MaxItems {
		log.Info().Int("total", len(entries)).Int("checked", opts.MaxItems).Msg("capping price checks")
		entries = entries[:opts.MaxItems]
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 25
	}

	pace := newPacer(opts.Delay)
	results := make([]*model.DiscountedItem, len(entries))
	var done atomic.Int64

	var g errgroup.Group
	g.SetLimit(opts.Concurrency)

	for i, entry := range entries {
		if err := pace.Wait(ctx); err != nil {
			log.Warn().Err(err).Int("scheduled", i).Int("total", len(entries)).Msg("price check stopped early")
			break
		}

		g.Go(func() error {
			started := time.Now()
			results[i] = p.check(ctx, entry)
			// a lookup cut short by cancellation was not checked
			if results[i] != nil || ctx.Err() == nil {
				if n := done.Add(1); n%int64(opts.ProgressEvery) == 0 {
					log.Info().Int64("done", n).Int("total", len(entries)).Msg("price check progress")
				}
			}
			_ = pace.Done(ctx, time.Since(started))
			return nil
		})
	}
	_ = g.Wait()

	discounted := make([]model.DiscountedItem, 0, len(entries))
	for _, r := range results {
		if r != nil {
			discounted = append(discounted, *r)
		}
	}
	checked := int(done.Load())
	log.Info().
		Int("checked", checked).
		Int("discounted", len(discounted)).
		Msg("price check finished")
	return discounted, checked
}

func (p *Pricer) check(ctx context.Context, entry model.ListEntry) *model.DiscountedItem {
	quote, err := p.Quote(ctx, entry.ItemID)
	switch {
	case stderrors.Is(err, ErrNoPrice):
		metrics.PriceChecks.WithLabelValues("no_price").Inc()
		return nil
	case err != nil:
		metrics.PriceChecks.WithLabelValues("error").Inc()
		logger.ForSteam("pricer").Warn().Err(err).Str("item_id", entry.ItemID).Msg("price lookup failed, skipping")
		return nil
	case quote.DiscountPercent < 1:
		metrics.PriceChecks.WithLabelValues("full_price").Inc()
		return nil
	}

	metrics.PriceChecks.WithLabelValues("discounted").Inc()
	return &model.DiscountedItem{
		Entry: entry,
		Quote: quote,
		URL:   model.AppURL(entry.ItemID),
	}
}
