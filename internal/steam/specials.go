package steam

import (
	"context"
	"encoding/json"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/steamdealworker/helpers"
	"sjsage522/steamdealworker/internal/model"
	"sjsage522/steamdealworker/logger"
	"sjsage522/steamdealworker/pkg/errors"
)

// SpecialsSelectors holds the CSS selectors of one search result row.
// Comma-separated alternatives cover the old and the current store markup.
type SpecialsSelectors struct {
	Row           string
	Title         string
	Discount      string
	OriginalPrice string
	FinalPrice    string
	PriceData     string
	Released      string
	Tags          string
}

// DefaultSpecialsSelectors matches the store search results markup
var DefaultSpecialsSelectors = SpecialsSelectors{
	Row:           "a.search_result_row",
	Title:         "span.title",
	Discount:      "div.discount_pct, div.search_discount span, div.search_discount",
	OriginalPrice: "div.discount_original_price, span.search_discount_orig_price, div.search_price strike",
	FinalPrice:    "div.discount_final_price, span.search_discount_final_price",
	PriceData:     "[data-price-final]",
	Released:      "div.search_released",
	Tags:          "span.search_tag",
}

var percentPattern = regexp.MustCompile(`(\d{1,3})\s*%`)

// SpecialsOptions tunes how far the search results are paged
type SpecialsOptions struct {
	PageSize   int
	MaxScanned int
	PageDelay  time.Duration
	Selectors  SpecialsSelectors
}

// Specials scrapes the store's discounted-games search
type Specials struct {
	client *Client
	opts   SpecialsOptions
}

func NewSpecials(client *Client, opts SpecialsOptions) *Specials {
	if opts.PageSize <= 0 {
		opts.PageSize = 25
	}
	if opts.MaxScanned <= 0 {
		opts.MaxScanned = 200
	}
	if opts.Selectors == (SpecialsSelectors{}) {
		opts.Selectors = DefaultSpecialsSelectors
	}
	return &Specials{client: client, opts: opts}
}

// Fetch returns up to maxResults games discounted by at least minDiscount
// percent, deepest discount first
func (s *Specials) Fetch(ctx context.Context, minDiscount, maxResults int) ([]model.DiscountedItem, error) {
	log := logger.ForSteam("specials")

	var deals []model.DiscountedItem
	seen := map[string]struct{}{}

	for start := 0; start < s.opts.MaxScanned; start += s.opts.PageSize {
		if start > 0 {
			if err := s.client.sleep(ctx, s.opts.PageDelay); err != nil {
				break
			}
		}

		page, err := s.fetchPage(ctx, start)
		if err != nil {
			if start == 0 {
				return nil, err
			}
			log.Warn().Err(err).Int("start", start).Msg("specials page failed, keeping earlier pages")
			break
		}
		if len(page) == 0 {
			break
		}

		for _, d := range page {
			if _, dup := seen[d.Entry.ItemID]; dup {
				continue
			}
			seen[d.Entry.ItemID] = struct{}{}
			if d.Quote.DiscountPercent >= minDiscount && d.Quote.DiscountPercent > 0 {
				deals = append(deals, d)
			}
		}
	}

	sort.SliceStable(deals, func(i, j int) bool {
		return deals[i].Quote.DiscountPercent > deals[j].Quote.DiscountPercent
	})
	if maxResults > 0 && len(deals) > maxResults {
		deals = deals[:maxResults]
	}

	log.Info().Int("deals", len(deals)).Int("min_discount", minDiscount).Msg("specials fetched")
	return deals, nil
}

func (s *Specials) fetchPage(ctx context.Context, start int) ([]model.DiscountedItem, error) {
	store := s.client.Endpoints().Store
	resp, err := s.client.Get(ctx, "specials", store+"/search/results/", url.Values{
		"query":     {""},
		"start":     {strconv.Itoa(start)},
		"count":     {strconv.Itoa(s.opts.PageSize)},
		"infinite":  {"1"},
		"specials":  {"1"},
		"ndl":       {"1"},
		"category1": {"998"},
		"sort_by":   {"_ASC"},
		"cc":        {s.client.Country()},
		"l":         {s.client.Language()},
	}, helpers.XHRHeaders(store+"/search/?specials=1"))
	if err != nil {
		return nil, err
	}
	if err := Expect200("specials", resp); err != nil {
		return nil, err
	}

	var envelope struct {
		Success     int    `json:"success"`
		ResultsHTML string `json:"results_html"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, errors.NewParsing("specials", "invalid search envelope", err)
	}
	return s.parseRows(envelope.ResultsHTML)
}

func (s *Specials) parseRows(html string) ([]model.DiscountedItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.NewParsing("specials", "HTML parse error", err)
	}

	var deals []model.DiscountedItem
	doc.Find(s.opts.Selectors.Row).Each(func(_ int, row *goquery.Selection) {
		if d, ok := s.parseRow(row); ok {
			deals = append(deals, d)
		}
	})
	return deals, nil
}

func (s *Specials) parseRow(row *goquery.Selection) (model.DiscountedItem, bool) {
	sel := s.opts.Selectors

	title := strings.TrimSpace(row.Find(sel.Title).First().Text())
	if title == "" {
		return model.DiscountedItem{}, false
	}

	id := firstAppID(row.AttrOr("data-ds-appid", ""))
	if id == "" {
		if m := appHrefPattern.FindStringSubmatch(row.AttrOr("href", "")); m != nil {
			id = m[1]
		}
	}
	if id == "" {
		return model.DiscountedItem{}, false
	}

	discount := parseDiscount(row, sel.Discount)
	if discount <= 0 {
		return model.DiscountedItem{}, false
	}

	var final int64
	if raw, ok := row.Find(sel.PriceData).First().Attr("data-price-final"); ok {
		final, _ = strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	}
	var initial int64
	if final > 0 && discount < 100 {
		initial = int64(math.Round(float64(final) * 100 / float64(100-discount)))
	}

	tags := make([]string, 0)
	row.Find(sel.Tags).Each(func(_ int, t *goquery.Selection) {
		if tag := strings.TrimSpace(t.Text()); tag != "" {
			tags = append(tags, tag)
		}
	})

	return model.DiscountedItem{
		Entry: model.ListEntry{
			ItemID:      id,
			DisplayName: title,
			Tags:        tags,
			Released:    strings.TrimSpace(row.Find(sel.Released).First().Text()),
		},
		Quote: model.PriceQuote{
			InitialAmount:    initial,
			FinalAmount:      final,
			DiscountPercent:  discount,
			InitialFormatted: strings.TrimSpace(row.Find(sel.OriginalPrice).First().Text()),
			FinalFormatted:   strings.TrimSpace(row.Find(sel.FinalPrice).First().Text()),
		},
		URL: model.AppURL(id),
	}, true
}

// firstAppID takes the first id of a bundle's comma-separated list
func firstAppID(raw string) string {
	id := strings.TrimSpace(strings.Split(raw, ",")[0])
	if !helpers.IsNumeric(id) {
		return ""
	}
	return id
}

func parseDiscount(row *goquery.Selection, selector string) int {
	if raw, ok := row.Find("[data-discount]").First().Attr("data-discount"); ok {
		if d, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			return d
		}
	}
	if m := percentPattern.FindStringSubmatch(row.Find(selector).First().Text()); m != nil {
		d, _ := strconv.Atoi(m[1])
		return d
	}
	return 0
}
