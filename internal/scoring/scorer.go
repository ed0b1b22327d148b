package scoring

import (
	"strings"

	"github.com/samber/lo"

	"sjsage522/steamdealworker/internal/model"
)

// Breakdown lists each component of a score
type Breakdown struct {
	Discount   int `json:"discount"`
	Popularity int `json:"popularity"`
	PriceTier  int `json:"price_tier"`
	Trend      int `json:"trend"`
	Penalty    int `json:"penalty"`
	Total      int `json:"total"`
}

// Scorer rates discounted items. It holds no state besides its rules and is
// safe for concurrent use.
type Scorer struct {
	rules Rules
}

func NewScorer(rules Rules) *Scorer {
	return &Scorer{rules: rules}
}

// Score returns the clamped attractiveness of item
func (s *Scorer) Score(item model.DiscountedItem) int {
	return s.Explain(item).Total
}

// Explain returns the score together with its components
func (s *Scorer) Explain(item model.DiscountedItem) Breakdown {
	r := s.rules
	title := strings.ToLower(item.Entry.DisplayName)

	var b Breakdown
	b.Discount = max(0, min(item.Quote.DiscountPercent, r.DiscountCap))

	if containsAny(title, r.PopularKeywords) {
		b.Popularity = r.PopularityBonus
	}

	b.PriceTier = s.tierPoints(item.Quote.FinalAmount)

	// store tags are not part of the trend text
	trendText := strings.ToLower(item.Entry.DisplayName + " " + item.Entry.Description)
	if containsAny(trendText, r.TrendKeywords) {
		b.Trend = r.TrendBonus
	}

	if containsAny(title, r.DLCKeywords) {
		b.Penalty += r.DLCPenalty
	}
	if containsAny(title, r.OldYearMarkers) {
		b.Penalty += r.OldYearPenalty
	}

	total := b.Discount + b.Popularity + b.PriceTier + b.Trend - b.Penalty
	b.Total = max(r.MinScore, min(total, r.MaxScore))
	return b
}

func (s *Scorer) tierPoints(final int64) int {
	if final > 0 {
		for _, t := range s.rules.Tiers {
			if final <= t.UpTo {
				return t.Points
			}
		}
	}
	return s.rules.FallbackTierPoints
}

// containsAny reports whether text contains any keyword; only the first hit counts
func containsAny(text string, keywords []string) bool {
	return lo.ContainsBy(keywords, func(k string) bool {
		return strings.Contains(text, k)
	})
}
