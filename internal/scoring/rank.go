package scoring

import (
	"sort"

	"github.com/samber/lo"

	"sjsage522/steamdealworker/internal/model"
)

// Rank scores items and orders them by score, then discount, both descending.
// Equal items keep their input order. limit <= 0 returns everything.
func (s *Scorer) Rank(items []model.DiscountedItem, limit int) []model.ScoredDeal {
	scored := lo.Map(items, func(it model.DiscountedItem, _ int) model.ScoredDeal {
		return model.ScoredDeal{DiscountedItem: it, Score: s.Score(it)}
	})

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Quote.DiscountPercent > scored[j].Quote.DiscountPercent
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// Rank orders items with the default rules
func Rank(items []model.DiscountedItem, limit int) []model.ScoredDeal {
	return NewScorer(DefaultRules()).Rank(items, limit)
}
