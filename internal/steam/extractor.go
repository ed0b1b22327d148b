package steam

import (
	"context"
	"time"

	"github.com/samber/lo"

	"sjsage522/steamdealworker/internal/model"
	"sjsage522/steamdealworker/logger"
	"sjsage522/steamdealworker/pkg/metrics"
	"sjsage522/steamdealworker/services/cache"
)

// Outcome is the result class of one extraction stage
type Outcome int

const (
	// OutcomeFailed moves the cascade on to the next stage
	OutcomeFailed Outcome = iota
	// OutcomeEntries stops the cascade with a non-empty list
	OutcomeEntries
	// OutcomeEmptyButValid stops the cascade with a confirmed empty list
	OutcomeEmptyButValid
	// OutcomeInaccessible stops the cascade; later stages are not attempted
	OutcomeInaccessible
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEntries:
		return "entries"
	case OutcomeEmptyButValid:
		return "empty"
	case OutcomeInaccessible:
		return "inaccessible"
	default:
		return "failed"
	}
}

// StageResult is what every stage returns
type StageResult struct {
	Outcome Outcome
	Entries []model.ListEntry
	Err     error
}

func failed(err error) StageResult {
	return StageResult{Outcome: OutcomeFailed, Err: err}
}

func entriesOrEmpty(entries []model.ListEntry) StageResult {
	if len(entries) == 0 {
		return StageResult{Outcome: OutcomeEmptyButValid}
	}
	return StageResult{Outcome: OutcomeEntries, Entries: entries}
}

// Strategy is one named stage of an extraction cascade
type Strategy struct {
	Name string
	Run  func(ctx context.Context, id model.AccountID) StageResult
}

// Extraction is the outcome of a whole cascade. Exhausted means every stage
// failed; an empty Entries slice with neither flag set is a confirmed empty list.
type Extraction struct {
	Entries      []model.ListEntry `json:"entries"`
	Stage        string            `json:"stage,omitempty"`
	Inaccessible bool              `json:"inaccessible,omitempty"`
	Exhausted    bool              `json:"exhausted,omitempty"`
}

// Extractor reads wishlists and libraries through an ordered cascade of
// endpoints and backfills missing names
type Extractor struct {
	client   *Client
	names    *NameResolver
	apiKey   string
	wishlist []Strategy
	library  []Strategy
}

// NewExtractor builds both cascades. apiKey is optional and only used for
// the owned-games API.
func NewExtractor(client *Client, names cache.CacheService, apiKey string) *Extractor {
	e := &Extractor{
		client: client,
		names:  NewNameResolver(client, names, DefaultCheckOptions().Delay),
		apiKey: apiKey,
	}
	e.wishlist = []Strategy{
		{Name: "wishlist_api", Run: e.wishlistAPI},
		{Name: "wishlist_legacy", Run: e.wishlistLegacy},
		{Name: "wishlist_community", Run: e.wishlistCommunity},
	}
	e.library = []Strategy{
		{Name: "owned_games_api", Run: e.ownedGamesAPI},
		{Name: "games_page", Run: e.gamesPage},
		{Name: "games_xml", Run: e.gamesXML},
	}
	return e
}

// WithNameDelay sets the idle time after each name backfill lookup
func (e *Extractor) WithNameDelay(d time.Duration) *Extractor {
	e.names.delay = d
	return e
}

// Strategies returns the cascade used for kind
func (e *Extractor) Strategies(kind model.ListKind) []Strategy {
	if kind == model.Library {
		return e.library
	}
	return e.wishlist
}

// Extract runs the cascade for kind and never fails
func (e *Extractor) Extract(ctx context.Context, id model.AccountID, kind model.ListKind) Extraction {
	ext := RunCascade(ctx, id, kind, e.Strategies(kind))
	if len(ext.Entries) > 0 {
		ext.Entries = e.names.Backfill(ctx, ext.Entries)
	}
	return ext
}

// RunCascade drives strategies in order until one returns a terminal outcome
func RunCascade(ctx context.Context, id model.AccountID, kind model.ListKind, strategies []Strategy) Extraction {
	log := logger.ForSteam("extract").WithFields(logger.Fields{"account": id, "kind": kind})

	for _, s := range strategies {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Str("stage", s.Name).Msg("extraction cancelled")
			break
		}

		res := s.Run(ctx, id)
		if res.Outcome == OutcomeEntries {
			res.Entries = normalizeEntries(res.Entries)
			if len(res.Entries) == 0 {
				res = failed(nil)
			}
		}

		metrics.ExtractorStages.WithLabelValues(string(kind), s.Name, res.Outcome.String()).Inc()

		switch res.Outcome {
		case OutcomeEntries:
			log.Info().Str("stage", s.Name).Int("entries", len(res.Entries)).Msg("list extracted")
			return Extraction{Entries: res.Entries, Stage: s.Name}
		case OutcomeEmptyButValid:
			log.Info().Str("stage", s.Name).Msg("list confirmed empty")
			return Extraction{Entries: []model.ListEntry{}, Stage: s.Name}
		case OutcomeInaccessible:
			log.Info().Str("stage", s.Name).Err(res.Err).Msg("list inaccessible, stopping cascade")
			return Extraction{Entries: []model.ListEntry{}, Stage: s.Name, Inaccessible: true}
		default:
			log.Debug().Str("stage", s.Name).Err(res.Err).Msg("stage failed, trying next")
		}
	}

	return Extraction{Entries: []model.ListEntry{}, Exhausted: true}
}

// normalizeEntries drops entries without an item id and keeps the first
// occurrence of each id
func normalizeEntries(entries []model.ListEntry) []model.ListEntry {
	withID := lo.Filter(entries, func(e model.ListEntry, _ int) bool {
		return e.ItemID != ""
	})
	return lo.UniqBy(withID, func(e model.ListEntry) string {
		return e.ItemID
	})
}
