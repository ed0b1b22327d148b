package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/rs/xid"

	"sjsage522/steamdealworker/internal/model"
	"sjsage522/steamdealworker/internal/scoring"
	"sjsage522/steamdealworker/internal/steam"
	"sjsage522/steamdealworker/logger"
	"sjsage522/steamdealworker/pkg/metrics"
)

// Status is the final state of a pipeline run
type Status string

const (
	StatusOK            Status = "ok"
	StatusNotResolvable Status = "not_resolvable"
	StatusInaccessible  Status = "inaccessible"
	StatusEmpty         Status = "empty"
	StatusNoDiscounts   Status = "no_discounts"
)

// DefaultBudget bounds a whole run
const DefaultBudget = 10 * time.Minute

// Request describes one run
type Request struct {
	Profile     string
	Kind        model.ListKind
	MaxItems    int
	Delay       time.Duration
	Concurrency int
	Budget      time.Duration
	Rank        bool
	RankLimit   int
	// SortByPlaytime orders library entries by playtime before pricing
	SortByPlaytime bool
}

// Result is everything a run produced. Privacy and emptiness are statuses,
// not errors.
type Result struct {
	RunID      string                 `json:"run_id"`
	Profile    string                 `json:"profile"`
	Kind       model.ListKind         `json:"kind"`
	AccountID  model.AccountID        `json:"account_id,omitempty"`
	Verdict    *steam.Verdict         `json:"verdict,omitempty"`
	Status     Status                 `json:"status"`
	Reason     string                 `json:"reason,omitempty"`
	Stage      string                 `json:"stage,omitempty"`
	Entries    []model.ListEntry      `json:"entries,omitempty"`
	Checked    int                    `json:"checked"`
	Discounted []model.DiscountedItem `json:"discounted"`
	Ranked     []model.ScoredDeal     `json:"ranked,omitempty"`
	Duration   time.Duration          `json:"duration"`
}

// Resolver maps a profile reference onto an account id
type Resolver interface {
	Resolve(ctx context.Context, raw string) (model.AccountID, error)
}

// Prober classifies list accessibility
type Prober interface {
	Probe(ctx context.Context, id model.AccountID, kind model.ListKind) steam.Verdict
}

// Extractor reads a list
type Extractor interface {
	Extract(ctx context.Context, id model.AccountID, kind model.ListKind) steam.Extraction
}

// PriceChecker joins entries with prices
type PriceChecker interface {
	CheckPrices(ctx context.Context, entries []model.ListEntry, opts steam.CheckOptions) ([]model.DiscountedItem, int)
}

// Pipeline runs resolve → probe → extract → price → rank
type Pipeline struct {
	resolver  Resolver
	prober    Prober
	extractor Extractor
	pricer    PriceChecker
	scorer    *scoring.Scorer
}

func New(resolver Resolver, prober Prober, extractor Extractor, pricer PriceChecker, scorer *scoring.Scorer) *Pipeline {
	if scorer == nil {
		scorer = scoring.NewScorer(scoring.DefaultRules())
	}
	return &Pipeline{
		resolver:  resolver,
		prober:    prober,
		extractor: extractor,
		pricer:    pricer,
		scorer:    scorer,
	}
}

// Run executes one request within its budget. Stages after the deadline are
// skipped and whatever was completed is returned.
func (p *Pipeline) Run(ctx context.Context, req Request) (res Result) {
	started := time.Now()
	res = Result{
		RunID:      xid.New().String(),
		Profile:    req.Profile,
		Kind:       req.Kind,
		Discounted: []model.DiscountedItem{},
	}
	if res.Kind == "" {
		res.Kind = model.Wishlist
	}
	log := logger.ForPipeline(res.RunID).WithFields(logger.Fields{"profile": req.Profile, "kind": res.Kind})

	budget := req.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	defer func() {
		res.Duration = time.Since(started)
		metrics.PipelineRuns.WithLabelValues(string(res.Status)).Inc()
		log.Info().
			Str("status", string(res.Status)).
			Int("checked", res.Checked).
			Int("discounted", len(res.Discounted)).
			Dur("took", res.Duration).
			Msg("pipeline finished")
	}()

	id, err := p.resolver.Resolve(ctx, req.Profile)
	if err != nil {
		res.Status = StatusNotResolvable
		res.Reason = err.Error()
		return res
	}
	res.AccountID = id

	verdict := p.prober.Probe(ctx, id, res.Kind)
	res.Verdict = &verdict
	if verdict.PrivacyBlocked() {
		res.Status = StatusInaccessible
		res.Reason = verdict.Reason
		return res
	}
	if verdict.RateLimited {
		log.Warn().Msg("probe was rate limited, extracting anyway")
	}

	ext := p.extractor.Extract(ctx, id, res.Kind)
	res.Stage = ext.Stage
	switch {
	case ext.Inaccessible:
		res.Status = StatusInaccessible
		res.Reason = "list refused at stage " + ext.Stage
		return res
	case len(ext.Entries) == 0:
		res.Status = StatusEmpty
		if ext.Exhausted {
			res.Reason = "every extraction stage failed"
		}
		return res
	}

	entries := ext.Entries
	if req.SortByPlaytime {
		entries = SortByPlaytime(entries)
	}
	res.Entries = entries

	opts := steam.DefaultCheckOptions()
	opts.MaxItems = req.MaxItems
	if req.Delay > 0 {
		opts.Delay = req.Delay
	}
	if req.Concurrency > 0 {
		opts.Concurrency = req.Concurrency
	}
	discounted, checked := p.pricer.CheckPrices(ctx, entries, opts)
	if discounted != nil {
		res.Discounted = discounted
	}
	res.Checked = checked
	if len(res.Discounted) == 0 {
		res.Status = StatusNoDiscounts
		return res
	}

	if req.Rank {
		res.Ranked = p.scorer.Rank(res.Discounted, req.RankLimit)
	}
	res.Status = StatusOK
	return res
}

// SortByPlaytime returns a copy of entries ordered by playtime, most played first
func SortByPlaytime(entries []model.ListEntry) []model.ListEntry {
	sorted := make([]model.ListEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PlaytimeMinutes > sorted[j].PlaytimeMinutes
	})
	return sorted
}
