package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/xid"

	"sjsage522/steamdealworker/internal/model"
	"sjsage522/steamdealworker/internal/scoring"
	"sjsage522/steamdealworker/logger"
	"sjsage522/steamdealworker/pkg/errors"
	"sjsage522/steamdealworker/pkg/metrics"
	"sjsage522/steamdealworker/services/publisher"
	"sjsage522/steamdealworker/storage"
)

// SpecialsSource supplies the store's current discounts
type SpecialsSource interface {
	Fetch(ctx context.Context, minDiscount, maxResults int) ([]model.DiscountedItem, error)
}

// Options controls the digest loop
type Options struct {
	Interval    time.Duration
	MinDiscount int
	MaxResults  int
	TopLimit    int
}

// Digest is the message published after every run
type Digest struct {
	RunID       string             `json:"run_id"`
	Week        string             `json:"week"`
	GeneratedAt time.Time          `json:"generated_at"`
	Deals       []model.ScoredDeal `json:"deals"`
}

// Worker periodically builds and publishes the weekly top of store specials
type Worker struct {
	specials  SpecialsSource
	scorer    *scoring.Scorer
	store     storage.WeeklyTopStore
	publisher publisher.Publisher
	opts      Options
	now       func() time.Time
}

// NewWorker creates a new worker. store may be nil to skip persistence.
func NewWorker(
	specials SpecialsSource,
	scorer *scoring.Scorer,
	store storage.WeeklyTopStore,
	pub publisher.Publisher,
	opts Options,
) *Worker {
	if opts.Interval <= 0 {
		opts.Interval = 6 * time.Hour
	}
	if opts.TopLimit <= 0 {
		opts.TopLimit = 15
	}
	return &Worker{
		specials:  specials,
		scorer:    scorer,
		store:     store,
		publisher: pub,
		opts:      opts,
		now:       time.Now,
	}
}

// Start runs a digest immediately and then every interval until ctx is done
func (w *Worker) Start(ctx context.Context) {
	log := logger.ForWorker()
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		start := time.Now()
		if _, err := w.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("digest run failed")
		}
		log.Debug().Dur("elapsed", time.Since(start)).Msg("digest run finished")

		select {
		case <-ctx.Done():
			log.Info().Msg("worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce fetches specials, ranks them, stores and publishes the top
func (w *Worker) RunOnce(ctx context.Context) (Digest, error) {
	runID := xid.New().String()
	log := logger.ForWorker().WithField("run_id", runID)
	at := w.now()

	items, err := w.specials.Fetch(ctx, w.opts.MinDiscount, w.opts.MaxResults)
	if err != nil {
		metrics.DigestRuns.WithLabelValues("fetch_error").Inc()
		return Digest{}, err
	}

	digest := Digest{
		RunID:       runID,
		Week:        storage.ISOWeek(at),
		GeneratedAt: at.UTC(),
		Deals:       w.scorer.Rank(items, w.opts.TopLimit),
	}
	if len(digest.Deals) == 0 {
		metrics.DigestRuns.WithLabelValues("empty").Inc()
		log.Info().Msg("no specials above the discount threshold")
		return digest, nil
	}

	if w.store != nil {
		if err := w.store.Save(ctx, digest.Deals, at); err != nil {
			log.Error().Err(err).Msg("failed to persist weekly top")
		}
	}

	data, err := json.Marshal(digest)
	if err != nil {
		metrics.DigestRuns.WithLabelValues("publish_error").Inc()
		return digest, errors.NewPublisher("digest", "marshal failed", err)
	}
	if err := w.publisher.Publish(ctx, publisher.KeyWeeklyDigest, data); err != nil {
		metrics.DigestRuns.WithLabelValues("publish_error").Inc()
		return digest, err
	}

	// Trim all streams after publishing
	if err := w.publisher.TrimStreams(ctx); err != nil {
		log.Warn().Err(err).Msg("stream trimming failed")
	}

	metrics.DigestRuns.WithLabelValues("ok").Inc()
	log.Info().
		Int("deals", len(digest.Deals)).
		Str("top", digest.Deals[0].Entry.DisplayName).
		Msg("weekly digest published")
	return digest, nil
}
