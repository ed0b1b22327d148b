package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"sjsage522/steamdealworker/helpers"
	"sjsage522/steamdealworker/internal/model"
	"sjsage522/steamdealworker/logger"
	"sjsage522/steamdealworker/pkg/errors"
	"sjsage522/steamdealworker/services/cache"
)

const (
	nameCacheTTL       = 24 * time.Hour
	placeholderName    = "Unknown Game"
	nameCacheKeyPrefix = "steamdeal:appname:"
)

// NameResolver looks up store titles for entries that arrived without one
type NameResolver struct {
	client *Client
	cache  cache.CacheService
	delay  time.Duration
}

// NewNameResolver idles delay after every store lookup; cached names are free
func NewNameResolver(client *Client, c cache.CacheService, delay time.Duration) *NameResolver {
	if c == nil {
		c = cache.NewMemoryService(time.Hour)
	}
	return &NameResolver{client: client, cache: c, delay: delay}
}

// Backfill replaces placeholder names in place where the store knows better.
// Lookups stop after the first rate limit; unresolved entries keep a placeholder.
func (n *NameResolver) Backfill(ctx context.Context, entries []model.ListEntry) []model.ListEntry {
	log := logger.ForSteam("names")
	pace := newPacer(n.delay)
	filled, limited := 0, false

	for i := range entries {
		if !entries[i].HasPlaceholderName() {
			continue
		}
		if !limited && ctx.Err() == nil {
			name, err := n.cached(entries[i].ItemID)
			if err != nil {
				name, err = n.pacedFetch(ctx, pace, entries[i].ItemID)
			}
			switch {
			case err == nil:
				entries[i].DisplayName = name
				filled++
				continue
			case errors.IsType(err, errors.ErrorTypeRateLimit):
				log.Warn().Dur("retry_after", errors.RetryAfter(err)).Msg("rate limited during name backfill, keeping placeholders")
				limited = true
			default:
				log.Debug().Err(err).Str("item_id", entries[i].ItemID).Msg("name lookup failed")
			}
		}
		if entries[i].DisplayName == "" {
			entries[i].DisplayName = placeholderName
		}
	}

	if filled > 0 {
		log.Debug().Int("filled", filled).Msg("names backfilled")
	}
	return entries
}

// Lookup returns the store title of itemID, consulting the cache first
func (n *NameResolver) Lookup(ctx context.Context, itemID string) (string, error) {
	if name, err := n.cached(itemID); err == nil {
		return name, nil
	}
	return n.fetch(ctx, itemID)
}

func (n *NameResolver) cached(itemID string) (string, error) {
	raw, err := n.cache.Get(nameCacheKeyPrefix + itemID)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", cache.ErrMiss
	}
	return string(raw), nil
}

func (n *NameResolver) pacedFetch(ctx context.Context, pace *pacer, itemID string) (string, error) {
	if err := pace.Wait(ctx); err != nil {
		return "", errors.NewNetwork("appdetails_basic", "name lookup not scheduled", err)
	}
	started := time.Now()
	name, err := n.fetch(ctx, itemID)
	_ = pace.Done(ctx, time.Since(started))
	return name, err
}

func (n *NameResolver) fetch(ctx context.Context, itemID string) (string, error) {
	resp, err := n.client.Get(ctx, "appdetails_basic", n.client.Endpoints().Store+"/api/appdetails",
		url.Values{"appids": {itemID}, "filters": {"basic"}, "l": {n.client.Language()}},
		helpers.XHRHeaders(n.client.Endpoints().Store+"/"))
	if err != nil {
		return "", err
	}
	if err := Expect200("appdetails_basic", resp); err != nil {
		return "", err
	}

	var envelope map[string]struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return "", errors.NewParsing("appdetails_basic", "invalid envelope", err)
	}
	entry, ok := envelope[itemID]
	if !ok || !entry.Success {
		return "", errors.NewParsing("appdetails_basic", fmt.Sprintf("no details for %s", itemID), nil)
	}
	var data struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(entry.Data, &data); err != nil || data.Name == "" {
		return "", errors.NewParsing("appdetails_basic", fmt.Sprintf("no name for %s", itemID), err)
	}

	if err := n.cache.Set(nameCacheKeyPrefix+itemID, []byte(data.Name), nameCacheTTL); err != nil {
		logger.ForCache().Debug().Err(err).Msg("failed to cache app name")
	}
	return data.Name, nil
}
