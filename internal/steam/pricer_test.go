package steam

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/steamdealworker/internal/model"
	"sjsage522/steamdealworker/services/cache"
)

func priceBody(id string, initial, final int64, discount int) string {
	return fmt.Sprintf(`{"%s":{"success":true,"data":{"price_overview":{
		"currency":"RUB","initial":%d,"final":%d,"discount_percent":%d,
		"initial_formatted":"%d ₽","final_formatted":"%d ₽"}}}}`,
		id, initial, final, discount, initial/100, final/100)
}

// priceRoutes answers price lookups per app id; unknown ids get a 500
func priceRoutes(t *testing.T, bodies map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "price_overview", q.Get("filters"))
		assert.Equal(t, "ru", q.Get("cc"))

		id := q.Get("appids")
		if id == "slow" {
			<-r.Context().Done()
			return
		}
		body, ok := bodies[id]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		jsonBody(body)(w, r)
	}
}

func entries(ids ...string) []model.ListEntry {
	out := make([]model.ListEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.ListEntry{ItemID: id, DisplayName: "Game " + id})
	}
	return out
}

func TestQuote(t *testing.T) {
	f := newFakeSteam(t)
	f.handle(appDetailsPath, priceRoutes(t, map[string]string{
		"292030": priceBody("292030", 119900, 29900, 75),
	}))

	quote, err := NewPricer(f.client()).Quote(context.Background(), "292030")
	require.NoError(t, err)
	assert.Equal(t, "RUB", quote.Currency)
	assert.Equal(t, int64(119900), quote.InitialAmount)
	assert.Equal(t, int64(29900), quote.FinalAmount)
	assert.Equal(t, 75, quote.DiscountPercent)
	assert.Equal(t, "299 ₽", quote.FinalFormatted)
}

func TestParsePriceEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		noPrice bool
	}{
		{name: "free game", body: `{"570":{"success":true,"data":[]}}`, noPrice: true},
		{name: "no overview", body: `{"570":{"success":true,"data":{"is_free":true}}}`, noPrice: true},
		{name: "unsuccessful", body: `{"570":{"success":false}}`},
		{name: "wrong key", body: `{"440":{"success":true,"data":[]}}`},
		{name: "not json", body: `<html>oops</html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsePriceEnvelope("570", []byte(tt.body))
			require.Error(t, err)
			assert.Equal(t, tt.noPrice, err == ErrNoPrice)
		})
	}
}

func TestCheckPricesFiltersAndKeepsOrder(t *testing.T) {
	f := newFakeSteam(t)
	f.handle(appDetailsPath, priceRoutes(t, map[string]string{
		"1": priceBody("1", 100000, 50000, 50),
		"2": priceBody("2", 100000, 100000, 0),
		"3": `{"3":{"success":true,"data":[]}}`,
		"4": priceBody("4", 100000, 99000, 1),
		"5": `{"5":{"success":false}}`,
		"6": priceBody("6", 200000, 20000, 90),
	}))

	opts := CheckOptions{Concurrency: 3, ProgressEvery: 2}
	got, checked := NewPricer(f.client()).CheckPrices(context.Background(), entries("1", "2", "3", "4", "5", "missing", "6"), opts)

	require.Len(t, got, 3)
	assert.Equal(t, 7, checked)
	assert.Equal(t, "1", got[0].Entry.ItemID)
	assert.Equal(t, "4", got[1].Entry.ItemID)
	assert.Equal(t, 1, got[1].Quote.DiscountPercent)
	assert.Equal(t, "6", got[2].Entry.ItemID)
	assert.Equal(t, "https://store.steampowered.com/app/6/", got[2].URL)
	assert.Equal(t, "Game 6", got[2].Entry.DisplayName)
	assert.Equal(t, 7, f.hitCount(appDetailsPath))
}

func TestCheckPricesRespectsMaxItems(t *testing.T) {
	f := newFakeSteam(t)
	f.handle(appDetailsPath, priceRoutes(t, map[string]string{
		"1": priceBody("1", 1000, 500, 50),
		"2": priceBody("2", 1000, 500, 50),
		"3": priceBody("3", 1000, 500, 50),
	}))

	got, checked := NewPricer(f.client()).CheckPrices(context.Background(), entries("1", "2", "3"), CheckOptions{MaxItems: 2})
	assert.Len(t, got, 2)
	assert.Equal(t, 2, checked)
	assert.Equal(t, 2, f.hitCount(appDetailsPath))
}

func TestCheckPricesSkipsTimedOutItem(t *testing.T) {
	f := newFakeSteam(t)
	f.handle(appDetailsPath, priceRoutes(t, map[string]string{
		"1": priceBody("1", 1000, 500, 50),
		"2": priceBody("2", 1000, 250, 75),
	}))

	c := NewClient(ClientOptions{
		Endpoints: f.endpoints(),
		Timeout:   100 * time.Millisecond,
		Cache:     cache.NewMemoryService(time.Minute),
	})

	got, _ := NewPricer(c).CheckPrices(context.Background(), entries("1", "slow", "2"), CheckOptions{})
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].Entry.ItemID)
	assert.Equal(t, "2", got[1].Entry.ItemID)
}

func TestCheckPricesPacesRequests(t *testing.T) {
	f := newFakeSteam(t)
	var last atomic.Int64
	var minGap atomic.Int64
	minGap.Store(int64(time.Hour))
	bodies := map[string]string{
		"1": priceBody("1", 1000, 500, 50),
		"2": priceBody("2", 1000, 500, 50),
		"3": priceBody("3", 1000, 500, 50),
	}
	f.handle(appDetailsPath, func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UnixNano()
		if prev := last.Swap(now); prev != 0 && now-prev < minGap.Load() {
			minGap.Store(now - prev)
		}
		id := r.URL.Query().Get("appids")
		jsonBody(bodies[id])(w, r)
	})

	start := time.Now()
	got, _ := NewPricer(f.client()).CheckPrices(context.Background(), entries("1", "2", "3"),
		CheckOptions{Delay: 40 * time.Millisecond, Concurrency: 3})

	assert.Len(t, got, 3)
	assert.True(t, time.Since(start) >= 70*time.Millisecond, "requests were not paced")
	assert.True(t, time.Duration(minGap.Load()) >= 30*time.Millisecond, "min gap %v", time.Duration(minGap.Load()))
}

// requestLog records when each request arrived and when its response was written
type requestLog struct {
	mu    sync.Mutex
	spans [][2]time.Time
}

func (l *requestLog) add(start, end time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.spans = append(l.spans, [2]time.Time{start, end})
}

// idleGaps returns the time between each response and the next request
func (l *requestLog) idleGaps() []time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	var gaps []time.Duration
	for i := 1; i < len(l.spans); i++ {
		gaps = append(gaps, l.spans[i][0].Sub(l.spans[i-1][1]))
	}
	return gaps
}

func slowPriceHandler(latency time.Duration, log *requestLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		time.Sleep(latency)
		id := r.URL.Query().Get("appids")
		jsonBody(priceBody(id, 1000, 500, 50))(w, r)
		log.add(start, time.Now())
	}
}

func TestCheckPricesIdlesAfterSlowResponses(t *testing.T) {
	f := newFakeSteam(t)
	var reqs requestLog
	f.handle(appDetailsPath, slowPriceHandler(80*time.Millisecond, &reqs))

	delay := 50 * time.Millisecond
	got, checked := NewPricer(f.client()).CheckPrices(context.Background(), entries("1", "2", "3", "4"),
		CheckOptions{Delay: delay, Concurrency: 1})

	assert.Len(t, got, 4)
	assert.Equal(t, 4, checked)
	gaps := reqs.idleGaps()
	require.Len(t, gaps, 3)
	for i, gap := range gaps {
		assert.True(t, gap >= delay-5*time.Millisecond, "gap %d was %v, want at least %v", i, gap, delay)
	}
}

func TestCheckPricesConcurrencyKeepsSequentialRate(t *testing.T) {
	f := newFakeSteam(t)
	var reqs requestLog
	latency, delay := 60*time.Millisecond, 40*time.Millisecond
	f.handle(appDetailsPath, slowPriceHandler(latency, &reqs))

	start := time.Now()
	got, _ := NewPricer(f.client()).CheckPrices(context.Background(), entries("1", "2", "3", "4"),
		CheckOptions{Delay: delay, Concurrency: 4})

	assert.Len(t, got, 4)
	// after the first response, starts are spaced by latency plus delay
	assert.True(t, time.Since(start) >= 2*(latency+delay), "four requests took only %v", time.Since(start))
}

func TestCheckPricesStopsWhenCancelled(t *testing.T) {
	f := newFakeSteam(t)
	f.handle(appDetailsPath, priceRoutes(t, map[string]string{
		"1": priceBody("1", 1000, 500, 50),
		"2": priceBody("2", 1000, 500, 50),
		"3": priceBody("3", 1000, 500, 50),
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	got, checked := NewPricer(f.client()).CheckPrices(ctx, entries("1", "2", "3"), CheckOptions{Delay: time.Second})

	// the first request is not delayed; the next would wait past the deadline
	require.Len(t, got, 1)
	assert.Equal(t, 1, checked)
	assert.Equal(t, "1", got[0].Entry.ItemID)
	assert.Equal(t, 1, f.hitCount(appDetailsPath))
}

func TestDefaultCheckOptions(t *testing.T) {
	opts := DefaultCheckOptions()
	assert.Equal(t, 150*time.Millisecond, opts.Delay)
	assert.Equal(t, 100, opts.MaxItems)
	assert.Equal(t, 1, opts.Concurrency)
	assert.Equal(t, 25, opts.ProgressEvery)
}
