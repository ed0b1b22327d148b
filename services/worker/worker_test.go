package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/steamdealworker/internal/model"
	"sjsage522/steamdealworker/internal/scoring"
	"sjsage522/steamdealworker/services/publisher"
	"sjsage522/steamdealworker/storage"
)

// MockSpecials implements SpecialsSource for testing
type MockSpecials struct {
	items []model.DiscountedItem
	err   error
	calls int
}

func (m *MockSpecials) Fetch(ctx context.Context, minDiscount, maxResults int) ([]model.DiscountedItem, error) {
	m.calls++
	return m.items, m.err
}

// MockPublisher implements the publisher.Publisher interface for testing
type MockPublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
	trims    int
	err      error
}

// Ensure MockPublisher implements publisher.Publisher
var _ publisher.Publisher = (*MockPublisher)(nil)

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{messages: make(map[string][][]byte)}
}

func (m *MockPublisher) Publish(ctx context.Context, key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	messageCopy := make([]byte, len(message))
	copy(messageCopy, message)
	m.messages[key] = append(m.messages[key], messageCopy)
	return nil
}

func (m *MockPublisher) TrimStreams(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trims++
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// MockStore implements storage.WeeklyTopStore for testing
type MockStore struct {
	saved []model.ScoredDeal
	err   error
}

var _ storage.WeeklyTopStore = (*MockStore)(nil)

func (m *MockStore) Save(ctx context.Context, deals []model.ScoredDeal, at time.Time) error {
	m.saved = append(m.saved, deals...)
	return m.err
}

func (m *MockStore) Top(ctx context.Context, at time.Time, limit int) ([]storage.WeeklyTopRow, error) {
	return nil, nil
}

func (m *MockStore) Clear(ctx context.Context) error { return nil }

func (m *MockStore) Close() error { return nil }

func item(id, title string, discount int, final int64) model.DiscountedItem {
	return model.DiscountedItem{
		Entry: model.ListEntry{ItemID: id, DisplayName: title},
		Quote: model.PriceQuote{DiscountPercent: discount, FinalAmount: final},
		URL:   model.AppURL(id),
	}
}

func newTestWorker(src SpecialsSource, store storage.WeeklyTopStore, pub publisher.Publisher, limit int) *Worker {
	w := NewWorker(src, scoring.NewScorer(scoring.DefaultRules()), store, pub, Options{
		Interval: time.Hour, MinDiscount: 30, MaxResults: 50, TopLimit: limit,
	})
	w.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }
	return w
}

func TestWorkerRunOncePublishesRankedDigest(t *testing.T) {
	src := &MockSpecials{items: []model.DiscountedItem{
		item("1", "Quiet Puzzle", 50, 400),
		item("2", "Hades", 50, 400),
		item("3", "Another Puzzle", 70, 400),
	}}
	store := &MockStore{}
	pub := NewMockPublisher()

	digest, err := newTestWorker(src, store, pub, 2).RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, digest.Deals, 2)
	assert.Equal(t, "Hades", digest.Deals[0].Entry.DisplayName)
	assert.Equal(t, "Another Puzzle", digest.Deals[1].Entry.DisplayName)
	assert.Equal(t, "2026-W43", digest.Week)
	assert.NotEmpty(t, digest.RunID)

	assert.Len(t, store.saved, 2)
	require.Len(t, pub.messages[publisher.KeyWeeklyDigest], 1)
	assert.Equal(t, 1, pub.trims)

	var published Digest
	require.NoError(t, json.Unmarshal(pub.messages[publisher.KeyWeeklyDigest][0], &published))
	assert.Equal(t, digest.RunID, published.RunID)
	assert.Equal(t, 105, published.Deals[0].Score)
}

func TestWorkerRunOnceFetchError(t *testing.T) {
	src := &MockSpecials{err: errors.New("store unavailable")}
	pub := NewMockPublisher()

	_, err := newTestWorker(src, nil, pub, 15).RunOnce(context.Background())
	assert.Error(t, err)
	assert.Empty(t, pub.messages)
}

func TestWorkerRunOnceNothingToPublish(t *testing.T) {
	pub := NewMockPublisher()

	digest, err := newTestWorker(&MockSpecials{}, nil, pub, 15).RunOnce(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, digest.Deals)
	assert.Empty(t, pub.messages)
	assert.Equal(t, 0, pub.trims)
}

func TestWorkerStoreFailureDoesNotBlockPublishing(t *testing.T) {
	src := &MockSpecials{items: []model.DiscountedItem{item("1", "Hades", 50, 400)}}
	store := &MockStore{err: errors.New("db down")}
	pub := NewMockPublisher()

	_, err := newTestWorker(src, store, pub, 15).RunOnce(context.Background())
	assert.NoError(t, err)
	assert.Len(t, pub.messages[publisher.KeyWeeklyDigest], 1)
}

func TestWorkerPublishError(t *testing.T) {
	src := &MockSpecials{items: []model.DiscountedItem{item("1", "Hades", 50, 400)}}
	pub := NewMockPublisher()
	pub.err = errors.New("redis down")

	_, err := newTestWorker(src, nil, pub, 15).RunOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, pub.trims)
}

func TestWorkerStartStopsOnCancel(t *testing.T) {
	src := &MockSpecials{items: []model.DiscountedItem{item("1", "Hades", 50, 400)}}
	pub := NewMockPublisher()
	w := newTestWorker(src, nil, pub, 15)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	assert.Equal(t, 1, src.calls)
}
