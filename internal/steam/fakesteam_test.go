package steam

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"sjsage522/steamdealworker/internal/model"
	"sjsage522/steamdealworker/services/cache"
)

const testAccount = model.AccountID("76561197960287930")

// fakeSteam serves the community, store and API hosts from one test server,
// under the /community, /store and /api prefixes
type fakeSteam struct {
	server *httptest.Server

	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	hits   map[string]int
	total  int
}

func newFakeSteam(t *testing.T) *fakeSteam {
	t.Helper()
	f := &fakeSteam{
		routes: make(map[string]http.HandlerFunc),
		hits:   make(map[string]int),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeSteam) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	h, ok := f.routes[r.URL.Path]
	f.hits[r.URL.Path]++
	f.total++
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func (f *fakeSteam) handle(path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = h
}

func (f *fakeSteam) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fakeSteam) totalHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

func (f *fakeSteam) endpoints() Endpoints {
	return Endpoints{
		Community: f.server.URL + "/community",
		Store:     f.server.URL + "/store",
		API:       f.server.URL + "/api",
	}
}

// client returns a client whose rate-limit waits return immediately
func (f *fakeSteam) client() *Client {
	c := NewClient(ClientOptions{
		Endpoints: f.endpoints(),
		Timeout:   2 * time.Second,
		Cache:     cache.NewMemoryService(time.Minute),
	})
	c.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return c
}

func respond(contentType string, status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func jsonBody(body string) http.HandlerFunc {
	return respond("application/json; charset=utf-8", http.StatusOK, body)
}

func htmlBody(body string) http.HandlerFunc {
	return respond("text/html; charset=utf-8", http.StatusOK, body)
}

func xmlBody(body string) http.HandlerFunc {
	return respond("text/xml; charset=utf-8", http.StatusOK, body)
}

func statusOnly(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}
}

func redirectTo(location string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", location)
		w.WriteHeader(http.StatusFound)
	}
}

// fakeClock is a manual clock whose Sleep advances time instead of blocking
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}
