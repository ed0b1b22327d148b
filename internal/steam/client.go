package steam

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"sjsage522/steamdealworker/helpers"
	"sjsage522/steamdealworker/logger"
	pkgerrors "sjsage522/steamdealworker/pkg/errors"
	"sjsage522/steamdealworker/pkg/metrics"
	"sjsage522/steamdealworker/services/cache"
)

const blockKey = "steamdeal:ratelimit:block_until"

// Endpoints holds the base URLs of the three Steam hosts
type Endpoints struct {
	Community string
	Store     string
	API       string
}

// DefaultEndpoints points at the public Steam hosts
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Community: "https://steamcommunity.com",
		Store:     "https://store.steampowered.com",
		API:       "https://api.steampowered.com",
	}
}

// ClientOptions configures a Client
type ClientOptions struct {
	Endpoints  Endpoints
	Timeout    time.Duration
	Language   string
	Country    string
	Cache      cache.CacheService
	Backoff    time.Duration
	BackoffMax time.Duration
}

// Response is the part of an HTTP response the Steam components look at
type Response struct {
	Status   int
	Body     []byte
	Location string
	Header   http.Header
}

// IsRedirect reports a 3xx status
func (r *Response) IsRedirect() bool {
	return r.Status >= 300 && r.Status < 400
}

// Client performs GETs against Steam without following redirects.
// A 429 from any endpoint blocks every request made through the same cache
// until the back-off window has passed.
type Client struct {
	http       *resty.Client
	endpoints  Endpoints
	timeout    time.Duration
	language   string
	country    string
	cache      cache.CacheService
	backoff    time.Duration
	backoffMax time.Duration

	mu      sync.Mutex
	strikes int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Steam client
func NewClient(opts ClientOptions) *Client {
	if opts.Endpoints == (Endpoints{}) {
		opts.Endpoints = DefaultEndpoints()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Language == "" {
		opts.Language = "english"
	}
	if opts.Country == "" {
		opts.Country = "ru"
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemoryService(10 * time.Minute)
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 30 * time.Second
	}
	if opts.BackoffMax < opts.Backoff {
		opts.BackoffMax = opts.Backoff
	}

	httpClient := resty.New().
		SetLogger(logger.ForSteam("resty")).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))

	return &Client{
		http:       httpClient,
		endpoints:  trimEndpoints(opts.Endpoints),
		timeout:    opts.Timeout,
		language:   opts.Language,
		country:    opts.Country,
		cache:      opts.Cache,
		backoff:    opts.Backoff,
		backoffMax: opts.BackoffMax,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

func trimEndpoints(e Endpoints) Endpoints {
	return Endpoints{
		Community: strings.TrimRight(e.Community, "/"),
		Store:     strings.TrimRight(e.Store, "/"),
		API:       strings.TrimRight(e.API, "/"),
	}
}

// Endpoints returns the configured hosts
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// Language returns the store language sent with page requests
func (c *Client) Language() string {
	return c.language
}

// Country returns the store country used for prices
func (c *Client) Country() string {
	return c.country
}

// Get fetches rawURL. Any HTTP status is returned as a Response; only transport
// failures, timeouts and cancellation produce an error. name labels the
// request in logs and metrics.
func (c *Client) Get(ctx context.Context, name, rawURL string, query url.Values, headers map[string]string) (*Response, error) {
	if err := c.waitForBlock(ctx); err != nil {
		return nil, pkgerrors.NewNetwork(name, "waiting out rate limit", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := c.http.R().SetContext(reqCtx).SetHeaders(headers)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}

	resp, err := req.Get(rawURL)
	if err != nil {
		metrics.SteamRequests.WithLabelValues(name, "error").Inc()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, pkgerrors.NewNetwork(name, fmt.Sprintf("timed out after %v", c.timeout), err)
		}
		return nil, pkgerrors.NewNetwork(name, "request failed", err)
	}

	out := &Response{
		Status:   resp.StatusCode(),
		Location: resp.Header().Get("Location"),
		Header:   resp.Header(),
	}

	// XML documents declare their own encoding and are decoded by decodeXML
	out.Body = resp.Body()
	if !looksLikeXML(out.Body) {
		if body, err := helpers.DecodeUTF8(out.Body, resp.Header().Get("Content-Type")); err == nil {
			out.Body = body
		}
	}

	metrics.SteamRequests.WithLabelValues(name, statusClass(out.Status)).Inc()

	switch {
	case out.Status == http.StatusTooManyRequests:
		c.recordStrike(name, retryAfter(out.Header))
	case out.Status >= 200 && out.Status < 300:
		c.resetStrikes()
	}

	return out, nil
}

// Expect200 turns a non-200 response into a typed error
func Expect200(name string, resp *Response) error {
	switch {
	case resp.Status == http.StatusOK:
		return nil
	case resp.Status == http.StatusTooManyRequests:
		return pkgerrors.NewRateLimit(name, retryAfter(resp.Header))
	case resp.IsRedirect():
		return pkgerrors.NewNetwork(name, fmt.Sprintf("redirected (%d) to %q", resp.Status, resp.Location), nil)
	default:
		return pkgerrors.NewNetwork(name, fmt.Sprintf("unexpected status code: %d", resp.Status), nil)
	}
}

// BlockedUntil returns the end of the active rate-limit block, if any
func (c *Client) BlockedUntil() (time.Time, bool) {
	raw, err := c.cache.Get(blockKey)
	if err != nil {
		return time.Time{}, false
	}
	nanos, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	until := time.Unix(0, nanos)
	if !until.After(c.now()) {
		return time.Time{}, false
	}
	return until, true
}

func (c *Client) waitForBlock(ctx context.Context) error {
	until, blocked := c.BlockedUntil()
	if !blocked {
		return ctx.Err()
	}
	wait := until.Sub(c.now())
	logger.ForSteam("client").Debug().Dur("wait", wait).Msg("rate limit block active, waiting")
	return c.sleep(ctx, wait)
}

func (c *Client) recordStrike(name string, requested time.Duration) {
	c.mu.Lock()
	c.strikes++
	strikes := c.strikes
	c.mu.Unlock()

	wait := backoffFor(c.backoff, c.backoffMax, strikes)
	if requested > wait {
		wait = min(requested, c.backoffMax)
	}

	until := c.now().Add(wait)
	if err := c.cache.Set(blockKey, []byte(strconv.FormatInt(until.UnixNano(), 10)), wait); err != nil {
		logger.ForSteam(name).Warn().Err(err).Msg("failed to store rate limit block")
	}

	metrics.RateLimitHits.Inc()
	logger.ForSteam(name).Warn().
		Int("strikes", strikes).
		Dur("backoff", wait).
		Msg("rate limited by Steam")
}

func (c *Client) resetStrikes() {
	c.mu.Lock()
	c.strikes = 0
	c.mu.Unlock()
}

// retryAfter reads a Retry-After header given in seconds
func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(h.Get("Retry-After")))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// backoffFor returns base·2^(strikes-1), capped at max
func backoffFor(base, max time.Duration, strikes int) time.Duration {
	if strikes < 1 {
		return 0
	}
	wait := base
	for i := 1; i < strikes; i++ {
		wait *= 2
		if wait >= max {
			return max
		}
	}
	if wait > max {
		return max
	}
	return wait
}

func statusClass(status int) string {
	if status == http.StatusTooManyRequests {
		return "429"
	}
	return fmt.Sprintf("%dxx", status/100)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
