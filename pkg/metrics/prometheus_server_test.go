package metrics_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"sjsage522/steamdealworker/pkg/metrics"
)

func TestPrometheusServer(t *testing.T) {
	testCases := []struct {
		name          string
		listenAddress string
		endpoint      string
		statusCode    int
	}{
		{
			name:          "Metrics handler",
			listenAddress: "127.0.0.1:10110",
			endpoint:      "http://127.0.0.1:10110/metrics",
			statusCode:    http.StatusOK,
		},
		{
			name:          "Invalid endpoint",
			listenAddress: "127.0.0.1:10120",
			endpoint:      "http://127.0.0.1:10120/invalid",
			statusCode:    http.StatusNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rq := require.New(t)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			metrics.RateLimitHits.Inc()
			prometheusServer := metrics.NewPrometheusServer(tc.listenAddress)

			g, ctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				return prometheusServer.Run(ctx)
			})

			// Wait for server to start.
			time.Sleep(500 * time.Millisecond)

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, tc.endpoint, http.NoBody)
			rq.NoError(err)

			resp, err := http.DefaultClient.Do(req)
			rq.NoError(err)

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			rq.NoError(err)

			rq.Equal(tc.statusCode, resp.StatusCode)
			if tc.statusCode == http.StatusOK {
				rq.Contains(string(body), "steamdeal_rate_limit_hits_total")
			}

			cancel()

			rq.NoError(g.Wait())
		})
	}
}
