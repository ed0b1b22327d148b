package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sjsage522/steamdealworker/logger"
)

const httpServerReadHeaderTimeout = 5 * time.Second

// PrometheusServer serves /metrics until its context is cancelled
type PrometheusServer struct {
	listenAddress string
}

func NewPrometheusServer(listenAddress string) PrometheusServer {
	return PrometheusServer{listenAddress: listenAddress}
}

func (p PrometheusServer) Run(ctx context.Context) error {
	log := logger.ForComponent("metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:              p.listenAddress,
		Handler:           mux,
		ReadHeaderTimeout: httpServerReadHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()

		if err := httpServer.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Error().Err(err).Msg("httpServer.Shutdown")
		}
	}()

	log.Info().Str("address", p.listenAddress).Msg("prometheus server started")

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("httpServer.ListenAndServe: %w", err)
	}

	log.Info().Msg("prometheus server stopped")

	return nil
}
