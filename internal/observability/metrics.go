package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer exposes the Prometheus scrape endpoint on its own listener,
// separate from the public decision port.
type MetricsServer struct {
	server *http.Server
	path   string
}

// NewMetricsServer builds the scrape server. With a nil provider, or one
// without a Prometheus exporter, the endpoint is absent and scrapes get 404.
func NewMetricsServer(port int, path string, provider *Provider) *MetricsServer {
	mux := http.NewServeMux()
	if provider != nil && provider.PrometheusExporter() != nil {
		mux.Handle(path, promhttp.Handler())
	}

	return &MetricsServer{
		path: path,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves scrapes until Shutdown. It returns http.ErrServerClosed after
// a graceful stop.
func (s *MetricsServer) Start() error {
	slog.Info("Starting metrics server", "addr", s.server.Addr, "path", s.path)
	return s.server.ListenAndServe()
}

// Shutdown stops the scrape server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
