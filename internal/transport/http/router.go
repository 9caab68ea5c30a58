package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"idsearch/internal/platform/middleware"
)

// Registrar is implemented by every feature handler mounted on the router.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires the common middleware stack, the feature handlers and the
// Prometheus scrape endpoint. gatherer may be nil to use the default registry.
func NewRouter(logger *slog.Logger, gatherer prometheus.Gatherer, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(logger))

	for _, h := range handlers {
		h.Register(r)
	}

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
