package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the HTTP routes. Request counts are registered in reg,
// which is also what /metrics exposes.
func NewRouter(h *Handler, reg *prometheus.Registry) http.Handler {
	requests := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: "yaha",
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by route and status code",
	}, []string{"route", "code"})

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(traceMiddleware)

	count := func(route string, fn http.HandlerFunc) http.Handler {
		return promhttp.InstrumentHandlerCounter(requests.MustCurryWith(prometheus.Labels{"route": route}), fn)
	}

	r.Method(http.MethodGet, "/healthz", count("/healthz", h.Health))
	r.Method(http.MethodGet, "/hosts", count("/hosts", h.Hosts))
	r.Method(http.MethodGet, "/hosts_restricted", count("/hosts_restricted", h.HostsRestricted))
	r.Method(http.MethodGet, "/stats", count("/stats", h.Stats))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return r
}
