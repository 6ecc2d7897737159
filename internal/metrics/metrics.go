package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg                *prometheus.Registry
	FacetToggles       *prometheus.CounterVec
	CheckoutTransition *prometheus.CounterVec
	SearchLatencySec   *prometheus.HistogramVec
	SearchCacheHits    prometheus.Counter
	HTTPRequests       *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	toggles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_facet_toggles_total",
		Help: "Facet checkbox changes by direction.",
	}, []string{"action"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkout_transitions_total",
		Help: "Checkout stage transitions by target stage.",
	}, []string{"stage"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_search_latency_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{Name: "storefront_search_cache_hits_total"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_http_requests_total",
	}, []string{"method", "code"})

	r.MustRegister(toggles, transitions, latency, cacheHits, requests)
	return &Registry{
		reg:                r,
		FacetToggles:       toggles,
		CheckoutTransition: transitions,
		SearchLatencySec:   latency,
		SearchCacheHits:    cacheHits,
		HTTPRequests:       requests,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
