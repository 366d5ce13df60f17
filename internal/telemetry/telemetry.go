// Package telemetry holds the Prometheus collectors for the HTTP API, the
// collection pipeline and the ranking cache.
package telemetry

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const namespace = "ytrank"

// Collection outcomes
const (
	OutcomeCompleted = "completed"
	OutcomePartial   = "partial"  // credentials ran out before every batch was sent
	OutcomeNoop      = "noop"     // nothing to collect
)

// Telemetry owns a private registry so several instances can coexist in tests.
// A nil *Telemetry is valid and records nothing.
type Telemetry struct {
	registry *prometheus.Registry

	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	CollectionRuns       *prometheus.CounterVec
	CollectionChannels   *prometheus.CounterVec
	CollectionDuration   prometheus.Histogram
	CredentialsExhausted prometheus.Counter

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// New registers every collector. pool may be nil (CLI runs without a server).
func New(pool *pgxpool.Pool) *Telemetry {
	t := &Telemetry{registry: prometheus.NewRegistry()}

	t.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "HTTP request duration in seconds, by endpoint, method and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	t.RequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being served.",
	})

	t.CollectionRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collection_runs_total",
			Help:      "Collection runs, by outcome.",
		},
		[]string{"outcome"},
	)

	t.CollectionChannels = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collection_channels_total",
			Help:      "Channels processed by the collector, by result.",
		},
		[]string{"result"},
	)

	t.CollectionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "collection_duration_seconds",
		Help:      "Wall time of collection runs.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	t.CredentialsExhausted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credentials_exhausted_total",
		Help:      "API credentials marked exhausted during collection runs.",
	})

	t.CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Ranking cache hits.",
	})

	t.CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Ranking cache misses.",
	})

	t.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		t.RequestDuration,
		t.RequestsInFlight,
		t.CollectionRuns,
		t.CollectionChannels,
		t.CollectionDuration,
		t.CredentialsExhausted,
		t.CacheHits,
		t.CacheMisses,
	)

	// DB pool gauges read live stats from pgxpool
	if pool != nil {
		t.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connection_pool_active",
				Help:      "Number of acquired database connections.",
			}, func() float64 { return float64(pool.Stat().AcquiredConns()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connection_pool_idle",
				Help:      "Number of idle database connections.",
			}, func() float64 { return float64(pool.Stat().IdleConns()) }),
		)
	}

	return t
}

// Registry exposes the underlying registry (tests, custom exporters)
func (t *Telemetry) Registry() *prometheus.Registry {
	if t == nil {
		return nil
	}
	return t.registry
}

// CollectionSummary is the per-run tally the collector reports
type CollectionSummary struct {
	Outcome              string
	Updated              int
	Created              int
	Missing              int
	SkippedDueToError    int
	SkippedDueToQuota    int
	ExhaustedCredentials int
	Duration             time.Duration
}

// ObserveCollection records one finished collection run
func (t *Telemetry) ObserveCollection(s CollectionSummary) {
	if t == nil {
		return
	}
	t.CollectionRuns.WithLabelValues(s.Outcome).Inc()
	t.CollectionChannels.WithLabelValues("updated").Add(float64(s.Updated - s.Created))
	t.CollectionChannels.WithLabelValues("created").Add(float64(s.Created))
	t.CollectionChannels.WithLabelValues("missing").Add(float64(s.Missing))
	t.CollectionChannels.WithLabelValues("skipped_error").Add(float64(s.SkippedDueToError))
	t.CollectionChannels.WithLabelValues("skipped_quota").Add(float64(s.SkippedDueToQuota))
	t.CredentialsExhausted.Add(float64(s.ExhaustedCredentials))
	t.CollectionDuration.Observe(s.Duration.Seconds())
}

// CacheHit counts a ranking cache hit
func (t *Telemetry) CacheHit() {
	if t == nil {
		return
	}
	t.CacheHits.Inc()
}

// CacheMiss counts a ranking cache miss
func (t *Telemetry) CacheMiss() {
	if t == nil {
		return
	}
	t.CacheMisses.Inc()
}

// Middleware records request duration and in-flight count.
func (t *Telemetry) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		if t == nil || c.Path() == "/metrics" {
			return c.Next()
		}

		// Fiber returns slices backed by the fasthttp buffer; copy before c.Next()
		endpoint := SanitizeEndpoint(string([]byte(c.Path())))
		method := string([]byte(c.Method()))

		t.RequestsInFlight.Inc()
		start := time.Now()

		err := c.Next()

		status := strconv.Itoa(c.Response().StatusCode())
		t.RequestDuration.WithLabelValues(endpoint, method, status).Observe(time.Since(start).Seconds())
		t.RequestsInFlight.Dec()

		return err
	}
}

// Handler serves the Prometheus exposition format via Fiber.
func (t *Telemetry) Handler() fiber.Handler {
	var registry *prometheus.Registry
	if t != nil {
		registry = t.registry
	} else {
		registry = prometheus.NewRegistry()
	}
	httpHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return func(c fiber.Ctx) error {
		httpHandler(c.RequestCtx())
		return nil
	}
}

// SanitizeEndpoint replaces the dynamic segment of channel routes to bound label cardinality.
func SanitizeEndpoint(path string) string {
	const prefix = "/api/channels/"
	if !strings.HasPrefix(path, prefix) || len(path) == len(prefix) {
		return path
	}
	if strings.HasSuffix(path, "/videos") {
		return prefix + ":id/videos"
	}
	return prefix + ":id"
}
