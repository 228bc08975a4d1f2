package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the broadcast player.
type Metrics struct {
	registry              *prometheus.Registry
	requestsTotal         prometheus.Counter
	errorsTotal           prometheus.Counter
	viewFetchesTotal      *prometheus.CounterVec
	staleCompletionsTotal *prometheus.CounterVec
	rendersNotifiedTotal  prometheus.Counter
	rendersSkippedTotal   prometheus.Counter
	attachFailuresTotal   prometheus.Counter
	playerEventsTotal     *prometheus.CounterVec
	activeSessions        prometheus.Gauge
}

// New creates and registers Prometheus metrics for the player service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	viewFetchesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "player_view_fetches_total",
		Help: "View fetches applied to a binding, by result",
	}, []string{"result"})
	staleCompletionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "player_stale_completions_total",
		Help: "Fetch or attach completions discarded because their binding was superseded",
	}, []string{"kind"})
	rendersNotifiedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_renders_notified_total",
		Help: "State changes that required a redraw",
	})
	rendersSkippedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_renders_skipped_total",
		Help: "State changes whose redraw was suppressed",
	})
	attachFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_analytics_attach_failures_total",
		Help: "Analytics session attach failures",
	})
	playerEventsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "player_events_total",
		Help: "Player events forwarded to analytics, by event",
	}, []string{"event"})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "player_active_sessions",
		Help: "Number of open viewer sessions",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		viewFetchesTotal,
		staleCompletionsTotal,
		rendersNotifiedTotal,
		rendersSkippedTotal,
		attachFailuresTotal,
		playerEventsTotal,
		activeSessions,
	)

	return &Metrics{
		registry:              registry,
		requestsTotal:         requestsTotal,
		errorsTotal:           errorsTotal,
		viewFetchesTotal:      viewFetchesTotal,
		staleCompletionsTotal: staleCompletionsTotal,
		rendersNotifiedTotal:  rendersNotifiedTotal,
		rendersSkippedTotal:   rendersSkippedTotal,
		attachFailuresTotal:   attachFailuresTotal,
		playerEventsTotal:     playerEventsTotal,
		activeSessions:        activeSessions,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncViewFetches counts an applied fetch; result is "ok" or "error".
func (m *Metrics) IncViewFetches(result string) {
	m.viewFetchesTotal.WithLabelValues(result).Inc()
}

// IncStaleCompletions counts a discarded completion; kind is "fetch" or "attach".
func (m *Metrics) IncStaleCompletions(kind string) {
	m.staleCompletionsTotal.WithLabelValues(kind).Inc()
}

// IncRendersNotified increments the redraw counter.
func (m *Metrics) IncRendersNotified() {
	m.rendersNotifiedTotal.Inc()
}

// IncRendersSkipped increments the suppressed redraw counter.
func (m *Metrics) IncRendersSkipped() {
	m.rendersSkippedTotal.Inc()
}

// IncAttachFailures increments the analytics attach failure counter.
func (m *Metrics) IncAttachFailures() {
	m.attachFailuresTotal.Inc()
}

// IncPlayerEvents counts a forwarded player event.
func (m *Metrics) IncPlayerEvents(event string) {
	m.playerEventsTotal.WithLabelValues(event).Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
