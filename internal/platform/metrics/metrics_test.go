package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T, m *Metrics, update func()) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler(update).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMetrics_counters_exposed(t *testing.T) {
	m := New()
	m.IncViewFetches("ok")
	m.IncViewFetches("error")
	m.IncStaleCompletions("fetch")
	m.IncRendersNotified()
	m.IncRendersSkipped()
	m.IncAttachFailures()
	m.IncPlayerEvents("play")

	out := scrape(t, m, func() { m.SetActiveSessions(3) })
	for _, want := range []string{
		`player_view_fetches_total{result="ok"} 1`,
		`player_view_fetches_total{result="error"} 1`,
		`player_stale_completions_total{kind="fetch"} 1`,
		`player_renders_notified_total 1`,
		`player_renders_skipped_total 1`,
		`player_analytics_attach_failures_total 1`,
		`player_events_total{event="play"} 1`,
		`player_active_sessions 3`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	h := RequestMiddleware(m, "/metrics")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	for _, p := range []string{"/ok", "/missing", "/metrics"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	out := scrape(t, m, nil)
	assert.Contains(t, out, "player_requests_total 2", "the metrics path is not counted")
	assert.Contains(t, out, "player_errors_total 1")
}
