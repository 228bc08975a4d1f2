package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"broadcast-player/internal/platform/logger"
	"broadcast-player/internal/player"
)

type collector struct {
	mu     sync.Mutex
	events []map[string]any
	status int
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var ev map[string]any
	_ = json.NewDecoder(r.Body).Decode(&ev)
	c.mu.Lock()
	c.events = append(c.events, ev)
	status := c.status
	c.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
	}
}

func (c *collector) actions() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev["action"])
	}
	return out
}

var scope = player.Scope{
	Broadcast: player.Broadcast{ID: "b1", ChannelID: "c1", Timeframe: "current"},
	ChannelID: "c1",
}

func TestAttach_reports_setup(t *testing.T) {
	col := &collector{}
	srv := httptest.NewServer(col)
	defer srv.Close()

	b := NewBinder(DefaultConfig(srv.URL), nil, logger.Discard())
	sess, err := b.Attach(context.Background(), scope)
	require.NoError(t, err)

	props := sess.VideoEventProperties()
	assert.Equal(t, "b1", props["broadcast_id"])
	assert.Equal(t, "c1", props["channel_id"])
	assert.NotEmpty(t, props["view_id"])
	assert.Equal(t, []any{"setup"}, col.actions())
}

func TestAttach_new_view_same_viewer(t *testing.T) {
	b := NewBinder(DefaultConfig(""), nil, logger.Discard())

	s1, err := b.Attach(context.Background(), scope)
	require.NoError(t, err)
	s2, err := b.Attach(context.Background(), scope)
	require.NoError(t, err)

	p1, p2 := s1.VideoEventProperties(), s2.VideoEventProperties()
	assert.NotEqual(t, p1["view_id"], p2["view_id"], "each attach is a new session")
	assert.Equal(t, p1["viewer_id"], p2["viewer_id"], "viewer id is stable")
}

func TestAttach_collector_failure(t *testing.T) {
	col := &collector{status: http.StatusServiceUnavailable}
	srv := httptest.NewServer(col)
	defer srv.Close()

	_, err := NewBinder(DefaultConfig(srv.URL), nil, logger.Discard()).Attach(context.Background(), scope)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

type failingViewers struct{}

func (failingViewers) ViewerID(context.Context) (string, error) {
	return "", errors.New("storage unavailable")
}

func TestAttach_viewer_store_failure(t *testing.T) {
	_, err := NewBinder(DefaultConfig(""), failingViewers{}, logger.Discard()).Attach(context.Background(), scope)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage unavailable")
}

func TestReport(t *testing.T) {
	col := &collector{}
	srv := httptest.NewServer(col)
	defer srv.Close()

	sess, err := NewBinder(DefaultConfig(srv.URL), nil, logger.Discard()).Attach(context.Background(), player.Scope{
		Broadcast: scope.Broadcast, ChannelID: "c1", Debug: true,
	})
	require.NoError(t, err)

	s := sess.(*Session)
	require.NoError(t, s.Report(context.Background(), Event{Action: "play", Position: 12.5}))
	assert.Equal(t, []any{"setup", "play"}, col.actions())

	err = s.Report(context.Background(), Event{Action: "rewind"})
	assert.True(t, errors.Is(err, ErrUnknownEvent))
	assert.Len(t, col.actions(), 2)
}
