package viewer

import (
	"sync/atomic"
	"time"

	"broadcast-player/internal/player"
)

// SessionID uniquely identifies a viewer session.
type SessionID string

// ViewerSession is one viewer watching one broadcast at a time.
type ViewerSession struct {
	ID       SessionID
	Machine  *player.Machine
	OpenedAt time.Time

	renders atomic.Int64 // redraw notifications delivered by the machine
}

// RenderCount returns how many redraws the machine has required so far.
func (s *ViewerSession) RenderCount() int64 {
	return s.renders.Load()
}

// OpenRequest is the body of POST /sessions. Either Broadcast or BroadcastID
// must be set; with only an id the broadcast is looked up first.
type OpenRequest struct {
	Broadcast   *player.Broadcast `json:"broadcast,omitempty"`
	BroadcastID string            `json:"broadcast_id,omitempty"`
	Debug       bool              `json:"debug"`
	ResizeMode  string            `json:"resize_mode,omitempty"`
}

// DisplayResponse is the rendered state of a session.
type DisplayResponse struct {
	SessionID   SessionID      `json:"session_id"`
	RenderCount int64          `json:"render_count"`
	State       player.State   `json:"state"`
	Display     player.Display `json:"display"`
}
