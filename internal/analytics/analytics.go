// Package analytics attaches player telemetry sessions to a bound broadcast
// and forwards player events to the metrics collector.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"broadcast-player/internal/player"
)

const maxResponseBodyBytes = 1024

// ErrUnknownEvent is returned by Report for event names the collector does not accept.
var ErrUnknownEvent = errors.New("unknown player event")

// Config replaces the process-wide configure call: every Binder carries its own.
type Config struct {
	Endpoint       string
	BrowserName    string
	BrowserVersion string
	PlayerVersion  string
	Mode           string
}

// DefaultConfig mirrors the values the mobile player reported.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:       endpoint,
		BrowserName:    "Go",
		BrowserVersion: "1.0",
		PlayerVersion:  "broadcast-player v1.0",
		Mode:           "native-video",
	}
}

// Event is a player interaction reported against a session.
type Event struct {
	Action   string  `json:"action"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration,omitempty"`
	Error    string  `json:"error,omitempty"`
}

var validActions = map[string]bool{
	"setup": true, "play": true, "pause": true, "buffer": true,
	"seek": true, "quality": true, "complete": true, "error": true,
}

// ViewerStore keeps the stable viewer id across sessions.
type ViewerStore interface {
	ViewerID(ctx context.Context) (string, error)
}

// MemoryViewerStore generates a viewer id once and then returns it forever.
type MemoryViewerStore struct {
	once sync.Once
	id   string
}

// ViewerID implements ViewerStore.
func (s *MemoryViewerStore) ViewerID(context.Context) (string, error) {
	s.once.Do(func() { s.id = uuid.NewString() })
	return s.id, nil
}

// Binder creates sessions and implements player.Binder.
type Binder struct {
	cfg     Config
	http    *http.Client
	viewers ViewerStore
	log     *slog.Logger
}

// NewBinder returns a Binder posting to cfg.Endpoint. viewers may be nil.
func NewBinder(cfg Config, viewers ViewerStore, log *slog.Logger) *Binder {
	if viewers == nil {
		viewers = &MemoryViewerStore{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Binder{
		cfg:     cfg,
		http:    &http.Client{Timeout: 10 * time.Second},
		viewers: viewers,
		log:     log,
	}
}

// Attach creates a session for scope and reports its setup event.
func (b *Binder) Attach(ctx context.Context, scope player.Scope) (player.Session, error) {
	viewerID, err := b.viewers.ViewerID(ctx)
	if err != nil {
		return nil, fmt.Errorf("load viewer id: %w", err)
	}
	s := &Session{
		binder:      b,
		viewID:      uuid.NewString(),
		viewerID:    viewerID,
		broadcastID: scope.Broadcast.ID,
		channelID:   scope.ChannelID,
		timeframe:   scope.Broadcast.Timeframe,
		debug:       scope.Debug,
	}
	if err := s.Report(ctx, Event{Action: "setup"}); err != nil {
		return nil, fmt.Errorf("attach %s: %w", scope.Broadcast.ID, err)
	}
	return s, nil
}

// Session is one telemetry session; it never outlives its binding.
type Session struct {
	binder      *Binder
	viewID      string
	viewerID    string
	broadcastID string
	channelID   string
	timeframe   string
	debug       bool
}

// ViewID identifies this session at the collector.
func (s *Session) ViewID() string { return s.viewID }

// VideoEventProperties implements player.Session.
func (s *Session) VideoEventProperties() map[string]any {
	cfg := s.binder.cfg
	return map[string]any{
		"view_id":         s.viewID,
		"viewer_id":       s.viewerID,
		"broadcast_id":    s.broadcastID,
		"channel_id":      s.channelID,
		"timeframe":       s.timeframe,
		"browser_name":    cfg.BrowserName,
		"browser_version": cfg.BrowserVersion,
		"player_version":  cfg.PlayerVersion,
		"mode":            cfg.Mode,
	}
}

// Report posts ev tagged with the session properties.
func (s *Session) Report(ctx context.Context, ev Event) error {
	if !validActions[ev.Action] {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Action)
	}
	payload := s.VideoEventProperties()
	payload["action"] = ev.Action
	payload["position"] = ev.Position
	payload["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	if ev.Duration > 0 {
		payload["duration"] = ev.Duration
	}
	if ev.Error != "" {
		payload["error"] = ev.Error
	}

	if s.debug {
		s.binder.log.Debug("analytics event",
			slog.String("broadcast_id", s.broadcastID),
			slog.String("view_id", s.viewID),
			slog.String("action", ev.Action))
	}
	if s.binder.cfg.Endpoint == "" {
		return nil
	}
	return s.binder.post(ctx, payload)
}

func (b *Binder) post(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal analytics payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build analytics request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("post analytics event: %w", err)
	}
	defer res.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(res.Body, maxResponseBodyBytes))
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("analytics collector returned status %d: %s", res.StatusCode, bytes.TrimSpace(respBody))
	}
	return nil
}
