package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"broadcast-player/internal/analytics"
	"broadcast-player/internal/platform/metrics"
	"broadcast-player/internal/player"
)

var (
	// ErrInvalidRequest is returned when an open request names no broadcast.
	ErrInvalidRequest = errors.New("broadcast or broadcast_id is required")

	// ErrNoAnalyticsSession is returned by Report before a session is attached
	// or when analytics is disabled.
	ErrNoAnalyticsSession = errors.New("no analytics session for the bound broadcast")
)

// BroadcastSource looks up broadcast metadata by id.
type BroadcastSource interface {
	FetchBroadcast(ctx context.Context, broadcastID string) (player.Broadcast, error)
}

// eventReporter is implemented by analytics sessions that accept player events.
type eventReporter interface {
	Report(ctx context.Context, ev analytics.Event) error
}

// Settings are the player options shared by every session.
type Settings struct {
	Profile       player.Profile
	AttachPolicy  player.AttachFailurePolicy
	AttachTimeout time.Duration
	ResizeMode    string
}

// Service owns the viewer sessions and builds one state machine per session.
type Service struct {
	repo       Repository
	views      player.ViewFetcher
	broadcasts BroadcastSource
	binder     player.Binder
	settings   Settings
	log        *slog.Logger
	metrics    *metrics.Metrics
}

// NewService wires a Service. binder may be nil to run without analytics and
// m may be nil to disable metric recording.
func NewService(repo Repository, views player.ViewFetcher, broadcasts BroadcastSource, binder player.Binder, settings Settings, log *slog.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:       repo,
		views:      views,
		broadcasts: broadcasts,
		binder:     binder,
		settings:   settings,
		log:        log,
		metrics:    m,
	}
}

// Open creates a session and mounts its broadcast.
func (s *Service) Open(ctx context.Context, req OpenRequest) (*ViewerSession, error) {
	b, err := s.resolveBroadcast(ctx, req.Broadcast, req.BroadcastID)
	if err != nil {
		return nil, err
	}

	vs := &ViewerSession{ID: SessionID(uuid.NewString()), OpenedAt: time.Now().UTC()}
	resize := req.ResizeMode
	if resize == "" {
		resize = s.settings.ResizeMode
	}
	sessionLog := s.log.With(slog.String("session_id", string(vs.ID)))
	vs.Machine = player.New(s.views, s.binder, player.Options{
		Profile:       s.settings.Profile,
		AttachPolicy:  s.settings.AttachPolicy,
		AttachTimeout: s.settings.AttachTimeout,
		Debug:         req.Debug,
		ResizeMode:    resize,
		OnRender:      func(player.Display) { vs.renders.Add(1) },
		OnDismiss: func() {
			sessionLog.Info("session dismissed")
		},
	}, sessionLog, s.metrics)

	if err := s.repo.Add(vs); err != nil {
		return nil, err
	}
	if err := vs.Machine.Bind(b); err != nil {
		_, _ = s.repo.Remove(vs.ID)
		return nil, err
	}
	sessionLog.Info("session opened", slog.String("broadcast_id", b.ID))
	return vs, nil
}

// Rebind points an open session at another broadcast. The same broadcast id
// only updates metadata.
func (s *Service) Rebind(ctx context.Context, id SessionID, b *player.Broadcast, broadcastID string) (*ViewerSession, error) {
	vs, err := s.repo.Get(id)
	if err != nil {
		return nil, err
	}
	resolved, err := s.resolveBroadcast(ctx, b, broadcastID)
	if err != nil {
		return nil, err
	}
	if err := vs.Machine.Bind(resolved); err != nil {
		return nil, err
	}
	return vs, nil
}

// Refresh refetches the view of the session's broadcast.
func (s *Service) Refresh(id SessionID) error {
	vs, err := s.repo.Get(id)
	if err != nil {
		return err
	}
	vs.Machine.Refresh()
	return nil
}

// Display returns the current rendered state of a session.
func (s *Service) Display(id SessionID) (DisplayResponse, error) {
	vs, err := s.repo.Get(id)
	if err != nil {
		return DisplayResponse{}, err
	}
	return displayOf(vs), nil
}

// Report forwards a player event to the session's analytics session.
func (s *Service) Report(ctx context.Context, id SessionID, ev analytics.Event) error {
	vs, err := s.repo.Get(id)
	if err != nil {
		return err
	}
	rep, ok := vs.Machine.Session().(eventReporter)
	if !ok {
		return ErrNoAnalyticsSession
	}
	if err := rep.Report(ctx, ev); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncPlayerEvents(ev.Action)
	}
	return nil
}

// Close dismisses and removes a session.
func (s *Service) Close(id SessionID) error {
	vs, err := s.repo.Remove(id)
	if err != nil {
		return err
	}
	vs.Machine.Dismiss()
	return nil
}

// ActiveSessionCount returns the number of open sessions.
func (s *Service) ActiveSessionCount() int {
	return s.repo.ActiveSessionCount()
}

// Shutdown unmounts every session and waits for in-flight work until ctx ends.
func (s *Service) Shutdown(ctx context.Context) error {
	sessions := s.repo.All()
	for _, vs := range sessions {
		vs.Machine.Unmount()
	}
	done := make(chan struct{})
	go func() {
		for _, vs := range sessions {
			vs.Machine.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %d sessions: %w", len(sessions), ctx.Err())
	}
}

func (s *Service) resolveBroadcast(ctx context.Context, b *player.Broadcast, broadcastID string) (player.Broadcast, error) {
	if b != nil && b.ID != "" {
		return *b, nil
	}
	if broadcastID == "" {
		return player.Broadcast{}, ErrInvalidRequest
	}
	if s.broadcasts == nil {
		return player.Broadcast{}, ErrInvalidRequest
	}
	found, err := s.broadcasts.FetchBroadcast(ctx, broadcastID)
	if err != nil {
		return player.Broadcast{}, fmt.Errorf("lookup broadcast %s: %w", broadcastID, err)
	}
	return found, nil
}

func displayOf(vs *ViewerSession) DisplayResponse {
	return DisplayResponse{
		SessionID:   vs.ID,
		RenderCount: vs.RenderCount(),
		State:       vs.Machine.State(),
		Display:     vs.Machine.CurrentDisplayState(),
	}
}
