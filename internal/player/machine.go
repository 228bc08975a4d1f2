package player

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"broadcast-player/internal/platform/metrics"
)

// DefaultAttachTimeout bounds an analytics attach when Options leave it unset.
const DefaultAttachTimeout = 5 * time.Second

const msgAnalyticsUnavailable = "Analytics could not be started for this broadcast."

// ErrClosed is returned by Bind after Unmount.
var ErrClosed = errors.New("player is unmounted")

// VideoSurface is everything the playback widget needs.
type VideoSurface struct {
	StreamURI       string         `json:"stream_uri"`
	PosterURI       string         `json:"poster_uri,omitempty"`
	ResizeMode      string         `json:"resize_mode"`
	Controls        bool           `json:"controls"`
	Fullscreen      bool           `json:"fullscreen"`
	EventProperties map[string]any `json:"event_properties,omitempty"`
}

// Display is what the host renders: a video surface or a placeholder, never both.
type Display struct {
	BroadcastID string        `json:"broadcast_id"`
	Video       *VideoSurface `json:"video,omitempty"`
	Placeholder *Placeholder  `json:"placeholder,omitempty"`
}

// RenderRequired reports whether moving from prev to next must redraw the
// video surface.
func RenderRequired(prev, next State) bool {
	if prev.BroadcastID != next.BroadcastID {
		return true
	}
	if prev.View.Playable() != next.View.Playable() {
		return true
	}
	return prev.View.Playable() && prev.View.Playlist != next.View.Playlist
}

// Machine is the playback state machine for one viewer. It binds exactly one
// broadcast at a time; completions from a superseded binding are dropped.
type Machine struct {
	resolver *Resolver
	binder   Binder
	opts     Options
	log      *slog.Logger
	metrics  *metrics.Metrics
	renderMu sync.Mutex
	wg       sync.WaitGroup

	mu        sync.Mutex
	ctx       context.Context
	cancelAll context.CancelFunc
	bindCtx   context.Context
	cancel    context.CancelFunc
	broadcast Broadcast
	bound     bool
	closed    bool
	state     State
	session   Session
	binding   uint64
	fetchSeq  uint64

	// cancelFetch aborts the outstanding fetch of the current binding.
	cancelFetch  context.CancelFunc
	attachFailed bool
}

// New returns an unbound Machine. binder may be nil when analytics is disabled;
// m may be nil to disable metric recording.
func New(fetcher ViewFetcher, binder Binder, opts Options, log *slog.Logger, m *metrics.Metrics) *Machine {
	if log == nil {
		log = slog.Default()
	}
	if opts.AttachTimeout <= 0 {
		opts.AttachTimeout = DefaultAttachTimeout
	}
	if opts.ResizeMode == "" {
		opts.ResizeMode = DefaultResizeMode
	}
	if opts.AttachPolicy == "" {
		opts.AttachPolicy = AttachContinue
	}
	if binder == nil {
		opts.Profile.AnalyticsEnabled = false
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Machine{
		resolver:  NewResolver(fetcher, log),
		binder:    binder,
		opts:      opts,
		log:       log,
		metrics:   m,
		ctx:       ctx,
		cancelAll: cancel,
		state:     State{Loading: true},
	}
}

// Bind mounts b, or rebinds when its identifier differs from the bound one.
// A same-identifier Bind only refreshes broadcast metadata.
func (m *Machine) Bind(b Broadcast) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	prev, prevDisplay := m.state, m.displayLocked()

	if m.bound && m.broadcast.ID == b.ID {
		m.broadcast = b
		m.commitLocked(prev, prevDisplay)
		return nil
	}

	if m.cancel != nil {
		m.cancel()
	}
	m.cancelFetch = nil
	ctx, cancel := context.WithCancel(m.ctx)
	m.bindCtx, m.cancel = ctx, cancel
	m.broadcast = b
	m.bound = true
	m.binding++
	m.session = nil
	m.attachFailed = false
	m.fetchSeq++
	m.state = State{BroadcastID: b.ID, Loading: true}
	binding, seq := m.binding, m.fetchSeq

	m.log.Debug("broadcast bound",
		slog.String("broadcast_id", b.ID),
		slog.Uint64("binding", binding))

	m.wg.Add(1)
	m.commitLocked(prev, prevDisplay)

	go func() {
		defer m.wg.Done()
		m.run(ctx, b, binding, seq)
	}()
	return nil
}

// Refresh refetches the view of the bound broadcast. An outstanding fetch is
// cancelled and its result ignored. Under AttachWarn a binding whose attach
// failed attaches again before fetching.
func (m *Machine) Refresh() {
	m.mu.Lock()
	if m.closed || !m.bound {
		m.mu.Unlock()
		return
	}
	prev, prevDisplay := m.state, m.displayLocked()
	m.fetchSeq++
	m.state = State{BroadcastID: m.broadcast.ID, Loading: true}
	b, binding, seq := m.broadcast, m.binding, m.fetchSeq
	reattach := m.attachFailed && m.opts.AttachPolicy == AttachWarn
	m.attachFailed = false

	var fetchCtx context.Context
	if reattach {
		m.cancelFetchLocked()
	} else {
		fetchCtx = m.newFetchCtxLocked()
	}
	ctx := m.bindCtx

	m.wg.Add(1)
	m.commitLocked(prev, prevDisplay)

	go func() {
		defer m.wg.Done()
		if reattach {
			m.run(ctx, b, binding, seq)
			return
		}
		m.fetch(fetchCtx, b.ID, binding, seq)
	}()
}

// OnFetchComplete applies a fetch completion. It returns false when the
// completion is stale and was dropped.
func (m *Machine) OnFetchComplete(res FetchResult) bool {
	m.mu.Lock()
	if m.closed || res.Binding != m.binding || res.Seq != m.fetchSeq || res.BroadcastID != m.state.BroadcastID {
		m.mu.Unlock()
		m.dropStale("fetch", res.BroadcastID, res.Binding)
		return false
	}
	prev, prevDisplay := m.state, m.displayLocked()
	if res.Error != "" {
		m.state = State{BroadcastID: res.BroadcastID, Error: res.Error}
		m.recordFetch("error")
	} else {
		m.state = State{BroadcastID: res.BroadcastID, View: res.View}
		m.recordFetch("ok")
	}
	m.commitLocked(prev, prevDisplay)
	return true
}

// OnAttachComplete stores the analytics session for the current binding.
// Under AttachWarn a failure replaces the display with a warning.
func (m *Machine) OnAttachComplete(res AttachResult) bool {
	m.mu.Lock()
	if m.closed || res.Binding != m.binding {
		m.mu.Unlock()
		m.dropStale("attach", "", res.Binding)
		return false
	}
	if res.Err == nil {
		prev, prevDisplay := m.state, m.displayLocked()
		m.session = res.Session
		// A surface already on screen needs the new event properties.
		m.publishLocked(prev, prevDisplay, prevDisplay.Video != nil)
		return true
	}

	if m.metrics != nil {
		m.metrics.IncAttachFailures()
	}
	m.log.Warn("analytics attach failed",
		slog.String("broadcast_id", m.broadcast.ID),
		slog.String("policy", string(m.opts.AttachPolicy)),
		slog.String("error", res.Err.Error()))
	if m.opts.AttachPolicy != AttachWarn {
		m.mu.Unlock()
		return true
	}
	prev, prevDisplay := m.state, m.displayLocked()
	// Invalidate the pending fetch for this binding.
	m.attachFailed = true
	m.fetchSeq++
	m.cancelFetchLocked()
	m.state = State{BroadcastID: m.broadcast.ID, Error: msgAnalyticsUnavailable}
	m.commitLocked(prev, prevDisplay)
	return true
}

// State returns a copy of the playback state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Broadcast returns the bound broadcast.
func (m *Machine) Broadcast() Broadcast {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.broadcast
}

// Session returns the analytics session of the current binding, or nil.
func (m *Machine) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// CurrentDisplayState returns what the host should render now.
func (m *Machine) CurrentDisplayState() Display {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.displayLocked()
}

// Dismiss invokes the host dismiss callback and unmounts.
// Later calls do nothing.
func (m *Machine) Dismiss() {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}
	if m.opts.OnDismiss != nil {
		m.opts.OnDismiss()
	}
	m.Unmount()
}

// Unmount cancels in-flight work. Later completions are ignored.
func (m *Machine) Unmount() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.cancelAll()
}

// Wait blocks until all binding goroutines have returned.
func (m *Machine) Wait() {
	m.wg.Wait()
}

func (m *Machine) run(ctx context.Context, b Broadcast, binding, seq uint64) {
	if m.opts.Profile.AnalyticsEnabled {
		actx, cancel := context.WithTimeout(ctx, m.opts.AttachTimeout)
		sess, err := m.binder.Attach(actx, Scope{Broadcast: b, ChannelID: b.ChannelID, Debug: m.opts.Debug})
		cancel()
		m.OnAttachComplete(AttachResult{Binding: binding, Session: sess, Err: err})
		if ctx.Err() != nil || (err != nil && m.opts.AttachPolicy == AttachWarn) {
			return
		}
	}

	m.mu.Lock()
	if m.closed || binding != m.binding || seq != m.fetchSeq {
		// A refresh during the attach already started a newer fetch.
		m.mu.Unlock()
		return
	}
	fetchCtx := m.newFetchCtxLocked()
	m.mu.Unlock()
	m.fetch(fetchCtx, b.ID, binding, seq)
}

// newFetchCtxLocked cancels the outstanding fetch and returns the context of
// the one replacing it.
func (m *Machine) newFetchCtxLocked() context.Context {
	m.cancelFetchLocked()
	ctx, cancel := context.WithCancel(m.bindCtx)
	m.cancelFetch = cancel
	return ctx
}

func (m *Machine) cancelFetchLocked() {
	if m.cancelFetch != nil {
		m.cancelFetch()
		m.cancelFetch = nil
	}
}

func (m *Machine) fetch(ctx context.Context, id string, binding, seq uint64) {
	view, msg, _ := m.resolver.Resolve(ctx, id)
	m.OnFetchComplete(FetchResult{Binding: binding, Seq: seq, BroadcastID: id, View: view, Error: msg})
}

// commitLocked releases m.mu and notifies the host when a redraw is needed.
func (m *Machine) commitLocked(prev State, prevDisplay Display) {
	m.publishLocked(prev, prevDisplay, false)
}

// publishLocked is commitLocked with force set to notify regardless of the
// suppression policy. renderMu is taken before m.mu is released so
// notifications keep mutation order.
func (m *Machine) publishLocked(prev State, prevDisplay Display, force bool) {
	next, nextDisplay := m.state, m.displayLocked()
	m.renderMu.Lock()
	m.mu.Unlock()
	defer m.renderMu.Unlock()

	if !force && !RenderRequired(prev, next) && !placeholderChanged(prevDisplay, nextDisplay) {
		if m.metrics != nil {
			m.metrics.IncRendersSkipped()
		}
		return
	}
	if m.metrics != nil {
		m.metrics.IncRendersNotified()
	}
	if m.opts.OnRender != nil {
		m.opts.OnRender(nextDisplay)
	}
}

func (m *Machine) displayLocked() Display {
	d := Display{BroadcastID: m.state.BroadcastID}
	if m.state.View.Playable() {
		d.Video = &VideoSurface{
			StreamURI:  m.state.View.Playlist,
			PosterURI:  m.broadcast.PosterURI(),
			ResizeMode: m.opts.ResizeMode,
			Controls:   true,
			Fullscreen: m.opts.Profile.AutoFullscreenOnUpdate,
		}
		if m.session != nil {
			d.Video.EventProperties = m.session.VideoEventProperties()
		}
		return d
	}
	props := PlaceholderProps{State: m.state, Broadcast: m.broadcast, Debug: m.opts.Debug}
	var p Placeholder
	if m.opts.RenderPlaceholder != nil {
		p = m.opts.RenderPlaceholder(props)
	} else {
		p = selectFor(props)
	}
	d.Placeholder = &p
	return d
}

func placeholderChanged(prev, next Display) bool {
	if prev.Placeholder == nil || next.Placeholder == nil {
		return prev.Placeholder != next.Placeholder
	}
	return *prev.Placeholder != *next.Placeholder
}

func (m *Machine) dropStale(kind, broadcastID string, binding uint64) {
	if m.metrics != nil {
		m.metrics.IncStaleCompletions(kind)
	}
	m.log.Debug("stale completion discarded",
		slog.String("kind", kind),
		slog.String("broadcast_id", broadcastID),
		slog.Uint64("binding", binding))
}

func (m *Machine) recordFetch(result string) {
	if m.metrics != nil {
		m.metrics.IncViewFetches(result)
	}
}
