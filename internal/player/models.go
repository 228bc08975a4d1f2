package player

import (
	"context"
	"time"
)

// TimeframeFuture marks a broadcast that has not started yet.
const TimeframeFuture = "future"

// DefaultResizeMode is used when the host gives no resize hint.
const DefaultResizeMode = "contain"

// Broadcast is the event being viewed. It is supplied by the host and never
// mutated by the state machine.
type Broadcast struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Name      string `json:"name,omitempty"`
	Timeframe string `json:"timeframe"`
	StartsAt  string `json:"starts_at,omitempty"`
	StopsAt   string `json:"stops_at,omitempty"`
	Poster    string `json:"poster,omitempty"`
	Preview   string `json:"preview,omitempty"`
}

// PosterURI returns the image shown on the video surface before playback.
func (b Broadcast) PosterURI() string {
	if b.Poster != "" {
		return b.Poster
	}
	return b.Preview
}

// View is the fetched playability record of a broadcast.
type View struct {
	Playlist string `json:"playlist,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Playable reports whether the view carries a stream reference.
func (v View) Playable() bool {
	return v.Playlist != ""
}

// State is the playback state owned by a Machine.
type State struct {
	BroadcastID string `json:"broadcast_id"`
	View        View   `json:"view"`
	Error       string `json:"error,omitempty"`
	Loading     bool   `json:"loading"`
}

// Scope is what an analytics session is bound to.
type Scope struct {
	Broadcast Broadcast
	ChannelID string
	Debug     bool
}

// Session is a telemetry session scoped to one bound broadcast.
type Session interface {
	VideoEventProperties() map[string]any
}

// Binder establishes analytics sessions.
type Binder interface {
	Attach(ctx context.Context, scope Scope) (Session, error)
}

// ViewFetcher is the remote view lookup.
type ViewFetcher interface {
	FetchView(ctx context.Context, broadcastID string) (View, error)
}

// Profile selects between the two player variants.
type Profile struct {
	AutoFullscreenOnUpdate bool
	AnalyticsEnabled       bool
}

// AttachFailurePolicy decides what a failed analytics attach does to playback.
type AttachFailurePolicy string

const (
	// AttachContinue plays without event properties.
	AttachContinue AttachFailurePolicy = "continue"
	// AttachWarn shows a warning placeholder and skips the fetch.
	AttachWarn AttachFailurePolicy = "warn"
)

// ParseAttachFailurePolicy maps a config string to a policy, defaulting to AttachContinue.
func ParseAttachFailurePolicy(s string) AttachFailurePolicy {
	if AttachFailurePolicy(s) == AttachWarn {
		return AttachWarn
	}
	return AttachContinue
}

// Options configures a Machine.
type Options struct {
	Profile       Profile
	AttachPolicy  AttachFailurePolicy
	AttachTimeout time.Duration
	Debug         bool
	ResizeMode    string

	// RenderPlaceholder replaces Select when set.
	RenderPlaceholder func(PlaceholderProps) Placeholder

	// OnRender is called, in mutation order, whenever the display must be redrawn.
	// It runs on the mutating goroutine and must not call back into the Machine.
	OnRender func(Display)

	OnDismiss func()
}

// FetchResult is the completion of a view fetch. A non-empty Error marks a
// failure and holds the display-ready message.
type FetchResult struct {
	Binding     uint64
	Seq         uint64
	BroadcastID string
	View        View
	Error       string
}

// AttachResult is the completion of an analytics attach.
type AttachResult struct {
	Binding uint64
	Session Session
	Err     error
}
