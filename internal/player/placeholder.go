package player

import (
	"fmt"
	"strings"
)

const (
	msgTicketed    = "Ticketed broadcasts cannot be viewed in the app."
	msgUnavailable = "This video is not available."
)

// PlaceholderKind discriminates the non-video display states.
type PlaceholderKind int

const (
	PlaceholderLoading PlaceholderKind = iota
	PlaceholderInfo
	PlaceholderWarning
)

func (k PlaceholderKind) String() string {
	switch k {
	case PlaceholderLoading:
		return "loading"
	case PlaceholderInfo:
		return "info"
	case PlaceholderWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k PlaceholderKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Placeholder is shown whenever no stream is playable.
type Placeholder struct {
	Kind       PlaceholderKind `json:"kind"`
	Text       string          `json:"text,omitempty"`
	PreviewURI string          `json:"preview_uri,omitempty"`
}

// PlaceholderProps is handed to a custom placeholder renderer.
type PlaceholderProps struct {
	State     State
	Broadcast Broadcast
	Debug     bool
}

// Select picks the placeholder. The first matching branch wins.
func Select(loading bool, err, timeframe, startsAt string) Placeholder {
	switch {
	case loading:
		return Placeholder{Kind: PlaceholderLoading}
	case timeframe == TimeframeFuture:
		return Placeholder{Kind: PlaceholderInfo, Text: fmt.Sprintf("Broadcast starts %s", startsAt)}
	case err != "" && strings.Contains(strings.ToLower(err), "payment"):
		return Placeholder{Kind: PlaceholderWarning, Text: msgTicketed}
	case err != "":
		return Placeholder{Kind: PlaceholderWarning, Text: err}
	default:
		return Placeholder{Kind: PlaceholderWarning, Text: msgUnavailable}
	}
}

func selectFor(props PlaceholderProps) Placeholder {
	p := Select(props.State.Loading, props.State.Error, props.Broadcast.Timeframe, props.Broadcast.StartsAt)
	if p.Kind != PlaceholderLoading {
		p.PreviewURI = props.Broadcast.Preview
	}
	return p
}
