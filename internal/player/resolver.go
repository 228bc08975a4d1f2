package player

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// FetchError is a failed view lookup. Body is the raw JSON error body as the
// server sent it; Payload is used when there is no such body (transport
// failures, non-JSON responses).
type FetchError struct {
	StatusCode int
	Body       json.RawMessage
	Payload    map[string]any
}

// NewTransportError wraps a failure that produced no response body.
func NewTransportError(err error) *FetchError {
	return &FetchError{Payload: map[string]any{"error": err.Error()}}
}

func (e *FetchError) Error() string {
	return e.Message()
}

// Message reduces the error to display text: error_description verbatim,
// otherwise the serialized payload prefixed with "Error: ". A raw body keeps
// the server's key order.
func (e *FetchError) Message() string {
	if len(e.Body) > 0 {
		var body struct {
			Description any `json:"error_description"`
		}
		if err := json.Unmarshal(e.Body, &body); err == nil {
			if d := describe(body.Description); d != "" {
				return d
			}
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, e.Body); err == nil {
			return "Error: " + buf.String()
		}
	}
	if d, ok := e.Payload["error_description"]; ok {
		if s := describe(d); s != "" {
			return s
		}
	}
	return "Error: " + encodePayload(e.Payload)
}

func describe(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case string:
		return d
	default:
		return fmt.Sprint(d)
	}
}

// ErrorMessage returns the display text for any fetch failure.
func ErrorMessage(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Message()
	}
	return NewTransportError(err).Message()
}

func encodePayload(p map[string]any) string {
	if p == nil {
		return "{}"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return fmt.Sprint(p)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// Resolver fetches views and turns failures into display messages.
type Resolver struct {
	fetcher ViewFetcher
	log     *slog.Logger
}

// NewResolver returns a Resolver backed by fetcher.
func NewResolver(fetcher ViewFetcher, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{fetcher: fetcher, log: log}
}

// Resolve returns the view on success, or an empty view and the message on failure.
func (r *Resolver) Resolve(ctx context.Context, broadcastID string) (View, string, bool) {
	v, err := r.fetcher.FetchView(ctx, broadcastID)
	if err != nil {
		msg := ErrorMessage(err)
		r.log.Info("view fetch failed",
			slog.String("broadcast_id", broadcastID),
			slog.String("error", msg))
		return View{}, msg, false
	}
	return v, "", true
}
