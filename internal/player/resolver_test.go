package player

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fetchFunc func(ctx context.Context, id string) (View, error)

func (f fetchFunc) FetchView(ctx context.Context, id string) (View, error) { return f(ctx, id) }

func TestFetchError_Message(t *testing.T) {
	t.Run("error_description_verbatim", func(t *testing.T) {
		err := &FetchError{Payload: map[string]any{"error_description": "Channel offline"}}
		assert.Equal(t, "Channel offline", err.Message())
	})
	t.Run("serialized_payload", func(t *testing.T) {
		err := &FetchError{StatusCode: 500, Payload: map[string]any{"code": 500}}
		assert.Equal(t, `Error: {"code":500}`, err.Message())
	})
	t.Run("empty_description_falls_back", func(t *testing.T) {
		err := &FetchError{Payload: map[string]any{"error_description": "", "error": "x"}}
		assert.Equal(t, `Error: {"error":"x","error_description":""}`, err.Message())
	})
	t.Run("raw_body_keeps_key_order", func(t *testing.T) {
		err := &FetchError{StatusCode: 500, Body: []byte(`{"status": 500, "error": "server_error", "detail": "<db>"}`)}
		assert.Equal(t, `Error: {"status":500,"error":"server_error","detail":"<db>"}`, err.Message())
	})
	t.Run("raw_body_description", func(t *testing.T) {
		err := &FetchError{Body: []byte(`{"error":"payment_required","error_description":"Payment required"}`)}
		assert.Equal(t, "Payment required", err.Message())
	})
	t.Run("nil_payload", func(t *testing.T) {
		assert.Equal(t, "Error: {}", (&FetchError{}).Message())
	})
}

func TestErrorMessage(t *testing.T) {
	wrapped := fmt.Errorf("view: %w", &FetchError{Payload: map[string]any{"error_description": "Gone"}})
	assert.Equal(t, "Gone", ErrorMessage(wrapped))
	assert.Equal(t, `Error: {"error":"dial tcp: refused"}`, ErrorMessage(errors.New("dial tcp: refused")))
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(fetchFunc(func(_ context.Context, id string) (View, error) {
		if id == "ok" {
			return View{Playlist: "https://cdn/ok.m3u8"}, nil
		}
		return View{Playlist: "ignored"}, &FetchError{Payload: map[string]any{"error_description": "Not found"}}
	}), nil)

	v, msg, ok := r.Resolve(context.Background(), "ok")
	assert.True(t, ok)
	assert.Empty(t, msg)
	assert.Equal(t, "https://cdn/ok.m3u8", v.Playlist)

	v, msg, ok = r.Resolve(context.Background(), "missing")
	assert.False(t, ok)
	assert.Equal(t, "Not found", msg)
	assert.Equal(t, View{}, v, "a failed fetch never yields a view")
}
