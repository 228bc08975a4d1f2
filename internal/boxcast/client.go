// Package boxcast is the client for the broadcast REST API: broadcast
// metadata and the per-broadcast view record that carries the stream.
package boxcast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"broadcast-player/internal/player"
)

const maxErrorBodyBytes = 64 << 10

// Client wraps the two API calls the player relies on.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	views   singleflight.Group
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default 15s-timeout client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit throttles outbound requests. perSec <= 0 disables throttling.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *Client) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// New creates a client for the API rooted at base.
func New(base string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FetchView returns the view of a broadcast. Concurrent lookups of the same
// broadcast share one request; each caller still honors its own ctx.
func (c *Client) FetchView(ctx context.Context, broadcastID string) (player.View, error) {
	ch := c.views.DoChan(broadcastID, func() (any, error) {
		// The shared call must not die with whichever caller started it.
		var v player.View
		err := c.getJSON(context.WithoutCancel(ctx), "/broadcasts/"+url.PathEscape(broadcastID)+"/view", &v)
		return v, err
	})
	select {
	case <-ctx.Done():
		return player.View{}, player.NewTransportError(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return player.View{}, res.Err
		}
		return res.Val.(player.View), nil
	}
}

// FetchBroadcast returns broadcast metadata.
func (c *Client) FetchBroadcast(ctx context.Context, broadcastID string) (player.Broadcast, error) {
	var b player.Broadcast
	if err := c.getJSON(ctx, "/broadcasts/"+url.PathEscape(broadcastID), &b); err != nil {
		return player.Broadcast{}, err
	}
	return b, nil
}

// getJSON decodes a 2xx body into out. Every failure is a *player.FetchError.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return player.NewTransportError(err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return player.NewTransportError(err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return player.NewTransportError(err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeError(res)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return player.NewTransportError(fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

func decodeError(res *http.Response) *player.FetchError {
	body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodyBytes))

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err == nil && obj != nil {
		return &player.FetchError{StatusCode: res.StatusCode, Body: json.RawMessage(body)}
	}
	payload := map[string]any{"error": http.StatusText(res.StatusCode)}
	if text := strings.TrimSpace(string(body)); text != "" {
		payload["body"] = text
	}
	return &player.FetchError{StatusCode: res.StatusCode, Payload: payload}
}
