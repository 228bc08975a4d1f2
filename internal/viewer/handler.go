package viewer

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"broadcast-player/internal/analytics"
	"broadcast-player/internal/player"
)

const maxBodyBytes = 64 << 10

// Handler exposes viewer session endpoints using go-chi.
type Handler struct {
	svc *Service
	log *slog.Logger

	openLimit  int
	openWindow time.Duration
}

// NewHandler returns a Handler that uses the given Service and Logger.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// LimitOpens caps POST /sessions to n requests per window for each client IP.
// n <= 0 disables the limit.
func (h *Handler) LimitOpens(n int, window time.Duration) *Handler {
	h.openLimit, h.openWindow = n, window
	return h
}

// Routes mounts the session endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	if h.openLimit > 0 {
		r.With(h.openLimiter()).Post("/sessions", h.OpenSession)
	} else {
		r.Post("/sessions", h.OpenSession)
	}
	r.Route("/sessions/{session_id}", func(r chi.Router) {
		r.Get("/display", h.GetDisplay)
		r.Put("/broadcast", h.Rebind)
		r.Post("/refresh", h.Refresh)
		r.Post("/events", h.ReportEvent)
		r.Delete("/", h.CloseSession)
	})
}

type rebindRequest struct {
	Broadcast   *player.Broadcast `json:"broadcast,omitempty"`
	BroadcastID string            `json:"broadcast_id,omitempty"`
}

// OpenSession handles POST /sessions.
// Body: { "broadcast": {...} } or { "broadcast_id": "b1" }, plus optional debug and resize_mode.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.log.Debug("invalid open body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	vs, err := h.svc.Open(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "open session failed", "", err)
		return
	}
	writeJSON(w, http.StatusCreated, displayOf(vs))
}

// GetDisplay handles GET /sessions/{session_id}/display.
func (h *Handler) GetDisplay(w http.ResponseWriter, r *http.Request) {
	id := SessionID(chi.URLParam(r, "session_id"))
	resp, err := h.svc.Display(id)
	if err != nil {
		h.writeServiceError(w, "display failed", id, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Rebind handles PUT /sessions/{session_id}/broadcast.
func (h *Handler) Rebind(w http.ResponseWriter, r *http.Request) {
	id := SessionID(chi.URLParam(r, "session_id"))

	var req rebindRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.log.Debug("invalid rebind body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	vs, err := h.svc.Rebind(r.Context(), id, req.Broadcast, req.BroadcastID)
	if err != nil {
		h.writeServiceError(w, "rebind failed", id, err)
		return
	}
	writeJSON(w, http.StatusOK, displayOf(vs))
}

// Refresh handles POST /sessions/{session_id}/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	id := SessionID(chi.URLParam(r, "session_id"))
	if err := h.svc.Refresh(id); err != nil {
		h.writeServiceError(w, "refresh failed", id, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ReportEvent handles POST /sessions/{session_id}/events.
// Body: { "action": "play", "position": 12.5 }.
func (h *Handler) ReportEvent(w http.ResponseWriter, r *http.Request) {
	id := SessionID(chi.URLParam(r, "session_id"))

	var ev analytics.Event
	if err := decodeBody(w, r, &ev); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := h.svc.Report(r.Context(), id, ev); err != nil {
		h.writeServiceError(w, "report event failed", id, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// CloseSession handles DELETE /sessions/{session_id}.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id := SessionID(chi.URLParam(r, "session_id"))
	if err := h.svc.Close(id); err != nil {
		h.writeServiceError(w, "close session failed", id, err)
		return
	}
	h.log.Info("session closed", slog.String("session_id", string(id)))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, msg string, id SessionID, err error) {
	var fe *player.FetchError
	switch {
	case errors.Is(err, ErrSessionNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, analytics.ErrUnknownEvent):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrNoAnalyticsSession), errors.Is(err, player.ErrClosed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &fe):
		h.log.Info(msg, slog.String("session_id", string(id)), slog.String("error", fe.Message()))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": fe.Message()})
	default:
		h.log.Error(msg, slog.String("session_id", string(id)), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (h *Handler) openLimiter() func(http.Handler) http.Handler {
	return httprate.Limit(
		h.openLimit,
		h.openWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(h.openWindow.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many sessions opened, try again later"})
		}),
	)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
