package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"danmaku-overlay/internal/danmaku"
	"danmaku-overlay/internal/danmaku/format"
	"danmaku-overlay/internal/source"
)

// Handler exposes session HTTP endpoints using go-chi.
type Handler struct {
	svc      *Service
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler returns a Handler that uses the given Service and Logger.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	h := &Handler{svc: svc, log: log}
	// Overlays are usually served from the video page's origin.
	h.upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	return h
}

// Routes registers every session endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/sessions", h.Create)
	r.Route("/sessions/{session_id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Post("/attach", h.action(h.svc.Attach))
		r.Post("/detach", h.action(h.svc.Detach))
		r.Post("/show", h.action(h.svc.Show))
		r.Post("/hide", h.action(h.svc.Hide))
		r.Post("/pause", h.action(h.svc.Pause))
		r.Post("/resume", h.action(h.svc.Resume))
		r.Post("/play", h.action(h.svc.Play))
		r.Post("/load", h.Load)
		r.Post("/seek", h.Seek)
		r.Post("/resize", h.Resize)
		r.Put("/font-size", h.SetFontSize)
		r.Put("/line-margin", h.SetLineMargin)
		r.Get("/events", h.Events)
	})
}

func sessionID(r *http.Request) SessionID {
	return SessionID(chi.URLParam(r, "session_id"))
}

// Create handles POST /sessions.
// Body: { "id": "s1", "width": 1280, "height": 720 }; every field is optional.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.log.Debug("invalid session body", slog.String("error", err.Error()))
			h.writeError(w, ErrInvalidRequest)
			return
		}
	}

	sess, err := h.svc.Create(req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, h.svc.view(sess))
}

// Get handles GET /sessions/{session_id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Get(sessionID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

// Delete handles DELETE /sessions/{session_id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(sessionID(r)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// action adapts a body-less service operation to a handler.
func (h *Handler) action(op func(SessionID) (View, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := op(sessionID(r))
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, v)
	}
}

// Load handles POST /sessions/{session_id}/load.
// Body: { "url": "https://example.com/comments.xml", "format": "bilibili" }.
func (h *Handler) Load(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if !h.decode(w, r, &req) {
		return
	}
	v, err := h.svc.Load(r.Context(), sessionID(r), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

// Seek handles POST /sessions/{session_id}/seek. Body: { "time": 42.5 }.
func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	var req SeekRequest
	if !h.decode(w, r, &req) {
		return
	}
	v, err := h.svc.Seek(sessionID(r), req.Time)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

// Resize handles POST /sessions/{session_id}/resize.
func (h *Handler) Resize(w http.ResponseWriter, r *http.Request) {
	var req ResizeRequest
	if !h.decode(w, r, &req) {
		return
	}
	v, err := h.svc.Resize(sessionID(r), req.Width, req.Height)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

// SetFontSize handles PUT /sessions/{session_id}/font-size.
func (h *Handler) SetFontSize(w http.ResponseWriter, r *http.Request) {
	var req ValueRequest
	if !h.decode(w, r, &req) {
		return
	}
	v, err := h.svc.SetFontSize(sessionID(r), req.Value)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

// SetLineMargin handles PUT /sessions/{session_id}/line-margin.
func (h *Handler) SetLineMargin(w http.ResponseWriter, r *http.Request) {
	var req ValueRequest
	if !h.decode(w, r, &req) {
		return
	}
	v, err := h.svc.SetLineMargin(sessionID(r), req.Value)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

// Events handles GET /sessions/{session_id}/events by upgrading to a
// websocket that streams render events as JSON.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Session(sessionID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	h.svc.StreamEvents(sess, conn)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.log.Debug("invalid request body",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		h.writeError(w, ErrInvalidRequest)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug("write response failed", slog.String("error", err.Error()))
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		h.log.Error("request failed", slog.String("error", err.Error()))
	}
	h.writeJSON(w, status, errorBody{Error: err.Error()})
}

// statusFor maps service and engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, danmaku.ErrUnknownFormat),
		errors.Is(err, source.ErrUnsupportedURL):
		return http.StatusBadRequest
	case errors.Is(err, danmaku.ErrLoadFailed),
		errors.Is(err, format.ErrDecode):
		return http.StatusBadGateway
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, danmaku.ErrInvalidMode),
		errors.Is(err, danmaku.ErrNegativeMargin),
		errors.Is(err, danmaku.ErrInvalidFontSize),
		errors.Is(err, danmaku.ErrInvalidSpeed):
		return http.StatusBadRequest
	case errors.Is(err, ErrSessionExists),
		errors.Is(err, danmaku.ErrLoadAborted),
		errors.Is(err, danmaku.ErrClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
