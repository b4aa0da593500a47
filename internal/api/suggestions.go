package api

import (
	"errors"
	"net/http"

	"github.com/dalemusser/usergrid/httputil"
	"github.com/dalemusser/usergrid/internal/optionstore"
	"github.com/dalemusser/usergrid/internal/stream"
	"github.com/dalemusser/usergrid/internal/suggest"
	"github.com/dalemusser/usergrid/logging"
	"go.uber.org/zap"
)

// EventRequest is an editor notification posted to /events. An empty
// session falls back to the session header, then opens a new one.
type EventRequest struct {
	Session string `json:"session"`
	Type    string `json:"type"`
	Value   string `json:"value"`
}

// sessionParam reads ?session=, falling back to the session header.
func sessionParam(r *http.Request) string {
	if id := r.URL.Query().Get("session"); id != "" {
		return id
	}
	return r.Header.Get(logging.SessionHeader)
}

// openSession resolves the request's session, creating its store, and
// echoes the id in the session header. On failure it writes the error.
func (h *Handler) openSession(w http.ResponseWriter, id string) (string, *optionstore.Store, bool) {
	id, store, err := h.Sessions.Session(id)
	switch {
	case errors.Is(err, optionstore.ErrTooManySessions):
		httputil.JSONError(w, http.StatusServiceUnavailable, "too_many_sessions", err.Error())
		return "", nil, false
	case err != nil:
		httputil.JSONError(w, http.StatusBadRequest, "invalid_session", err.Error())
		return "", nil, false
	}
	w.Header().Set(logging.SessionHeader, id)
	return id, store, true
}

// snapshot answers the session's current options. It never creates a
// store: unknown and new sessions read as empty at version 0.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	id, err := h.Sessions.SessionID(sessionParam(r))
	if err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "invalid_session", err.Error())
		return
	}
	snap := optionstore.Snapshot{Options: []suggest.Suggestion{}}
	if store, ok := h.Sessions.Lookup(id); ok {
		snap = store.Snapshot()
	}
	w.Header().Set(logging.SessionHeader, id)
	httputil.WriteJSON(w, http.StatusOK, stream.Payload{Session: id, Snapshot: snap})
}

func (h *Handler) suggestionEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := httputil.BindJSON(r, &req); err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	kind, err := suggest.ParseEventKind(req.Type)
	if err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "invalid_event", err.Error())
		return
	}
	if req.Session == "" {
		req.Session = r.Header.Get(logging.SessionHeader)
	}
	id, store, ok := h.openSession(w, req.Session)
	if !ok {
		return
	}

	out, err := h.Suggest.Handle(store, suggest.Event{Kind: kind, Value: req.Value})
	if err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "invalid_event", err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stream.Payload{
		Session:  id,
		Snapshot: optionstore.Snapshot{Version: out.Version, Options: out.Options},
	})
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	id, store, ok := h.openSession(w, sessionParam(r))
	if !ok {
		return
	}
	err := stream.ServeSSE(w, r, id, store, h.SSE, h.Logger)
	if errors.Is(err, stream.ErrFlushNotSupported) {
		httputil.JSONError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if err != nil {
		h.Logger.Debug("option stream ended", zap.String("session", id), zap.Error(err))
	}
}

func (h *Handler) socket(w http.ResponseWriter, r *http.Request) {
	id, store, ok := h.openSession(w, sessionParam(r))
	if !ok {
		return
	}
	if err := stream.ServeWS(w, r, id, store, h.Suggest, h.Socket, h.Logger); err != nil {
		h.Logger.Debug("option socket ended", zap.String("session", id), zap.Error(err))
	}
}
