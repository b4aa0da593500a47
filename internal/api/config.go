package api

import (
	"errors"
	"net/http"

	"github.com/dalemusser/usergrid/httputil"
	"github.com/dalemusser/usergrid/internal/optionstore"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// datasetSpec serves the localized dataset definition, as YAML when
// ?format=yaml.
func (h *Handler) datasetSpec(w http.ResponseWriter, r *http.Request) {
	spec := h.Dataset.Localize(h.locale(r))
	w.Header().Set("Content-Language", spec.Locale)
	w.Header().Add("Vary", "Accept-Language")

	if r.URL.Query().Get("format") != "yaml" {
		httputil.WriteJSON(w, http.StatusOK, spec)
		return
	}
	out, err := yaml.Marshal(spec)
	if err != nil {
		h.Logger.Error("encode dataset yaml", zap.Error(err))
		httputil.JSONError(w, http.StatusInternalServerError, "internal", "could not encode dataset")
		return
	}
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(out)
}

// columnConfig serves the resolved columns. Factory editors are bound to
// ?session= or the session header, or to a new session id when neither is
// given.
func (h *Handler) columnConfig(w http.ResponseWriter, r *http.Request) {
	tag := h.locale(r)
	cols, err := h.Editors.Resolve(h.Columns, h.Dataset, h.Dataset.Labels(tag), sessionParam(r))
	if errors.Is(err, optionstore.ErrInvalidSession) {
		httputil.JSONError(w, http.StatusBadRequest, "invalid_session", err.Error())
		return
	}
	if err != nil {
		h.Logger.Error("resolve columns", zap.Error(err))
		httputil.JSONError(w, http.StatusInternalServerError, "internal", "could not resolve columns")
		return
	}
	w.Header().Set("Content-Language", tag.String())
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"dataset": h.Dataset.Name, "columns": cols})
}
