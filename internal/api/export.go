package api

import (
	"net/http"

	"github.com/dalemusser/usergrid/httputil"
	"github.com/dalemusser/usergrid/internal/dataset"
	"github.com/dalemusser/usergrid/internal/export"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// exportUsers writes every user matching the grid's filters as CSV or
// XLSX, headed by the field labels in the negotiated locale.
func (h *Handler) exportUsers(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		httputil.JSONError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	uq, err := h.userQuery(r)
	if err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	users, _, err := h.Users.List(r.Context(), uq)
	if err != nil {
		h.Logger.Error("export list users failed", zap.Error(err))
		httputil.JSONError(w, http.StatusInternalServerError, "internal", "could not list users")
		return
	}
	records := make([]dataset.Record, len(users))
	for i, u := range users {
		records[i] = u.Record()
	}

	table := export.FromRecords(records, h.Dataset.FieldNames(), h.Dataset.Labels(h.locale(r)))
	if err := export.Serve(w, format, table, h.Dataset.Name); err != nil {
		h.Logger.Error("export write failed", zap.String("format", string(format)), zap.Error(err))
	}
}
