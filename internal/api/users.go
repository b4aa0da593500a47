package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dalemusser/usergrid/httputil"
	"github.com/dalemusser/usergrid/internal/dataset"
	"github.com/dalemusser/usergrid/internal/lookup"
	"github.com/dalemusser/usergrid/internal/pagination"
	"github.com/dalemusser/usergrid/internal/userstore"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// userQuery reads the grid's filter parameters. Parameters that are not
// query fields, such as customPara, are accepted and ignored.
func (h *Handler) userQuery(r *http.Request) (userstore.Query, error) {
	q := r.URL.Query()
	uq := userstore.Query{Name: q.Get("name"), Email: q.Get("email")}
	if s := q.Get("age"); s != "" {
		age, err := strconv.Atoi(s)
		if err != nil {
			return uq, errors.New("age must be an integer")
		}
		uq.Age = &age
	}
	if sort, ok := pagination.ParseSort(r, h.Dataset.SortableFields()); ok {
		uq.SortBy, uq.Desc = sort.Field, sort.Desc
	}
	return uq, nil
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	uq, err := h.userQuery(r)
	if err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	page := pagination.FromRequest(r, h.Dataset.PageSize, pagination.MaxSize)
	uq.Offset, uq.Limit = page.Offset(), page.Limit()

	users, total, err := h.Users.List(r.Context(), uq)
	if err != nil {
		h.Logger.Error("list users failed", zap.Error(err))
		httputil.JSONError(w, http.StatusInternalServerError, "internal", "could not list users")
		return
	}

	records := make([]dataset.Record, len(users))
	for i, u := range users {
		records[i] = u.Record()
	}
	pagination.SetLinkHeader(w, r.URL, page, total)
	httputil.WriteJSON(w, http.StatusOK, pagination.NewEnvelope(records, page, total))
}

// submitUsers applies a toJSONData batch. Every record is validated before
// anything is written; the batch is stored in one transaction.
func (h *Handler) submitUsers(w http.ResponseWriter, r *http.Request) {
	var records []dataset.Record
	if err := httputil.BindJSONAllowUnknown(r, &records); err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if verrs := h.Dataset.ValidateAll(records); len(verrs) > 0 {
		httputil.JSONErrorDetails(w, http.StatusUnprocessableEntity, "validation_failed", verrs.Error(), verrs)
		return
	}

	changes := make([]userstore.Change, 0, len(records))
	for i, rec := range records {
		c, err := userstore.FromRecord(rec)
		if err != nil {
			httputil.JSONError(w, http.StatusBadRequest, "invalid_record", "record "+strconv.Itoa(i)+": "+err.Error())
			return
		}
		changes = append(changes, c)
	}

	stored, err := h.Users.Apply(r.Context(), changes)
	switch {
	case errors.Is(err, userstore.ErrConflict):
		httputil.JSONError(w, http.StatusConflict, "conflict", err.Error())
		return
	case errors.Is(err, userstore.ErrNotFound):
		httputil.JSONError(w, http.StatusNotFound, "not_found", err.Error())
		return
	case err != nil:
		h.Logger.Error("submit users failed", zap.Error(err))
		httputil.JSONError(w, http.StatusInternalServerError, "internal", "could not save users")
		return
	}

	out := make([]dataset.Record, len(stored))
	for i, u := range stored {
		out[i] = u.Record()
	}
	h.Logger.Info("users submitted", zap.Int("records", len(records)), zap.Int("stored", len(stored)))
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) lookupCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	values, err := h.Lookups.Values(r.Context(), code)
	if errors.Is(err, lookup.ErrUnknownCode) {
		httputil.JSONError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	if err != nil {
		h.Logger.Error("lookup failed", zap.String("code", code), zap.Error(err))
		httputil.JSONError(w, http.StatusInternalServerError, "internal", "lookup failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, values)
}
