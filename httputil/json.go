// httputil/json.go
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"go.uber.org/zap"
)

// ErrorResponse is the JSON error envelope used by every usergrid endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// ErrEmptyBody is returned by BindJSON when the request carries no body.
var ErrEmptyBody = errors.New("request body is empty")

var encodeLogger = zap.NewNop()

// SetLogger configures the logger used for encoding failures that happen
// after headers were sent. Call once during startup.
func SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	encodeLogger = logger
}

// WriteJSON writes v as JSON with the given status code. Status codes outside
// 100-599 are clamped to 500. Encoding failures can only be logged.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	if status < 100 || status > 599 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		typeName := "nil"
		if v != nil {
			typeName = reflect.TypeOf(v).String()
		}
		encodeLogger.Error("json encoding failed after headers sent",
			zap.String("type", typeName), zap.Error(err))
	}
}

// JSONError writes a structured JSON error with an error code and message.
func JSONError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// JSONErrorDetails is JSONError with a details payload, e.g. validation errors.
func JSONErrorDetails(w http.ResponseWriter, status int, code, message string, details any) {
	WriteJSON(w, status, ErrorResponse{Error: code, Message: message, Details: details})
}

// BindJSON decodes the request body as JSON into v, rejecting unknown fields
// and trailing values. Returned errors are safe to show to clients.
//
//	var req SuggestionEventRequest
//	if err := httputil.BindJSON(r, &req); err != nil {
//	    httputil.JSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
//	    return
//	}
func BindJSON(r *http.Request, v any) error {
	return bind(r, v, true)
}

// BindJSONAllowUnknown is like BindJSON but permits unknown fields. Records
// posted by the grid carry bookkeeping keys the server does not model.
func BindJSONAllowUnknown(r *http.Request, v any) error {
	return bind(r, v, false)
}

func bind(r *http.Request, v any, strict bool) error {
	if r.Body == nil || r.ContentLength == 0 {
		return ErrEmptyBody
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(v); err != nil {
		return parseJSONError(err)
	}
	if dec.More() {
		return errors.New("request body contains multiple JSON values")
	}
	return nil
}

// parseJSONError converts json decoding errors into user-friendly messages.
func parseJSONError(err error) error {
	if errors.Is(err, io.EOF) {
		return ErrEmptyBody
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Errorf("malformed JSON at position %d", syntaxErr.Offset)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Errorf("invalid value for field %q: expected %s", typeErr.Field, typeErr.Type.String())
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errors.New("request body too large")
	}

	// "json: unknown field \"fieldname\""
	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return fmt.Errorf("unknown field %q", strings.Trim(field, "\""))
	}

	return errors.New("invalid JSON in request body")
}
