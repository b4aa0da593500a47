package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type eventBody struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func TestWriteJSON_ClampsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, 42, map[string]string{"ok": "yes"})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestJSONErrorDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONErrorDetails(rec, http.StatusUnprocessableEntity, "validation_failed", "record invalid",
		[]map[string]string{{"field": "age", "rule": "max"}})

	body := rec.Body.String()
	for _, want := range []string{`"error":"validation_failed"`, `"details":[{"field":"age","rule":"max"}]`} {
		if !strings.Contains(body, want) {
			t.Errorf("body %s missing %s", body, want)
		}
	}
}

func TestBindJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		strict  bool
		wantErr string
	}{
		{"valid", `{"type":"input","value":"alice"}`, true, ""},
		{"empty", ``, true, "request body is empty"},
		{"malformed", `{"type":`, true, "malformed JSON"},
		{"unknown strict", `{"type":"focus","extra":1}`, true, `unknown field "extra"`},
		{"unknown lenient", `{"type":"focus","extra":1}`, false, ""},
		{"wrong type", `{"type":5}`, true, `invalid value for field "type"`},
		{"trailing", `{"type":"input"} {"type":"focus"}`, true, "multiple JSON values"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var got eventBody
			var err error
			if tt.strict {
				err = BindJSON(req, &got)
			} else {
				err = BindJSONAllowUnknown(req, &got)
			}
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestBindJSON_EmptyIsSentinel(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if err := BindJSON(req, &eventBody{}); !errors.Is(err, ErrEmptyBody) {
		t.Errorf("err = %v, want ErrEmptyBody", err)
	}
}
