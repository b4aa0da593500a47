package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTruncateUTF8(t *testing.T) {
	if got := truncateUTF8("abc", 5); got != "abc" {
		t.Errorf("short string changed: %q", got)
	}
	// "邮箱" is two 3-byte runes; cutting at 4 bytes must not split the second
	if got := truncateUTF8("邮箱", 4); got != "邮" {
		t.Errorf("truncateUTF8 = %q, want %q", got, "邮")
	}
	if got := truncateUTF8("abc", 0); got != "" {
		t.Errorf("zero max = %q", got)
	}
}

func TestStatusLabel(t *testing.T) {
	tests := map[int]int{0: 200, 204: 204, 42: 500, 700: 500, 422: 422}
	for in, want := range tests {
		if got := statusLabel(in); got != want {
			t.Errorf("statusLabel(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestHTTPMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMetrics)
	r.Get("/mock/guide/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/mock/guide/user/7", nil))

	n := testutil.CollectAndCount(reqDuration, "http_request_duration_seconds")
	if n == 0 {
		t.Fatal("no observations recorded")
	}
}

func TestObserveSuggestion(t *testing.T) {
	before := testutil.ToFloat64(suggestionEvents.WithLabelValues("focus"))
	ObserveSuggestion("focus", 3)
	after := testutil.ToFloat64(suggestionEvents.WithLabelValues("focus"))
	if after-before != 1 {
		t.Errorf("focus counter delta = %v, want 1", after-before)
	}

	SetOptionSessions(4)
	if got := testutil.ToFloat64(optionSessions); got != 4 {
		t.Errorf("option_sessions = %v, want 4", got)
	}

	if !strings.HasPrefix(routeLabel(httptest.NewRequest(http.MethodGet, "/x", nil)), "/x") {
		t.Error("routeLabel should fall back to the raw path")
	}
}
