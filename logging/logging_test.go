package logging

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestIsValidLogLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", "Warn", "error"} {
		if !IsValidLogLevel(lvl) {
			t.Errorf("IsValidLogLevel(%q) = false", lvl)
		}
	}
	if IsValidLogLevel("verbose") {
		t.Error(`IsValidLogLevel("verbose") = true`)
	}
}

func TestBuildLogger_WritesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usergrid.log")

	logger, err := BuildLogger("info", "prod", path)
	if err != nil {
		t.Fatalf("BuildLogger() error = %v", err)
	}
	logger.Info("suggestions replaced", zap.Int("options", 3))
	_ = logger.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"suggestions replaced"`) {
		t.Errorf("log file missing entry: %s", b)
	}
}

func TestRequestLogger_LevelBySessionAndStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	req := httptest.NewRequest(http.MethodPost, "/mock/guide/user", nil)
	req.Header.Set(SessionHeader, "s-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Errorf("level = %v, want warn", entries[0].Level)
	}
	if got := entries[0].ContextMap()["session"]; got != "s-1" {
		t.Errorf("session = %v, want s-1", got)
	}
}

func TestRecoverer_ReturnsJSON500(t *testing.T) {
	h := Recoverer(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "internal_error") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
