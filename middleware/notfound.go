package middleware

import (
	"net/http"

	"github.com/dalemusser/usergrid/httputil"
	"go.uber.org/zap"
)

// NotFoundHandler logs and answers 404 with the JSON error envelope.
func NotFoundHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRejected(logger, "not_found", r)
		httputil.JSONError(w, http.StatusNotFound, "not_found", "no such resource: "+r.URL.Path)
	}
}

// MethodNotAllowedHandler logs and answers 405 with the JSON error envelope.
func MethodNotAllowedHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRejected(logger, "method_not_allowed", r)
		httputil.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed",
			r.Method+" is not supported on "+r.URL.Path)
	}
}

func logRejected(logger *zap.Logger, msg string, r *http.Request) {
	if logger == nil {
		return
	}
	logger.Debug(msg,
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_ip", r.RemoteAddr),
	)
}
