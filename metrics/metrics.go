// metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// reqDuration is a histogram of HTTP request durations in seconds, labeled
// by path, method, and status code.
var reqDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "http_request_duration_seconds",
		Help: "Duration of HTTP requests.",
		// buckets in seconds
		Buckets: []float64{0.01, 0.1, 0.3, 1.2, 5},
	},
	[]string{"path", "method", "status"},
)

// suggestionEvents counts suggestion editor events by kind (input, focus).
var suggestionEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "usergrid",
		Name:      "suggestion_events_total",
		Help:      "Suggestion editor events handled, by event kind.",
	},
	[]string{"kind"},
)

// suggestionOptions records how many options each event produced.
var suggestionOptions = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "usergrid",
		Name:      "suggestion_options",
		Help:      "Number of options written to the suggestion store per event.",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
	},
)

// optionSessions is the number of live editor sessions holding a store.
var optionSessions = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "usergrid",
		Name:      "option_sessions",
		Help:      "Editor sessions with a live suggestion store.",
	},
)

// RegisterDefault registers the Go runtime and process collectors, the HTTP
// request duration histogram and the suggestion metrics. Call once at startup.
//
// It panics (or logs fatally) if registration fails for reasons other than
// the collector already being registered.
func RegisterDefault(logger *zap.Logger) {
	mustRegister(logger, "Go collector", collectors.NewGoCollector())
	mustRegister(logger, "process collector", collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mustRegister(logger, "HTTP request histogram", reqDuration)
	mustRegister(logger, "suggestion event counter", suggestionEvents)
	mustRegister(logger, "suggestion option histogram", suggestionOptions)
	mustRegister(logger, "option session gauge", optionSessions)
}

// ObserveSuggestion records one handled suggestion event.
func ObserveSuggestion(kind string, options int) {
	suggestionEvents.WithLabelValues(kind).Inc()
	suggestionOptions.Observe(float64(options))
}

// SetOptionSessions publishes the live editor session count.
func SetOptionSessions(n int) {
	optionSessions.Set(float64(n))
}

// mustRegister attempts to register a Prometheus collector. If registration
// fails for a reason other than AlreadyRegisteredError, it logs a fatal error
// (which calls os.Exit) or panics if no logger is provided.
func mustRegister(logger *zap.Logger, name string, c prometheus.Collector) {
	if err := prometheus.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			// Already registered is fine - this can happen in tests or if
			// RegisterDefault is called multiple times.
			return
		}
		// Serious registration failure - this indicates a configuration problem
		// that should be fixed before the application can run properly.
		if logger != nil {
			logger.Fatal("failed to register "+name, zap.Error(err))
		} else {
			// No logger available - panic to ensure the error isn't silently ignored
			panic("metrics: failed to register " + name + ": " + err.Error())
		}
	}
}

// maxPathLabelLength bounds the path label to keep cardinality in check.
const maxPathLabelLength = 256

// HTTPMetrics is a middleware that records request duration into the
// http_request_duration_seconds histogram, labeled by the chi route pattern
// ("/mock/guide/user/{id}") rather than the raw path.
func HTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		protoMajor := r.ProtoMajor
		if protoMajor < 1 {
			protoMajor = 1
		}
		ww := middleware.NewWrapResponseWriter(w, protoMajor)

		next.ServeHTTP(ww, r)

		reqDuration.WithLabelValues(
			routeLabel(r),
			r.Method,
			strconv.Itoa(statusLabel(ww.Status())),
		).Observe(time.Since(start).Seconds())
	})
}

// statusLabel maps "never written" to 200 and out-of-range codes to 500.
func statusLabel(code int) int {
	if code == 0 {
		return http.StatusOK
	}
	if code < 100 || code > 599 {
		return http.StatusInternalServerError
	}
	return code
}

func routeLabel(r *http.Request) string {
	path := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			path = pattern
		}
	}
	if len(path) > maxPathLabelLength {
		path = truncateUTF8(path, maxPathLabelLength-3) + "..."
	}
	return path
}

// Handler returns an http.Handler that exposes the Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// truncateUTF8 truncates s to at most maxBytes bytes without splitting
// multi-byte UTF-8 characters. If s is already <= maxBytes, it is returned
// unchanged. Otherwise, it truncates at the last valid rune boundary.
// If maxBytes <= 0, returns an empty string.
func truncateUTF8(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	// At this point len(s) > maxBytes, so s[maxBytes] is a valid index.
	// Work backwards from maxBytes to find a valid rune boundary.
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
