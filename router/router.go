// router/router.go
package router

import (
	"github.com/dalemusser/usergrid/config"
	"github.com/dalemusser/usergrid/logging"
	"github.com/dalemusser/usergrid/metrics"
	"github.com/dalemusser/usergrid/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// New creates a chi.Router carrying the usergrid middleware stack, outermost
// first: request id, real ip, panic recovery, security headers, CORS,
// body size limit, metrics, access logging and compression. NotFound and
// MethodNotAllowed answer with the JSON error envelope.
//
// Routes are mounted by the caller.
func New(coreCfg *config.CoreConfig, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.Recoverer(logger))
	r.Use(middleware.SecurityHeaders(middleware.APISecurityHeaders()))
	r.Use(middleware.CORSFromConfig(coreCfg))
	r.Use(middleware.LimitBodySize(coreCfg.MaxRequestBodyBytes))
	r.Use(metrics.HTTPMetrics)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.CompressFromConfig(coreCfg, logger))

	r.NotFound(middleware.NotFoundHandler(logger))
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler(logger))

	return r
}
