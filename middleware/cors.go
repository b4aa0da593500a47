package middleware

import (
	"net/http"

	"github.com/dalemusser/usergrid/config"
	"github.com/dalemusser/usergrid/logging"
	"github.com/go-chi/cors"
)

// CORSFromConfig applies the CORS section of the core config. When CORS is
// disabled it returns an identity middleware.
//
// The grid session header is always allowed and exposed so browser clients
// on another origin can correlate suggestion events.
func CORSFromConfig(coreCfg *config.CoreConfig) func(next http.Handler) http.Handler {
	if coreCfg == nil || !coreCfg.CORS.EnableCORS {
		return identity
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   coreCfg.CORS.CORSAllowedOrigins,
		AllowedMethods:   coreCfg.CORS.CORSAllowedMethods,
		AllowedHeaders:   withHeader(coreCfg.CORS.CORSAllowedHeaders, logging.SessionHeader),
		ExposedHeaders:   withHeader(coreCfg.CORS.CORSExposedHeaders, logging.SessionHeader),
		AllowCredentials: coreCfg.CORS.CORSAllowCredentials,
		MaxAge:           coreCfg.CORS.CORSMaxAge,
	})
}

func withHeader(headers []string, h string) []string {
	for _, existing := range headers {
		if http.CanonicalHeaderKey(existing) == h || existing == "*" {
			return headers
		}
	}
	out := make([]string, 0, len(headers)+1)
	out = append(out, headers...)
	return append(out, h)
}

func identity(next http.Handler) http.Handler { return next }
