package middleware

import (
	"net/http"

	"github.com/dalemusser/usergrid/config"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// compressibleTypes are the response types the grid API produces. SSE
// streams are excluded because flushing through a gzip writer stalls them.
var compressibleTypes = []string{
	"application/json",
	"text/csv",
	"text/plain",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// CompressFromConfig returns gzip/deflate compression at coreCfg.CompressionLevel,
// or an identity middleware when compression is disabled.
func CompressFromConfig(coreCfg *config.CoreConfig, logger *zap.Logger) func(next http.Handler) http.Handler {
	if coreCfg == nil || !coreCfg.EnableCompression {
		return identity
	}
	return Compress(coreCfg.CompressionLevel, logger)
}

// Compress clamps level into 1..9 and compresses the API content types.
func Compress(level int, logger *zap.Logger) func(next http.Handler) http.Handler {
	clamped := min(max(level, 1), 9)
	if clamped != level && logger != nil {
		logger.Warn("compression level clamped", zap.Int("requested", level), zap.Int("level", clamped))
	}
	return middleware.Compress(clamped, compressibleTypes...)
}
