// app/app.go
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dalemusser/usergrid/config"
	"github.com/dalemusser/usergrid/httputil"
	"github.com/dalemusser/usergrid/logging"
	"github.com/dalemusser/usergrid/metrics"
	"github.com/dalemusser/usergrid/server"
	"go.uber.org/zap"
)

// Hooks are the integration points a service provides to Run. C is the
// service's own config type and D the bundle of backends it connects to.
type Hooks[C any, D any] struct {
	// Name is used only for logging.
	Name string

	// LoadConfig returns the core config and the service config.
	LoadConfig func(logger *zap.Logger) (*config.CoreConfig, C, error)

	// ConnectDB opens backends. It should respect core.DBConnectTimeout.
	ConnectDB func(ctx context.Context, core *config.CoreConfig, appCfg C, logger *zap.Logger) (D, error)

	// EnsureSchema runs migrations and seeding. Optional.
	EnsureSchema func(ctx context.Context, core *config.CoreConfig, appCfg C, db D, logger *zap.Logger) error

	// BuildHandler assembles router, middleware and routes.
	BuildHandler func(core *config.CoreConfig, appCfg C, db D, logger *zap.Logger) (http.Handler, error)

	// Shutdown releases backends after the server stops. Optional.
	Shutdown func(ctx context.Context, db D, logger *zap.Logger) error
}

// Run loads config, builds the logger, registers metrics, connects
// backends, ensures the schema, builds the handler and serves until a
// shutdown signal arrives or ctx is canceled.
func Run[C any, D any](ctx context.Context, hooks Hooks[C, D]) error {
	bootstrap := logging.BootstrapLogger()
	defer bootstrap.Sync()

	coreCfg, appCfg, err := hooks.LoadConfig(bootstrap)
	if err != nil {
		bootstrap.Error("config load failed", zap.Error(err))
		return fmt.Errorf("load config: %w", err)
	}
	bootstrap.Info("config loaded",
		zap.String("app", hooks.Name),
		zap.String("env", coreCfg.Env),
		zap.String("log_level", coreCfg.LogLevel),
	)

	logger, err := logging.BuildLogger(coreCfg.LogLevel, coreCfg.Env, coreCfg.LogFile)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()
	logger = logger.With(zap.String("app", hooks.Name))
	httputil.SetLogger(logger)

	metrics.RegisterDefault(logger)

	connectCtx, cancelConnect := context.WithTimeout(ctx, coreCfg.DBConnectTimeout)
	db, err := hooks.ConnectDB(connectCtx, coreCfg, appCfg, logger)
	cancelConnect()
	if err != nil {
		logger.Error("backend connect failed", zap.Error(err))
		return fmt.Errorf("connect: %w", err)
	}
	if hooks.Shutdown != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), coreCfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := hooks.Shutdown(closeCtx, db, logger); err != nil {
				logger.Warn("backend shutdown failed", zap.Error(err))
			}
		}()
	}

	if hooks.EnsureSchema != nil {
		schemaCtx, cancel := context.WithTimeout(ctx, coreCfg.IndexBootTimeout)
		err := hooks.EnsureSchema(schemaCtx, coreCfg, appCfg, db, logger)
		cancel()
		if err != nil {
			logger.Error("schema ensure failed", zap.Error(err))
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	ctx, cancel := server.WithShutdownSignals(ctx, logger)
	defer cancel()

	handler, err := hooks.BuildHandler(coreCfg, appCfg, db, logger)
	if err != nil {
		logger.Error("handler build failed", zap.Error(err))
		return fmt.Errorf("build handler: %w", err)
	}

	if err := server.ListenAndServeWithContext(ctx, coreCfg, handler, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
