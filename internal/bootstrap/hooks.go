// Package bootstrap wires usergrid's backends and routes into app.Run.
package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dalemusser/usergrid/app"
	"github.com/dalemusser/usergrid/config"
	"github.com/dalemusser/usergrid/health"
	"github.com/dalemusser/usergrid/internal/api"
	"github.com/dalemusser/usergrid/internal/cache"
	"github.com/dalemusser/usergrid/internal/columns"
	"github.com/dalemusser/usergrid/internal/dataset"
	"github.com/dalemusser/usergrid/internal/lookup"
	"github.com/dalemusser/usergrid/internal/optionstore"
	"github.com/dalemusser/usergrid/internal/stream"
	"github.com/dalemusser/usergrid/internal/suggest"
	"github.com/dalemusser/usergrid/internal/userstore"
	"github.com/dalemusser/usergrid/metrics"
	"github.com/dalemusser/usergrid/router"
	"github.com/dalemusser/usergrid/version"
	"go.uber.org/zap"
)

// janitorInterval is how often idle sessions and expired cache entries
// are swept.
const janitorInterval = time.Minute

// DBDeps are the backends ConnectDB opens.
type DBDeps struct {
	Users    *userstore.Store
	Cache    cache.Cache
	Sessions *optionstore.Registry
	Dataset  *dataset.Config
	Lookups  *lookup.Cached

	codes       lookup.Static
	stopJanitor context.CancelFunc
	janitorDone chan struct{}
}

// ConnectDB opens SQLite, the lookup cache and the session registry, and
// loads the dataset definition.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	ds, err := loadDataset(appCfg.DatasetFile)
	if err != nil {
		return DBDeps{}, err
	}

	db, err := userstore.Open(ctx, appCfg.DBPath, userstore.DefaultOptions(), coreCfg.DBConnectTimeout)
	if err != nil {
		return DBDeps{}, err
	}
	logger.Info("sqlite opened", zap.String("path", appCfg.DBPath))

	var c cache.Cache
	if appCfg.RedisAddr != "" {
		c, err = cache.DialRedis(ctx, cache.RedisConfig{
			Addr:     appCfg.RedisAddr,
			Password: appCfg.RedisPassword,
			DB:       appCfg.RedisDB,
			Prefix:   "usergrid:",
		})
		if err != nil {
			db.Close()
			return DBDeps{}, err
		}
		logger.Info("redis lookup cache connected", zap.String("addr", appCfg.RedisAddr))
	} else {
		c = cache.NewMemory()
	}

	codes := lookup.DefaultCodes()
	deps := DBDeps{
		Users:    userstore.New(db, logger),
		Cache:    c,
		Sessions: optionstore.NewRegistry(appCfg.SessionTTL, logger),
		Dataset:  ds,
		Lookups:  lookup.NewCached(codes, c, appCfg.LookupCacheTTL, logger),
		codes:    codes,
	}
	deps.Sessions.SetMaxSessions(appCfg.MaxSessions)
	deps.startJanitor(logger)
	return deps, nil
}

func loadDataset(path string) (*dataset.Config, error) {
	if path == "" {
		return dataset.Default()
	}
	return dataset.Load(path, dataset.DefaultRules())
}

// startJanitor sweeps idle sessions, and expired entries of an in-process
// cache, until Shutdown.
func (d *DBDeps) startJanitor(logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	d.stopJanitor = cancel
	d.janitorDone = make(chan struct{})

	mem, _ := d.Cache.(*cache.Memory)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.Sessions.Run(ctx, janitorInterval)
	}()
	if mem != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t := time.NewTicker(janitorInterval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					if n := mem.Purge(); n > 0 {
						logger.Debug("lookup cache purged", zap.Int("expired", n))
					}
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(d.janitorDone)
	}()
}

// EnsureSchema creates the users table and seeds demo rows into an empty
// database. File databases seed under a lock next to the file. Cached
// copies of the built-in code lists are dropped, since a shared cache may
// hold lists from an older build.
func EnsureSchema(ctx context.Context, _ *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := deps.Users.EnsureSchema(ctx); err != nil {
		return err
	}
	for _, code := range deps.codes.Codes() {
		if err := deps.Lookups.Invalidate(ctx, code); err != nil {
			logger.Warn("lookup cache entry not cleared", zap.String("code", code), zap.Error(err))
		}
	}
	if !appCfg.SeedDemoData {
		return nil
	}
	lockPath := ""
	if appCfg.DBPath != ":memory:" {
		lockPath = appCfg.DBPath + ".lock"
	}
	_, err := deps.Users.Seed(ctx, lockPath, userstore.DemoUsers())
	return err
}

// BuildHandler assembles the router with the API, health, version and
// metrics routes.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	r := router.New(coreCfg, logger)

	socket := stream.DefaultWSConfig()
	socket.OriginPatterns = originHosts(coreCfg)

	h := api.New(api.Deps{
		Dataset:  deps.Dataset,
		Columns:  columns.Default(),
		Users:    deps.Users,
		Lookups:  deps.Lookups,
		Sessions: deps.Sessions,
		Suggest:  suggest.NewHandler(appCfg.EmailSuffixes, logger),
		Locale:   dataset.ParseLocale(appCfg.DefaultLocale),
		SSE:      stream.DefaultConfig(),
		Socket:   socket,
		Logger:   logger,
	})
	h.Mount(r)

	health.Mount(r, map[string]health.Check{
		"db":    deps.Users.Ping,
		"cache": deps.Cache.Ping,
	}, logger)
	version.Mount(r)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	logger.Info("routes mounted",
		zap.String("dataset", deps.Dataset.Name),
		zap.Strings("email_suffixes", appCfg.EmailSuffixes),
	)
	return r, nil
}

// originHosts turns the CORS origins into websocket origin patterns, which
// match on host only.
func originHosts(coreCfg *config.CoreConfig) []string {
	if !coreCfg.CORS.EnableCORS {
		return nil
	}
	var hosts []string
	for _, o := range coreCfg.CORS.CORSAllowedOrigins {
		if o == "*" {
			hosts = append(hosts, "*")
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}

// Shutdown stops the janitor and closes the cache and database.
func Shutdown(ctx context.Context, deps DBDeps, logger *zap.Logger) error {
	logger.Info("closing option sessions", zap.Int("sessions", deps.Sessions.Len()))
	if deps.stopJanitor != nil {
		deps.stopJanitor()
		select {
		case <-deps.janitorDone:
		case <-ctx.Done():
			logger.Warn("janitor did not stop before shutdown deadline")
		}
	}
	return errors.Join(deps.Cache.Close(), deps.Users.Close())
}

// Hooks wires usergrid into app.Run.
var Hooks = app.Hooks[AppConfig, DBDeps]{
	Name:         "usergrid",
	LoadConfig:   LoadConfig,
	ConnectDB:    ConnectDB,
	EnsureSchema: EnsureSchema,
	BuildHandler: BuildHandler,
	Shutdown:     Shutdown,
}
