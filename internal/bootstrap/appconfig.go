package bootstrap

import (
	"fmt"
	"os"
	"time"

	"github.com/dalemusser/usergrid/config"
	"github.com/dalemusser/usergrid/internal/optionstore"
	"github.com/dalemusser/usergrid/internal/suggest"
	"go.uber.org/zap"
)

// AppConfig holds the service settings beyond the core config.
type AppConfig struct {
	DBPath         string
	SeedDemoData   bool
	EmailSuffixes  []string
	DatasetFile    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	LookupCacheTTL time.Duration
	SessionTTL     time.Duration
	MaxSessions    int
	DefaultLocale  string
}

// AppKeys are the service's config keys. Each is settable as a flag, as
// USERGRID_<KEY> or in config.yaml.
var AppKeys = []config.AppKey{
	{Name: "db_path", Default: "usergrid.db", Desc: "SQLite database path (:memory: for a throwaway database)"},
	{Name: "seed_demo_data", Default: true, Desc: "Insert demo users into an empty database"},
	{Name: "email_suffixes", Default: suggest.DefaultSuffixes, Desc: "Domains offered by email autocomplete, in order"},
	{Name: "dataset_file", Default: "", Desc: "YAML dataset definition replacing the built-in user dataset"},
	{Name: "redis_addr", Default: "", Desc: "Redis address for the lookup cache; empty uses an in-process cache"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},
	{Name: "lookup_cache_ttl", Default: "10m", Desc: "How long lookup code lists are cached"},
	{Name: "session_ttl", Default: "30m", Desc: "Idle time after which an editor session is dropped"},
	{Name: "max_sessions", Default: optionstore.DefaultMaxSessions, Desc: "Live editor sessions kept at once (0 for no limit)"},
	{Name: "default_locale", Default: "zh-CN", Desc: "Locale for labels when the client states none"},
}

// LoadConfig loads the core and service config from os.Args.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, vals, err := config.LoadWithAppConfig(logger, os.Args[1:], "", AppKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}
	appCfg, err := appConfigFrom(vals)
	if err != nil {
		return nil, AppConfig{}, err
	}
	return coreCfg, appCfg, nil
}

func appConfigFrom(vals config.AppConfigValues) (AppConfig, error) {
	cfg := AppConfig{
		DBPath:         vals.String("db_path"),
		SeedDemoData:   vals.Bool("seed_demo_data"),
		EmailSuffixes:  vals.StringSlice("email_suffixes"),
		DatasetFile:    vals.String("dataset_file"),
		RedisAddr:      vals.String("redis_addr"),
		RedisPassword:  vals.String("redis_password"),
		RedisDB:        vals.Int("redis_db"),
		LookupCacheTTL: vals.Duration("lookup_cache_ttl", 10*time.Minute),
		SessionTTL:     vals.Duration("session_ttl", optionstore.DefaultSessionTTL),
		MaxSessions:    vals.Int("max_sessions"),
		DefaultLocale:  vals.String("default_locale"),
	}
	if cfg.DBPath == "" {
		return cfg, fmt.Errorf("db_path must not be empty")
	}
	if cfg.EmailSuffixes == nil {
		cfg.EmailSuffixes = []string{}
	}
	return cfg, nil
}
