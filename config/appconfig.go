// config/appconfig.go
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// AppKey defines a configuration key for an application.
// Apps register their config keys using this type, and the config package handles
// loading from config files, environment variables, and command-line flags.
type AppKey struct {
	// Name is the key name (e.g., "db_path", "redis_addr").
	// This is used as-is for config files and CLI flags.
	// For env vars, it's uppercased and prefixed (e.g., USERGRID_DB_PATH).
	Name string

	// Default is the default value if not set elsewhere.
	// Supported types: string, int, int64, bool, []string.
	Default any

	// Desc is a short description for --help output.
	Desc string
}

// AppConfigValues holds the loaded app configuration values.
// Keys are the AppKey.Name values, values are the loaded configuration.
type AppConfigValues map[string]any

// String returns a string value or empty string if not found.
func (a AppConfigValues) String(key string) string {
	return cast.ToString(a[key])
}

// Int returns an int value or 0 if not found/unparseable.
// Env vars arrive as strings and TOML integers as int64; both are accepted.
func (a AppConfigValues) Int(key string) int {
	return cast.ToInt(a[key])
}

// Int64 returns an int64 value or 0 if not found/unparseable.
func (a AppConfigValues) Int64(key string) int64 {
	return cast.ToInt64(a[key])
}

// Bool returns a bool value or false if not found/unparseable.
func (a AppConfigValues) Bool(key string) bool {
	return cast.ToBool(a[key])
}

// StringSlice returns a []string value or nil if not found/wrong type.
func (a AppConfigValues) StringSlice(key string) []string {
	switch v := a[key].(type) {
	case []string:
		return v
	case []any:
		return cast.ToStringSlice(v)
	}
	return nil
}

// Duration parses a duration value from the config.
// Accepts:
//   - Duration strings: "10m", "1h30m", "90s", "2h"
//   - Numeric values: interpreted as seconds (e.g., 600 = 10 minutes)
//   - Plain numeric strings: "600" = 600 seconds
//
// Returns the default value if the key is not found, empty, or invalid.
// Use this for timeout, expiry, and interval configurations.
func (a AppConfigValues) Duration(key string, def time.Duration) time.Duration {
	raw := a[key]
	if raw == nil {
		return def
	}
	dur, err := parseDurationFlexible(raw, def)
	if err != nil {
		return def
	}
	return dur
}

// loadAppConfig loads app-specific configuration using the same precedence
// as the core config: flags > env > config files > defaults.
//
// The envPrefix is used for environment variables (e.g., "USERGRID" means
// the key "db_path" maps to env var "USERGRID_DB_PATH").
//
// fs must already be parsed and config files loaded into v.
func loadAppConfig(logger *zap.Logger, v *viper.Viper, fs *pflag.FlagSet, envPrefix string, keys []AppKey) AppConfigValues {
	if len(keys) == 0 {
		return make(AppConfigValues)
	}

	appV := viper.New()
	appV.SetEnvPrefix(envPrefix)
	appV.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	appV.AutomaticEnv()

	for _, key := range keys {
		appV.SetDefault(key.Name, key.Default)
		_ = appV.BindEnv(key.Name)

		// config files are loaded into the core viper instance
		if v.IsSet(key.Name) {
			appV.Set(key.Name, v.Get(key.Name))
		}

		if f := fs.Lookup(key.Name); f != nil && f.Changed {
			_ = appV.BindPFlag(key.Name, f)
		}
	}

	result := make(AppConfigValues, len(keys))
	for _, key := range keys {
		val := appV.Get(key.Name)
		if _, isSlice := key.Default.([]string); isSlice {
			// env vars and flags carry lists as JSON strings
			if arr, err := coerceStringList(val); err == nil && arr != nil {
				val = arr
			} else if err != nil && logger != nil {
				logger.Warn("app config list key is not a JSON array; using default",
					zap.String("key", key.Name), zap.Error(err))
				val = key.Default
			}
		}
		result[key.Name] = val
	}

	if logger != nil {
		fields := make([]zap.Field, 0, len(keys))
		for _, key := range keys {
			if sensitive(key.Name) {
				fields = append(fields, zap.String(key.Name, "[REDACTED]"))
				continue
			}
			fields = append(fields, zap.Any(key.Name, result[key.Name]))
		}
		logger.Info("app config loaded", fields...)
	}

	return result
}

// sensitive reports whether a key's value must not be logged.
func sensitive(name string) bool {
	name = strings.ToLower(name)
	return slices.ContainsFunc([]string{"password", "secret", "token", "apikey", "api_key"}, func(w string) bool {
		return strings.Contains(name, w)
	})
}

// registerAppFlags registers command-line flags for app config keys.
// Must be called before fs.Parse().
func registerAppFlags(fs *pflag.FlagSet, keys []AppKey) error {
	for _, key := range keys {
		if fs.Lookup(key.Name) != nil {
			return fmt.Errorf("config key %q conflicts with existing flag", key.Name)
		}

		switch d := key.Default.(type) {
		case string:
			fs.String(key.Name, d, key.Desc)
		case int:
			fs.Int(key.Name, d, key.Desc)
		case int64:
			fs.Int64(key.Name, d, key.Desc)
		case bool:
			fs.Bool(key.Name, d, key.Desc)
		case []string:
			fs.String(key.Name, "", key.Desc+" (JSON array)")
		default:
			return fmt.Errorf("config key %q has unsupported default type %T", key.Name, key.Default)
		}
	}
	return nil
}
