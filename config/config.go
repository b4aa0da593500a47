// config/config.go
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is the prefix for core environment variables (USERGRID_HTTP_PORT, ...).
const EnvPrefix = "USERGRID"

// HTTPConfig groups HTTP/HTTPS port, protocol and server timeout settings.
type HTTPConfig struct {
	HTTPPort  int  `mapstructure:"http_port"`
	HTTPSPort int  `mapstructure:"https_port"`
	UseHTTPS  bool `mapstructure:"use_https"`

	// Timeouts are parsed separately with parseDurationFlexible.
	ReadTimeout       time.Duration `mapstructure:"-"`
	ReadHeaderTimeout time.Duration `mapstructure:"-"`
	WriteTimeout      time.Duration `mapstructure:"-"`
	IdleTimeout       time.Duration `mapstructure:"-"`
	ShutdownTimeout   time.Duration `mapstructure:"-"`
}

// TLSConfig groups TLS / ACME settings. Only the http-01 challenge is supported.
type TLSConfig struct {
	CertFile            string `mapstructure:"cert_file"`
	KeyFile             string `mapstructure:"key_file"`
	UseLetsEncrypt      bool   `mapstructure:"use_lets_encrypt"`
	LetsEncryptEmail    string `mapstructure:"lets_encrypt_email"`
	LetsEncryptCacheDir string `mapstructure:"lets_encrypt_cache_dir"`
	Domain              string `mapstructure:"domain"`
}

// CORSConfig groups all CORS behavior and lists.
type CORSConfig struct {
	EnableCORS           bool     `mapstructure:"enable_cors"`
	CORSAllowedOrigins   []string `mapstructure:"cors_allowed_origins"`
	CORSAllowedMethods   []string `mapstructure:"cors_allowed_methods"`
	CORSAllowedHeaders   []string `mapstructure:"cors_allowed_headers"`
	CORSExposedHeaders   []string `mapstructure:"cors_exposed_headers"`
	CORSAllowCredentials bool     `mapstructure:"cors_allow_credentials"`
	CORSMaxAge           int      `mapstructure:"cors_max_age"`
}

// CoreConfig holds the process-level configuration of the usergrid server.
type CoreConfig struct {
	// runtime
	Env      string `mapstructure:"env"`       // "dev" | "prod"
	LogLevel string `mapstructure:"log_level"` // debug, info, warn, error …
	LogFile  string `mapstructure:"log_file"`  // optional rotated log file

	// grouped config
	HTTP HTTPConfig `mapstructure:",squash"`
	TLS  TLSConfig  `mapstructure:",squash"`
	CORS CORSConfig `mapstructure:",squash"`

	// DB-related timeouts (no paths here; those are app keys)
	DBConnectTimeout time.Duration `mapstructure:"-"`
	IndexBootTimeout time.Duration `mapstructure:"-"`

	// HTTP behavior
	MaxRequestBodyBytes int64 `mapstructure:"max_request_body_bytes"`

	// misc
	EnableCompression bool `mapstructure:"enable_compression"`
	CompressionLevel  int  `mapstructure:"compression_level"`
}

// Dump returns a pretty JSON string of the config for debugging.
func (c CoreConfig) Dump() string {
	b, _ := json.MarshalIndent(c, "", "  ")
	return string(b)
}

// Load is LoadWithAppConfig without app keys.
func Load(logger *zap.Logger, args []string) (*CoreConfig, error) {
	cfg, _, err := LoadWithAppConfig(logger, args, "", nil)
	return cfg, err
}

// LoadWithAppConfig merges defaults → config.* file(s) → env vars → explicit
// flags into a CoreConfig and the app's own keys.
// Final precedence (highest wins): flags(explicit) > env > config > defaults.
//
// args are the command-line arguments without the binary name. appPrefix is
// the env prefix for app keys; when empty EnvPrefix is used.
func LoadWithAppConfig(logger *zap.Logger, args []string, appPrefix string, keys []AppKey) (*CoreConfig, AppConfigValues, error) {
	// 0) Optionally load .env (real env still wins over .env)
	if err := godotenv.Load(); err == nil && logger != nil {
		logger.Info("Loaded .env file")
	}

	// 1) Flags (only *explicitly set* flags override)
	fs := pflag.NewFlagSet("usergrid", pflag.ContinueOnError)
	registerCoreFlags(fs)
	if err := registerAppFlags(fs, keys); err != nil {
		return nil, nil, err
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("parse flags: %w", err)
	}

	// 2) Viper + env
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, k := range allKeys() {
		_ = v.BindEnv(k)
	}

	// 3) Optional config.* files (yaml|yml|json|toml)
	mergeConfigFiles(logger, v)

	// 4) Defaults (lowest precedence)
	setDefaults(v)

	// 5) Explicit flags (highest precedence)
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed && isCoreKey(f.Name) {
			_ = v.BindPFlag(f.Name, f)
		}
	})

	// 6) Normalize list keys (accept JSON strings → []string)
	if err := normalizeListKeys(v,
		"cors_allowed_origins",
		"cors_allowed_methods",
		"cors_allowed_headers",
		"cors_exposed_headers",
	); err != nil {
		return nil, nil, err
	}

	// 7) Build struct
	var cfg CoreConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unable to decode core config: %w", err)
	}
	cfg.TLS.Domain = strings.TrimSpace(cfg.TLS.Domain)

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"db_connect_timeout", 10 * time.Second, &cfg.DBConnectTimeout},
		{"index_boot_timeout", 120 * time.Second, &cfg.IndexBootTimeout},
		{"read_timeout", 15 * time.Second, &cfg.HTTP.ReadTimeout},
		{"read_header_timeout", 10 * time.Second, &cfg.HTTP.ReadHeaderTimeout},
		{"write_timeout", 60 * time.Second, &cfg.HTTP.WriteTimeout},
		{"idle_timeout", 120 * time.Second, &cfg.HTTP.IdleTimeout},
		{"shutdown_timeout", 15 * time.Second, &cfg.HTTP.ShutdownTimeout},
	}
	for _, d := range durations {
		dur, err := parseDurationFlexible(v.Get(d.key), d.def)
		if err != nil && logger != nil {
			logger.Warn("invalid duration; using default",
				zap.String("key", d.key), zap.Any("value", v.Get(d.key)),
				zap.Duration("default", d.def), zap.Error(err))
		}
		*d.dst = dur
	}

	// 8) Validate
	if err := validateCoreConfig(cfg); err != nil {
		return nil, nil, err
	}

	if appPrefix == "" {
		appPrefix = EnvPrefix
	}
	appVals := loadAppConfig(logger, v, fs, appPrefix, keys)

	return &cfg, appVals, nil
}

func registerCoreFlags(fs *pflag.FlagSet) {
	fs.String("env", "dev", `Runtime environment "dev"|"prod"`)
	fs.String("log_level", "debug", "Log level")
	fs.String("log_file", "", "Also write logs to this file (rotated)")

	fs.Int("http_port", 8080, "HTTP port")
	fs.Int("https_port", 443, "HTTPS port")
	fs.Bool("use_https", false, "Serve HTTPS")

	// TLS / Let's Encrypt
	fs.Bool("use_lets_encrypt", false, "Use Let's Encrypt (http-01)")
	fs.String("lets_encrypt_email", "", "ACME account e-mail")
	fs.String("lets_encrypt_cache_dir", "letsencrypt-cache", "ACME cache dir")
	fs.String("cert_file", "", "TLS cert file (manual TLS)")
	fs.String("key_file", "", "TLS key file  (manual TLS)")
	fs.String("domain", "", "Domain for TLS or ACME")

	// Timeouts
	fs.String("index_boot_timeout", "120s", "Startup timeout for schema bootstrap (e.g., \"90s\", \"2m\")")
	fs.String("db_connect_timeout", "10s", "Startup timeout for DB connection (e.g., \"10s\", \"30s\")")
	fs.String("read_timeout", "15s", "HTTP server read timeout")
	fs.String("read_header_timeout", "10s", "HTTP server read header timeout")
	fs.String("write_timeout", "60s", "HTTP server write timeout")
	fs.String("idle_timeout", "120s", "HTTP server idle timeout")
	fs.String("shutdown_timeout", "15s", "Graceful shutdown window")

	// misc / CORS
	fs.Bool("enable_compression", true, "Enable HTTP compression")
	fs.Int("compression_level", 5, "Compression level 1-9")
	fs.Bool("enable_cors", false, "Enable CORS")

	// CORS lists as JSON strings or arrays
	fs.String("cors_allowed_origins", "", `JSON array of origins, e.g. '["https://a.example","https://b.example"]'`)
	fs.String("cors_allowed_methods", "", `JSON array of methods, e.g. '["GET","POST"]'`)
	fs.String("cors_allowed_headers", "", `JSON array of headers, e.g. '["Accept","Authorization"]'`)
	fs.String("cors_exposed_headers", "", `JSON array of headers, e.g. '["Link"]'`)
	fs.Bool("cors_allow_credentials", false, "CORS: allow credentials")
	fs.Int("cors_max_age", 0, "CORS: max age seconds (0 disables cache)")

	fs.Int64("max_request_body_bytes", 2<<20, "Max HTTP request body size in bytes (0 = unlimited)")
}

func mergeConfigFiles(logger *zap.Logger, v *viper.Viper) {
	for _, ext := range [...]string{"yaml", "yml", "json", "toml"} {
		file := "config." + ext
		if _, err := os.Stat(file); err != nil {
			continue
		}
		b, err := os.ReadFile(file)
		if err != nil {
			if logger != nil {
				logger.Warn("cannot read config file", zap.String("file", file), zap.Error(err))
			}
			continue
		}
		v.SetConfigType(ext)
		if err := v.MergeConfig(bytes.NewReader(b)); err != nil {
			if logger != nil {
				logger.Warn("cannot decode config file", zap.String("file", file), zap.Error(err))
			}
			continue
		}
		if logger != nil {
			logger.Info("Loaded config file", zap.String("file", file))
		}
	}
}

func allKeys() []string {
	return []string{
		"env", "log_level", "log_file",
		"http_port", "https_port", "use_https",
		"use_lets_encrypt", "lets_encrypt_email", "lets_encrypt_cache_dir",
		"cert_file", "key_file", "domain",
		"db_connect_timeout", "index_boot_timeout",
		"read_timeout", "read_header_timeout", "write_timeout", "idle_timeout", "shutdown_timeout",
		"enable_compression", "compression_level",
		"enable_cors",
		"cors_allowed_origins", "cors_allowed_methods", "cors_allowed_headers",
		"cors_exposed_headers", "cors_allow_credentials", "cors_max_age",
		"max_request_body_bytes",
	}
}

func isCoreKey(name string) bool {
	for _, k := range allKeys() {
		if k == name {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "debug")
	v.SetDefault("log_file", "")

	v.SetDefault("http_port", 8080)
	v.SetDefault("https_port", 443)
	v.SetDefault("use_https", false)

	v.SetDefault("use_lets_encrypt", false)
	v.SetDefault("lets_encrypt_email", "")
	v.SetDefault("lets_encrypt_cache_dir", "letsencrypt-cache")
	v.SetDefault("cert_file", "")
	v.SetDefault("key_file", "")
	v.SetDefault("domain", "")

	v.SetDefault("db_connect_timeout", "10s")
	v.SetDefault("index_boot_timeout", "120s")
	v.SetDefault("read_timeout", "15s")
	v.SetDefault("read_header_timeout", "10s")
	v.SetDefault("write_timeout", "60s")
	v.SetDefault("idle_timeout", "120s")
	v.SetDefault("shutdown_timeout", "15s")

	v.SetDefault("enable_compression", true)
	v.SetDefault("compression_level", 5)

	// Neutral CORS defaults
	v.SetDefault("enable_cors", false)
	v.SetDefault("cors_allowed_origins", []string{})
	v.SetDefault("cors_allowed_methods", []string{})
	v.SetDefault("cors_allowed_headers", []string{})
	v.SetDefault("cors_exposed_headers", []string{})
	v.SetDefault("cors_allow_credentials", false)
	v.SetDefault("cors_max_age", 0)

	v.SetDefault("max_request_body_bytes", int64(2<<20))
}

// normalizeListKeys coerces JSON-string values into []string for the given keys.
func normalizeListKeys(v *viper.Viper, keys ...string) error {
	for _, key := range keys {
		arr, err := coerceStringList(v.Get(key))
		if err != nil {
			return fmt.Errorf("config key %q expects a JSON array string: %w", key, err)
		}
		if arr != nil {
			v.Set(key, arr)
		}
	}
	return nil
}

// coerceStringList returns nil, nil when raw is unset, blank or already a []string.
func coerceStringList(raw any) ([]string, error) {
	switch t := raw.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, nil
		}
		var arr []string
		if err := json.Unmarshal([]byte(s), &arr); err != nil {
			return nil, fmt.Errorf("got %q: %w", s, err)
		}
		return arr, nil
	case []interface{}:
		arr := make([]string, 0, len(t))
		for _, e := range t {
			arr = append(arr, fmt.Sprint(e))
		}
		return arr, nil
	}
	return nil, nil
}

func validateCoreConfig(cfg CoreConfig) error {
	var missing []string
	var invalid []string

	// TLS / ACME consistency
	if cfg.TLS.UseLetsEncrypt && !cfg.HTTP.UseHTTPS {
		invalid = append(invalid, "use_lets_encrypt=true requires use_https=true")
	}
	if cfg.TLS.UseLetsEncrypt && (strings.TrimSpace(cfg.TLS.CertFile) != "" || strings.TrimSpace(cfg.TLS.KeyFile) != "") {
		invalid = append(invalid, "use_lets_encrypt=true cannot be combined with cert_file/key_file")
	}
	if cfg.TLS.UseLetsEncrypt {
		if cfg.TLS.Domain == "" {
			missing = append(missing, "USERGRID_DOMAIN (or --domain) for Let's Encrypt")
		}
		if s := strings.TrimSpace(cfg.TLS.LetsEncryptEmail); s == "" {
			missing = append(missing, "USERGRID_LETS_ENCRYPT_EMAIL (or --lets_encrypt_email)")
		} else if !strings.Contains(s, "@") {
			invalid = append(invalid, "lets_encrypt_email must look like an email address")
		}
	}

	// Manual TLS requirements
	if cfg.HTTP.UseHTTPS && !cfg.TLS.UseLetsEncrypt {
		if strings.TrimSpace(cfg.TLS.CertFile) == "" || strings.TrimSpace(cfg.TLS.KeyFile) == "" {
			missing = append(missing, "USERGRID_CERT_FILE and USERGRID_KEY_FILE (or --cert_file/--key_file) for manual TLS")
		}
	}

	// Port sanity
	if cfg.HTTP.HTTPPort <= 0 || cfg.HTTP.HTTPPort > 65535 {
		invalid = append(invalid, "http_port must be in 1..65535")
	}
	if cfg.HTTP.HTTPSPort <= 0 || cfg.HTTP.HTTPSPort > 65535 {
		invalid = append(invalid, "https_port must be in 1..65535")
	}
	if cfg.HTTP.UseHTTPS {
		if cfg.HTTP.HTTPPort == cfg.HTTP.HTTPSPort {
			invalid = append(invalid, "http_port and https_port cannot be equal when use_https=true")
		}
		if cfg.HTTP.HTTPSPort == 80 {
			invalid = append(invalid, "https_port cannot be 80; port 80 is used by the ACME/redirect server")
		}
	}

	// CORS sanity
	if cfg.CORS.EnableCORS {
		if len(cfg.CORS.CORSAllowedOrigins) == 0 {
			missing = append(missing, "CORS: cors_allowed_origins (JSON array) required when enable_cors=true")
		}
		if len(cfg.CORS.CORSAllowedMethods) == 0 {
			missing = append(missing, "CORS: cors_allowed_methods (JSON array) required when enable_cors=true")
		}
		for _, o := range cfg.CORS.CORSAllowedOrigins {
			if o == "*" && cfg.CORS.CORSAllowCredentials {
				invalid = append(invalid, `CORS: cannot use "*" in cors_allowed_origins when cors_allow_credentials=true`)
				break
			}
		}
		if cfg.CORS.CORSMaxAge < 0 {
			invalid = append(invalid, "CORS: cors_max_age must be >= 0")
		}
	}

	if cfg.EnableCompression && (cfg.CompressionLevel < 1 || cfg.CompressionLevel > 9) {
		invalid = append(invalid, "compression_level must be in 1..9")
	}
	if cfg.MaxRequestBodyBytes < 0 {
		invalid = append(invalid, "max_request_body_bytes must be >= 0")
	}

	if len(missing) == 0 && len(invalid) == 0 {
		return nil
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(invalid, ", "))
	}
	return fmt.Errorf("core configuration errors: %s", strings.Join(parts, " | "))
}
