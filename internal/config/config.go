package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all configuration for garantias-api.
// Values come from an optional YAML file with environment variable overrides.
// Secrets (DSN, token secret) only come from the environment.
type Config struct {
	Env     string `yaml:"env" env:"GARANTIAS_ENV" env-default:"local"`
	Version string `yaml:"-"`

	HTTP     HTTPConfig     `yaml:"http"`
	GRPCAddr string         `yaml:"grpc_addr" env:"GARANTIAS_GRPC_ADDR" env-default:":9090"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Audit    AuditConfig    `yaml:"audit"`
}

// HTTPConfig configures the REST listener and its middleware.
type HTTPConfig struct {
	Addr              string        `yaml:"addr" env:"GARANTIAS_HTTP_ADDR" env-default:":8080"`
	ReadTimeout       time.Duration `yaml:"read_timeout" env:"GARANTIAS_HTTP_READ_TIMEOUT" env-default:"15s"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"GARANTIAS_HTTP_READ_HEADER_TIMEOUT" env-default:"15s"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env:"GARANTIAS_HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" env:"GARANTIAS_HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"GARANTIAS_HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" env:"GARANTIAS_HTTP_MAX_BODY_BYTES" env-default:"1048576"`
	RatePerSecond     float64       `yaml:"rate_per_second" env:"GARANTIAS_HTTP_RATE_PER_SECOND" env-default:"20"`
	RateBurst         int           `yaml:"rate_burst" env:"GARANTIAS_HTTP_RATE_BURST" env-default:"40"`
	CORSOrigins       []string      `yaml:"cors_origins" env:"GARANTIAS_HTTP_CORS_ORIGINS" env-separator:","`
	// TrustedProxies lists CIDRs or single addresses of reverse proxies allowed to set
	// X-Forwarded-For. Empty means the connecting peer is always the client.
	TrustedProxies []string `yaml:"trusted_proxies" env:"GARANTIAS_HTTP_TRUSTED_PROXIES" env-separator:","`
}

// ProxyPrefixes parses TrustedProxies.
func (h HTTPConfig) ProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(h.TrustedProxies))
	for _, s := range h.TrustedProxies {
		if p, err := netip.ParsePrefix(s); err == nil {
			out = append(out, p.Masked())
			continue
		}
		ip, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: not an address or CIDR", s)
		}
		ip = ip.Unmap()
		out = append(out, netip.PrefixFrom(ip, ip.BitLen()))
	}
	return out, nil
}

// DatabaseConfig holds PostgreSQL settings. An empty DSN selects the in-memory store.
type DatabaseConfig struct {
	DSN             string        `yaml:"-" env:"GARANTIAS_PG_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"GARANTIAS_PG_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"GARANTIAS_PG_MAX_IDLE_CONNS" env-default:"10"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"GARANTIAS_PG_CONN_MAX_LIFETIME" env-default:"30m"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"GARANTIAS_PG_CONN_MAX_IDLE_TIME" env-default:"5m"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Secret    string        `yaml:"-" env:"GARANTIAS_AUTH_SECRET"`
	Issuer    string        `yaml:"issuer" env:"GARANTIAS_AUTH_ISSUER" env-default:"garantias"`
	AccessTTL time.Duration `yaml:"access_ttl" env:"GARANTIAS_AUTH_ACCESS_TTL" env-default:"1h"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"GARANTIAS_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"GARANTIAS_LOG_FORMAT" env-default:"json"`
}

type AuditConfig struct {
	// DefaultLimit applies when a listing request carries no limit.
	DefaultLimit int `yaml:"default_limit" env:"GARANTIAS_AUDIT_DEFAULT_LIMIT" env-default:"500"`
}

const (
	maxAuditLimit = 500
	// LocalSecret signs tokens when no database and no secret are configured.
	LocalSecret = "garantias-local-dev-secret"
)

// Load reads .env (if present), then path (if it exists), then the environment.
func Load(path, version string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{Version: version}
	var err error
	if path != "" && fileExists(path) {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg.HTTP.CORSOrigins = trimAll(cfg.HTTP.CORSOrigins)
	cfg.HTTP.TrustedProxies = trimAll(cfg.HTTP.TrustedProxies)
	if cfg.Local() && cfg.Auth.Secret == "" {
		cfg.Auth.Secret = LocalSecret
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.DSN != "" && c.Auth.Secret == "" {
		errs = append(errs, errors.New("GARANTIAS_AUTH_SECRET is required when a database is configured"))
	}
	if c.HTTP.RatePerSecond <= 0 || c.HTTP.RateBurst <= 0 {
		errs = append(errs, errors.New("rate limit must be positive"))
	}
	if _, err := c.HTTP.ProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max body bytes must be positive"))
	}
	if c.Audit.DefaultLimit < 1 || c.Audit.DefaultLimit > maxAuditLimit {
		errs = append(errs, fmt.Errorf("audit default limit must be within 1..%d", maxAuditLimit))
	}
	if c.Auth.AccessTTL <= 0 {
		errs = append(errs, errors.New("access ttl must be positive"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Local reports whether the server runs without a database.
func (c *Config) Local() bool {
	return c.Database.DSN == ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
