// Package config loads client and server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the terminal client configuration.
type Config struct {
	APIURL         string        `env:"ARCANA_API_URL"         envDefault:"https://api.arcana.cards"`
	SiteURL        string        `env:"ARCANA_SITE_URL"`
	Token          string        `env:"ARCANA_TOKEN"`
	Home           string        `env:"ARCANA_HOME"`
	LogLevel       string        `env:"ARCANA_LOG_LEVEL"       envDefault:"info"`
	TermsVersion   string        `env:"ARCANA_TERMS_VERSION"   envDefault:"2024-06-01"`
	CacheMB        int           `env:"ARCANA_CACHE_MB"        envDefault:"4"`
	CacheTTL       time.Duration `env:"ARCANA_CACHE_TTL"       envDefault:"10m"`
	PreloadWorkers int           `env:"ARCANA_PRELOAD_WORKERS" envDefault:"6"`
	PreloadTimeout time.Duration `env:"ARCANA_PRELOAD_TIMEOUT" envDefault:"10s"`
	PreloadStrict  bool          `env:"ARCANA_PRELOAD_STRICT"`
	ApproveURL     string        `env:"ARCANA_PAYPAL_APPROVE_URL" envDefault:"https://www.paypal.com/checkoutnow"`
}

// Load parses ARCANA_* variables and fills derived defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.Home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("get home dir: %w", err)
		}
		cfg.Home = filepath.Join(home, ".arcana")
	}
	if cfg.SiteURL == "" {
		cfg.SiteURL = siteFromAPI(cfg.APIURL)
	}
	return cfg, nil
}

// siteFromAPI drops a leading "api." from the API host.
func siteFromAPI(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return apiURL
	}
	host, port := u.Hostname(), u.Port()
	if strings.HasPrefix(host, "api.") {
		u.Host = strings.TrimPrefix(host, "api.")
		if port != "" {
			u.Host += ":" + port
		}
	}
	return u.String()
}

// TokenPath is where login stores the bearer credential.
func (c Config) TokenPath() string { return filepath.Join(c.Home, "token") }

// DBPath is the local state database.
func (c Config) DBPath() string { return filepath.Join(c.Home, "state.db") }

// LogPath is the client log file.
func (c Config) LogPath() string { return filepath.Join(c.Home, "arcana.log") }

// ReadToken returns the credential with precedence env > file > empty.
func (c Config) ReadToken() string {
	if c.Token != "" {
		return c.Token
	}
	data, err := os.ReadFile(c.TokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SaveToken writes the credential file with owner-only permissions.
func (c Config) SaveToken(tok string) error {
	if err := os.MkdirAll(c.Home, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", c.Home, err)
	}
	if err := os.WriteFile(c.TokenPath(), []byte(tok), 0o600); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// RemoveToken deletes the credential file. It reports false when there was
// nothing to remove.
func (c Config) RemoveToken() (bool, error) {
	err := os.Remove(c.TokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remove token: %w", err)
	}
	return true, nil
}

// Server is the development backend configuration.
type Server struct {
	Addr            string        `env:"ARCANAD_ADDR"             envDefault:"127.0.0.1:8787"`
	ImageBase       string        `env:"ARCANAD_IMAGE_BASE"       envDefault:"/static/cards"`
	Metrics         bool          `env:"ARCANAD_METRICS"          envDefault:"true"`
	LogLevel        string        `env:"ARCANAD_LOG_LEVEL"        envDefault:"info"`
	ShutdownTimeout time.Duration `env:"ARCANAD_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	DevToken        string        `env:"ARCANAD_DEV_TOKEN"`
}

// LoadServer parses ARCANAD_* variables.
func LoadServer() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
