package config

import "time"

// Config holds runtime settings for the certhub CLI.
//
// Units: all intervals are time.Duration. On the command line the request
// timeout is given in whole seconds.
type Config struct {
	APIBaseURL            string        `env:"API_BASE"`
	DatabasePath          string        `env:"DB_PATH"`
	RequestTimeout        time.Duration `env:"REQUEST_TIMEOUT"`
	RefreshMargin         time.Duration `env:"REFRESH_MARGIN"`
	FallbackCheckInterval time.Duration `env:"FALLBACK_CHECK_INTERVAL"`
	LogoutTimeout         time.Duration `env:"LOGOUT_TIMEOUT"`
	RestoreDegraded       bool          `env:"RESTORE_DEGRADED"`
	LogLevel              string        `env:"LOG_LEVEL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:3000/api/v1"
	c.DatabasePath = "certhub/session.db"
	c.RequestTimeout = 15 * time.Second
	c.RefreshMargin = 5 * time.Minute
	c.FallbackCheckInterval = 5 * time.Minute
	c.LogoutTimeout = 5 * time.Second
	c.RestoreDegraded = true
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	parseFlags(cfg)
	return cfg, nil
}
