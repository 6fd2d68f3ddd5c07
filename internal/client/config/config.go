package config

import "time"

// Config holds runtime settings for the nosuite admin CLI.
//
// Fields:
//   - ServerURL: base URL of the nosuite HTTP server.
//   - AdminDeviceID: identifier of the admin device, matched by the server.
//   - Timeout: per-request timeout.
type Config struct {
	ServerURL     string
	AdminDeviceID string
	Timeout       time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8003"
	c.Timeout = 30 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
