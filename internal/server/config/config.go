// Package config handles configuration for the nosuite server: defaults,
// a JSON file overlay, NOSUITE_* environment variables and command-line flags,
// applied in that order.
package config

import (
	"time"
)

// Config holds runtime settings for the server.
//
// Secrets (AdminVerification, LegacyIV, S3 credentials) are expected to come
// from the environment or a root-only config file, never from flags in
// production.
type Config struct {
	HTTPAddr   string
	HealthAddr string // gRPC health endpoint; empty disables it
	LogFormat  string
	LogLevel   string

	UsersRoot        string
	AuthServer       string // hostname of the sign-in origin
	AuthorizedDomain string // every app origin must be this domain or a subdomain

	AdminDeviceID     string
	AdminVerification string // hex ciphertext of AdminDeviceID under the master key
	LegacyIV          string // hex; enables reading fixed-IV files

	PlaintextAccounts []string
	DemoAccount       string
	TemplateAccount   string

	DatabaseDSN string // empty: allow-lists are read from JSON files

	IdentityTokenTTL     time.Duration
	AppTokenTTL          time.Duration
	DemoIdentityTokenTTL time.Duration
	DemoAppTokenTTL      time.Duration
	EnforceDeviceBinding bool

	StorageWorkers  int
	TempFileTTL     time.Duration
	MaxMessageBytes int64

	S3Bucket       string // empty disables replication
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string
	S3Prefix       string
}

// PlaintextEmails returns the plaintext accounts plus the demo and template
// accounts, which are always stored unencrypted.
func (c *Config) PlaintextEmails() []string {
	out := make([]string, 0, len(c.PlaintextAccounts)+2)
	out = append(out, c.PlaintextAccounts...)
	return append(out, c.DemoAccount, c.TemplateAccount)
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8003"
	c.HealthAddr = ":8004"
	c.LogFormat = "json"
	c.LogLevel = "info"

	c.UsersRoot = "users"
	c.AuthServer = "nosuite.ngwy.fr"
	c.AuthorizedDomain = "ngwy.fr"

	c.PlaintextAccounts = []string{"demo@nosuite.fr", "template@nosuite.fr"}
	c.DemoAccount = "demo@nosuite.fr"
	c.TemplateAccount = "template@nosuite.fr"

	c.IdentityTokenTTL = 90 * 24 * time.Hour
	c.AppTokenTTL = 7 * 24 * time.Hour
	c.DemoIdentityTokenTTL = time.Minute
	c.DemoAppTokenTTL = 10 * time.Minute
	c.EnforceDeviceBinding = true

	c.StorageWorkers = 16
	c.TempFileTTL = 24 * time.Hour
	c.MaxMessageBytes = 8 << 20

	c.S3Region = "us-east-1"
	c.S3Prefix = "users"
}

// LoadConfig builds a Config from defaults, then the JSON file named by -c,
// then the environment, then flags. Later sources win.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
