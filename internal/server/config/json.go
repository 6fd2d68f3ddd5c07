package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/nosuite/internal/flagx"
	"github.com/dmitrijs2005/nosuite/internal/timex"
	"github.com/tidwall/jsonc"
)

// JsonConfig mirrors Config for decoding. Pointer fields tell "absent" from
// "zero" so a partial file only overrides what it names.
type JsonConfig struct {
	HTTPAddr   *string `json:"http_addr"`
	HealthAddr *string `json:"health_addr"`
	LogFormat  *string `json:"log_format"`
	LogLevel   *string `json:"log_level"`

	UsersRoot        *string `json:"users_root"`
	AuthServer       *string `json:"auth_server"`
	AuthorizedDomain *string `json:"authorized_domain"`

	AdminDeviceID     *string `json:"admin_device_id"`
	AdminVerification *string `json:"admin_verification"`
	LegacyIV          *string `json:"legacy_iv"`

	PlaintextAccounts []string `json:"plaintext_accounts"`
	DemoAccount       *string  `json:"demo_account"`
	TemplateAccount   *string  `json:"template_account"`

	DatabaseDSN *string `json:"database_dsn"`

	IdentityTokenTTL     *timex.Duration `json:"identity_token_ttl"`
	AppTokenTTL          *timex.Duration `json:"app_token_ttl"`
	DemoIdentityTokenTTL *timex.Duration `json:"demo_identity_token_ttl"`
	DemoAppTokenTTL      *timex.Duration `json:"demo_app_token_ttl"`
	EnforceDeviceBinding *bool           `json:"enforce_device_binding"`

	StorageWorkers  *int            `json:"storage_workers"`
	TempFileTTL     *timex.Duration `json:"temp_file_ttl"`
	MaxMessageBytes *int64          `json:"max_message_bytes"`

	S3Bucket       *string `json:"s3_bucket"`
	S3Region       *string `json:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint"`
	S3AccessKey    *string `json:"s3_access_key"`
	S3SecretKey    *string `json:"s3_secret_key"`
	S3Prefix       *string `json:"s3_prefix"`
}

// parseJson overlays the file given by -c / -config, if any. The file may
// contain comments and trailing commas. Unreadable or invalid files panic:
// starting with a half-applied config is worse than not starting.
func parseJson(config *Config) {
	path := flagx.ConfigPath()
	if path == "" {
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(jsonc.ToJSON(raw), c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.HealthAddr, c.HealthAddr)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.UsersRoot, c.UsersRoot)
	setString(&config.AuthServer, c.AuthServer)
	setString(&config.AuthorizedDomain, c.AuthorizedDomain)
	setString(&config.AdminDeviceID, c.AdminDeviceID)
	setString(&config.AdminVerification, c.AdminVerification)
	setString(&config.LegacyIV, c.LegacyIV)
	setString(&config.DemoAccount, c.DemoAccount)
	setString(&config.TemplateAccount, c.TemplateAccount)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Prefix, c.S3Prefix)

	if c.PlaintextAccounts != nil {
		config.PlaintextAccounts = c.PlaintextAccounts
	}

	setDuration(&config.IdentityTokenTTL, c.IdentityTokenTTL)
	setDuration(&config.AppTokenTTL, c.AppTokenTTL)
	setDuration(&config.DemoIdentityTokenTTL, c.DemoIdentityTokenTTL)
	setDuration(&config.DemoAppTokenTTL, c.DemoAppTokenTTL)
	setDuration(&config.TempFileTTL, c.TempFileTTL)

	if c.EnforceDeviceBinding != nil {
		config.EnforceDeviceBinding = *c.EnforceDeviceBinding
	}
	if c.StorageWorkers != nil {
		config.StorageWorkers = *c.StorageWorkers
	}
	if c.MaxMessageBytes != nil {
		config.MaxMessageBytes = *c.MaxMessageBytes
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
