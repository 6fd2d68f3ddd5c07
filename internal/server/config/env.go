package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/nosuite/internal/timex"
)

// envPrefix namespaces every variable read by parseEnv.
const envPrefix = "NOSUITE_"

// parseEnv overlays NOSUITE_* variables. Malformed numeric or duration values
// panic for the same reason as a malformed config file.
func parseEnv(config *Config) {
	envString(&config.HTTPAddr, "HTTP_ADDR")
	envString(&config.HealthAddr, "HEALTH_ADDR")
	envString(&config.LogFormat, "LOG_FORMAT")
	envString(&config.LogLevel, "LOG_LEVEL")
	envString(&config.UsersRoot, "USERS_ROOT")
	envString(&config.AuthServer, "AUTH_SERVER")
	envString(&config.AuthorizedDomain, "AUTHORIZED_DOMAIN")
	envString(&config.AdminDeviceID, "ADMIN_DEVICE_ID")
	envString(&config.AdminVerification, "ADMIN_VERIFICATION")
	envString(&config.LegacyIV, "IV")
	envString(&config.DemoAccount, "DEMO_ACCOUNT")
	envString(&config.TemplateAccount, "TEMPLATE_ACCOUNT")
	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envString(&config.S3Bucket, "S3_BUCKET")
	envString(&config.S3Region, "S3_REGION")
	envString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	envString(&config.S3AccessKey, "S3_ACCESS_KEY")
	envString(&config.S3SecretKey, "S3_SECRET_KEY")
	envString(&config.S3Prefix, "S3_PREFIX")

	if v, ok := lookup("PLAINTEXT_ACCOUNTS"); ok {
		config.PlaintextAccounts = splitList(v)
	}

	for name, dst := range map[string]*time.Duration{
		"IDENTITY_TOKEN_TTL":      &config.IdentityTokenTTL,
		"APP_TOKEN_TTL":           &config.AppTokenTTL,
		"DEMO_IDENTITY_TOKEN_TTL": &config.DemoIdentityTokenTTL,
		"DEMO_APP_TOKEN_TTL":      &config.DemoAppTokenTTL,
		"TEMP_FILE_TTL":           &config.TempFileTTL,
	} {
		if v, ok := lookup(name); ok {
			d, err := timex.ParseDuration(v)
			if err != nil {
				panic(err)
			}
			*dst = d
		}
	}

	if v, ok := lookup("ENFORCE_DEVICE_BINDING"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			panic(err)
		}
		config.EnforceDeviceBinding = b
	}
	if v, ok := lookup("STORAGE_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			panic(err)
		}
		config.StorageWorkers = n
	}
	if v, ok := lookup("MAX_MESSAGE_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			panic(err)
		}
		config.MaxMessageBytes = n
	}
}

func lookup(name string) (string, bool) {
	return os.LookupEnv(envPrefix + name)
}

func envString(dst *string, name string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func splitList(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
