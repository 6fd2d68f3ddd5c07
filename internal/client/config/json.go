package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/nosuite/internal/flagx"
	"github.com/dmitrijs2005/nosuite/internal/timex"
	"github.com/tidwall/jsonc"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify the timeout either as a
// string like "30s" or as integer nanoseconds.
type JsonConfig struct {
	ServerURL     string         `json:"server_url"`
	AdminDeviceID string         `json:"admin_device_id"`
	Timeout       timex.Duration `json:"timeout"`
}

// parseJson overlays Config with values loaded from the file named by -c or
// -config. Empty fields in the file leave the current value alone. Read or
// decode errors panic.
func parseJson(cfg *Config) {
	// Resolve file path from flags.
	jsonConfigFile := flagx.ConfigPath()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.AdminDeviceID != "" {
		cfg.AdminDeviceID = jc.AdminDeviceID
	}
	if jc.Timeout.Duration != 0 {
		cfg.Timeout = time.Duration(jc.Timeout.Duration)
	}
}
