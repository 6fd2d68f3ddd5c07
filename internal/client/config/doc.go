// Package config loads runtime configuration for the nosuite admin CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//     Comments are allowed.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-s string   base URL of the nosuite server
//	-d string   admin device id
//	-t int      request timeout (seconds)
//
// # JSON schema
//
//	{
//	  // where the server listens
//	  "server_url": "https://nosuite.ngwy.fr",
//	  "admin_device_id": "…",
//	  "timeout": "30s"
//	}
package config
