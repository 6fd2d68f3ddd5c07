package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/nosuite/internal/flagx"
)

// Flags taking a value; the CLI skips them when looking for its subcommand.
var ValueFlags = []string{"-s", "-d", "-t", "-c", "-config"}

// parseFlags populates selected Config fields from command-line flags.
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-s", "-d", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "s", cfg.ServerURL, "base URL of the nosuite server")
	fs.StringVar(&cfg.AdminDeviceID, "d", cfg.AdminDeviceID, "admin device id")
	timeout := fs.Int("t", int(cfg.Timeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.Timeout = time.Duration(*timeout) * time.Second
}
