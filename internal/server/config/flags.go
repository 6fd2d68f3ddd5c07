package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/nosuite/internal/flagx"
)

// parseFlags overlays the few settings operators commonly change per run.
//
//	-a string   HTTP bind address (e.g. ":8003")
//	-g string   gRPC health bind address, empty disables
//	-r string   users root directory
//	-d string   PostgreSQL DSN for allow-lists
//	-s string   auth server hostname
//	-m string   authorized domain suffix
//	-w int      storage worker count
//	-l string   log level
//
// Secrets are deliberately not accepted here.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"a", "g", "r", "d", "s", "m", "w", "l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run the HTTP server")
	fs.StringVar(&config.HealthAddr, "g", config.HealthAddr, "address and port of the gRPC health endpoint")
	fs.StringVar(&config.UsersRoot, "r", config.UsersRoot, "users root directory")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AuthServer, "s", config.AuthServer, "auth server hostname")
	fs.StringVar(&config.AuthorizedDomain, "m", config.AuthorizedDomain, "authorized domain")
	fs.IntVar(&config.StorageWorkers, "w", config.StorageWorkers, "storage worker count")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
