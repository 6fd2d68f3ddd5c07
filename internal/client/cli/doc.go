// Package cli is the nosuite admin command-line tool.
//
// Commands:
//   - nfc-key   ask the server for a fresh physical key URL
//   - start     unlock a running server with the physical key and admin password
//   - provision compute, offline, the admin verification value for the server config
//
// With a command on the command line the tool runs it once and exits;
// otherwise it starts a small REPL. See App.Run and runREPL.
package cli
