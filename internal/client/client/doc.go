// Package client talks to the bootstrap endpoints of a nosuite server on
// behalf of the admin CLI: minting a physical key and starting the service.
//
// Server answers are mapped to the sentinel errors of this package and of
// internal/common so callers can match them with errors.Is.
package client
