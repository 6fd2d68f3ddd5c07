// Package models defines the server-side records shared between the
// credential store, the token service, storage and the realtime hub.
package models

// Device is a client installation registered to a user. ID is generated by
// the client; the rest is descriptive metadata.
type Device struct {
	ID       string `json:"id" cbor:"1,keyasint"`
	IsMobile bool   `json:"is_mobile" cbor:"2,keyasint,omitempty"`
	Browser  string `json:"browser" cbor:"3,keyasint,omitempty"`
	Platform string `json:"platform" cbor:"4,keyasint,omitempty"`
}
