package models

// Change actions carried by ChangeEvent.
const (
	ActionMkdir = "mkdir"
	ActionWrite = "write"
	ActionRm    = "rm"
)

// ChangeEvent describes a completed mutation in one user+app tree.
// ClientID identifies the client instance that caused it and is compared
// against each receiver to compute by_self.
type ChangeEvent struct {
	Email    string
	App      string
	Path     string
	Action   string
	Content  []byte
	ClientID string
}
