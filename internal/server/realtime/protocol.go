package realtime

import "encoding/json"

// Message types on the websocket.
const (
	TypeRegister   = "register"
	TypeStorage    = "storage"
	TypeFileChange = "file-change"
	TypeError      = "error"
)

// Command is one storage command of a batch. Every command carries its own
// credentials; a batch may mix apps.
type Command struct {
	Type     string          `json:"type"`
	Path     string          `json:"path"`
	Content  json.RawMessage `json:"content,omitempty"`
	Chunk    string          `json:"chunk,omitempty"`
	Final    bool            `json:"final,omitempty"`
	Token    string          `json:"token"`
	App      string          `json:"app"`
	DeviceID string          `json:"device_id"`
	ClientID string          `json:"client_id"`
}

// Request is a client frame. Register frames use the credential fields,
// storage frames carry Cmds.
type Request struct {
	ID       uint64    `json:"id"`
	Type     string    `json:"type"`
	Cmds     []Command `json:"cmds,omitempty"`
	Token    string    `json:"token,omitempty"`
	App      string    `json:"app,omitempty"`
	DeviceID string    `json:"device_id,omitempty"`
	ClientID string    `json:"client_id,omitempty"`
}

// Reply answers a Request with the same ID. Responses holds one item per
// command, in order.
type Reply struct {
	ID        uint64 `json:"id"`
	Type      string `json:"type"`
	Responses []any  `json:"responses,omitempty"`
	Success   bool   `json:"success,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ChangeMessage is pushed to every live connection of the owning user.
type ChangeMessage struct {
	Type    string          `json:"type"`
	App     string          `json:"app"`
	Path    string          `json:"path"`
	Action  string          `json:"action"`
	Content json.RawMessage `json:"content,omitempty"`
	BySelf  bool            `json:"by_self"`
}
