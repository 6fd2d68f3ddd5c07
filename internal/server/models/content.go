package models

import (
	"encoding/json"
	"unicode/utf8"
)

// RawContent renders stored file bytes for a JSON reply. Content written as
// a JSON value is returned as that value; anything else becomes a string.
func RawContent(b []byte) json.RawMessage {
	if len(b) > 0 && json.Valid(b) {
		return json.RawMessage(b)
	}
	if !utf8.Valid(b) {
		b = []byte(string([]rune(string(b))))
	}
	out, _ := json.Marshal(string(b))
	return out
}
