package ws

import "encoding/json"

// Envelope wraps every inbound WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "update"
	Body  json.RawMessage `json:"body,omitempty"` // event specific JSON
}

// outbound is the server -> client frame.
type outbound struct {
	Event string `json:"event"`
	Body  any    `json:"body"`
}

// ErrorBody is returned when a handshake is refused.
type ErrorBody struct {
	Error string `json:"error"`
}
