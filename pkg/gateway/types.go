package gateway

// ClientMessage is a command sent by a realtime client.
type ClientMessage struct {
	Action    string `json:"action"` // subscribe | unsubscribe | ping
	SessionID string `json:"sessionId,omitempty"`
}
