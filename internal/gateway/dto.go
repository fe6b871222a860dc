package gateway

import (
	"encoding/json"
	"log"
)

// SubscribeMsg is the client → server SUBSCRIBE request.
type SubscribeMsg struct {
	Type    string   `json:"type"`   // "SUBSCRIBE"
	ReqID   string   `json:"reqId"`  // client-generated request ID
	Symbols []string `json:"symbols"`
	Replay  int      `json:"replay"` // max replayed events per symbol, 0 = all buffered
}

// UnsubscribeMsg is the client → server UNSUBSCRIBE request.
type UnsubscribeMsg struct {
	Type    string   `json:"type"` // "UNSUBSCRIBE"
	ReqID   string   `json:"reqId"`
	Symbols []string `json:"symbols"`
}

// SubscribedMsg is the server → client SUBSCRIBE acknowledgement.
type SubscribedMsg struct {
	Type     string   `json:"type"` // "SUBSCRIBED"
	ReqID    string   `json:"reqId"`
	Symbols  []string `json:"symbols"`
	Replayed int      `json:"replayed"`
}

// ErrorResponse is the server → client error message.
type ErrorResponse struct {
	Type  string `json:"type"` // "ERROR"
	ReqID string `json:"reqId"`
	Error string `json:"error"`
}

// SendJSON marshals and sends a message to the client's send channel.
func SendJSON(c *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[gateway] json marshal error: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Println("[gateway] client send buffer full, dropping message")
	}
}

// SendError sends an error response to the client.
func SendError(c *Client, reqID, errMsg string) {
	SendJSON(c, ErrorResponse{
		Type:  "ERROR",
		ReqID: reqID,
		Error: errMsg,
	})
}
