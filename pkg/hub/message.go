// Package hub fans messages out to websocket clients through a single
// goroutine that owns the client set.
package hub

import "github.com/gofiber/websocket/v2"

// MessageType selects the websocket frame type a message is sent as.
type MessageType int

const (
	JSONMessage   MessageType = iota // text frame
	BinaryMessage                    // binary frame, e.g. a JPEG
)

// Message is one broadcast payload.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps binary data.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

func (m Message) wsType() int {
	if m.Type == BinaryMessage {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
