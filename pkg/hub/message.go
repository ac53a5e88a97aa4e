package hub

import "encoding/json"

// Message is one broadcast payload, always a JSON text frame.
type Message struct {
	Data []byte
}

// NewJSONMessage encodes v into a broadcastable message.
func NewJSONMessage(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Data: data}, nil
}
