package protocol

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Encode frames a MultiMessage for the websocket transport.
func Encode(m *MultiMessage) ([]byte, error) {
	if m.Packets == nil {
		m = &MultiMessage{Packets: []Packet{}}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode multi message: %w", err)
	}
	return data, nil
}

// Decode parses one frame. A frame holding a bare packet is accepted and
// wrapped into a single-packet MultiMessage.
func Decode(data []byte) (*MultiMessage, error) {
	var probe struct {
		Packets json.RawMessage `json:"packets"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if probe.Packets != nil {
		var mm MultiMessage
		if err := json.Unmarshal(data, &mm); err != nil {
			return nil, fmt.Errorf("decode multi message: %w", err)
		}
		return &mm, nil
	}
	var p Packet
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode packet: %w", err)
	}
	return &MultiMessage{Packets: []Packet{p}}, nil
}
