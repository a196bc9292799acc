package core

import (
	jsoniter "github.com/json-iterator/go"
)

// Frame is a raw wire payload.
type Frame []byte

// SessionID identifies one client connection.
type SessionID string

// SignalConnection abstracts the per-client event channel.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Event is the wire envelope in both directions: a named message with a
// payload object.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EncodeEvent marshals an event for the wire.
func EncodeEvent(typ string, data any) (Frame, error) {
	b, err := json.Marshal(Event{Type: typ, Data: data})
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}

// RawEvent is the inbound half: the type is read first, the data decoded by
// the handler that owns the payload shape.
type RawEvent struct {
	Type string              `json:"type"`
	Data jsoniter.RawMessage `json:"data"`
}

func DecodeEvent(frame Frame) (RawEvent, error) {
	var ev RawEvent
	if err := json.Unmarshal(frame, &ev); err != nil {
		return ev, err
	}
	return ev, nil
}

func DecodePayload(raw jsoniter.RawMessage, into any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, into)
}
