package common

import (
	"encoding/json"
	"fmt"
	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message exchanged between client and server.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Transport control
	Code TransportCode `json:"code,omitempty"` // Used for: Transport

	// Mirror
	Text string `json:"text,omitempty"` // Used for: Mirror

	// Network state
	Entities   []Entity    `json:"entities,omitempty"`   // Used for: NetworkState
	Components []Component `json:"components,omitempty"` // Used for: NetworkState

	// Field sync
	ComponentID uuid.UUID `json:"component_id,omitempty"` // Used for: Sync
	FieldName   string    `json:"field_name,omitempty"`   // Used for: Sync
	Value       []byte    `json:"value,omitempty"`        // Used for: Sync, Custom
}

// Entity is a networked game object. Its payload is owned by the state layer and is
// never interpreted by the transport.
type Entity struct {
	ID   uuid.UUID `json:"id"`
	Data []byte    `json:"data,omitempty"`
}

// Component is a networked component attached to an Entity.
type Component struct {
	ID       uuid.UUID `json:"id"`
	EntityID uuid.UUID `json:"entity_id"`
	Data     []byte    `json:"data,omitempty"`
}

// IsReserved reports whether the transport core handles this message kind itself
// (in addition to forwarding it).
func (m *Message) IsReserved() bool {
	switch m.MsgType {
	case MsgTPing, MsgTPong, MsgTTransport:
		return true
	default:
		return false
	}
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewTransportMessage creates a new transport status message
func NewTransportMessage(code TransportCode) *Message {
	return &Message{
		MsgType: MsgTTransport,
		Code:    code,
	}
}

// NewPingMessage creates a new ping message
func NewPingMessage() *Message {
	return &Message{MsgType: MsgTPing}
}

// NewPongMessage creates a new pong message
func NewPongMessage() *Message {
	return &Message{MsgType: MsgTPong}
}

// NewMirrorMessage creates a message the server echoes back to the sender
func NewMirrorMessage(text string) *Message {
	return &Message{
		MsgType: MsgTMirror,
		Text:    text,
	}
}

// NewNetworkStateMessage creates a full state snapshot message
func NewNetworkStateMessage(entities []Entity, components []Component) *Message {
	return &Message{
		MsgType:    MsgTNetworkState,
		Entities:   entities,
		Components: components,
	}
}

// NewSyncMessage creates a single field update for a component
func NewSyncMessage(componentID uuid.UUID, fieldName string, value []byte) *Message {
	return &Message{
		MsgType:     MsgTSync,
		ComponentID: componentID,
		FieldName:   fieldName,
		Value:       value,
	}
}

// NewCustomMessage creates a message with an application defined payload
func NewCustomMessage(value []byte) *Message {
	return &Message{
		MsgType: MsgTCustom,
		Value:   value,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in the game protocol.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTTransport:
		return "transport"
	case MsgTPing:
		return "ping"
	case MsgTPong:
		return "pong"
	case MsgTNetworkState:
		return "networkState"
	case MsgTSync:
		return "sync"
	case MsgTMirror:
		return "mirror"
	case MsgTCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "unknown":
		*t = MsgTUnknown
	case "transport":
		*t = MsgTTransport
	case "ping":
		*t = MsgTPing
	case "pong":
		*t = MsgTPong
	case "networkState":
		*t = MsgTNetworkState
	case "sync":
		*t = MsgTSync
	case "mirror":
		*t = MsgTMirror
	case "custom":
		*t = MsgTCustom
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	MsgTUnknown MessageType = iota

	// Reserved kinds, handled by the transport itself

	MsgTTransport // Transport status / control
	MsgTPing      // Ping, answered with a pong
	MsgTPong      // Pong

	// Forwarded kinds

	MsgTNetworkState // Full entity/component snapshot
	MsgTSync         // Single field update
	MsgTMirror       // Echo request
	MsgTCustom       // Application defined payload
)

// --------------------------------------------------------------------------
// Transport Codes
// --------------------------------------------------------------------------

// TransportCode is the status surfaced to observers by the transport layer.
type TransportCode uint8

const (
	TransportUnknown TransportCode = iota
	TransportConnected
	TransportAlreadyConnected
	TransportConnectionTimeout
	TransportConnectionRefused
	TransportConnectionError
	TransportMaximumConnectionReached
)

// String returns the string representation of a TransportCode.
func (c TransportCode) String() string {
	switch c {
	case TransportConnected:
		return "CONNECTED"
	case TransportAlreadyConnected:
		return "ALREADY_CONNECTED"
	case TransportConnectionTimeout:
		return "CONNECTION_TIMEOUT"
	case TransportConnectionRefused:
		return "CONNECTION_REFUSED"
	case TransportConnectionError:
		return "CONNECTION_ERROR"
	case TransportMaximumConnectionReached:
		return "MAXIMUM_CONNECTION_REACHED"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes a TransportCode as its string name.
func (c TransportCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a TransportCode from its string name.
func (c *TransportCode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for code := TransportUnknown; code <= TransportMaximumConnectionReached; code++ {
		if code.String() == s {
			*c = code
			return nil
		}
	}
	return fmt.Errorf("unknown transport code: %s", s)
}
