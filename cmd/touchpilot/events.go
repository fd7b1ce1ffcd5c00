package main

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// Control events
// ============================================================================
// Control events carry intent from outside the detection loop (IPC, the UDP
// remote). They are wrapped in TimedEvent by the daemon loop before reduction.
// ============================================================================

// SetSensitivity overrides the sensitivity reading (same scale as the pot input)
// until ClearSensitivity is received.
type SetSensitivity struct {
	Raw int `json:"raw"`
}

func (SetSensitivity) eventMarker() {}

// ClearSensitivity drops a SetSensitivity override; the configured or sampled
// sensitivity applies again.
type ClearSensitivity struct{}

func (ClearSensitivity) eventMarker() {}

// RemoteInput is one joystick state from the remote: left stick position and the
// run button (B).
type RemoteInput struct {
	JoyX    uint8  `json:"joy_x"`
	JoyY    uint8  `json:"joy_y"`
	ButtonB bool   `json:"button_b"`
	Origin  string `json:"origin,omitempty"` // "udp", "ipc"
}

func (RemoteInput) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "set_sensitivity":
		if len(env.Data) == 0 {
			return nil, fmt.Errorf("set_sensitivity: missing data")
		}
		var a SetSensitivity
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal SetSensitivity: %w", err)
		}
		return a, nil

	case "clear_sensitivity":
		return ClearSensitivity{}, nil

	case "remote_input":
		// Missing axes default to center.
		a := RemoteInput{JoyX: stickCenter, JoyY: stickCenter}
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &a); err != nil {
				return nil, fmt.Errorf("unmarshal RemoteInput: %w", err)
			}
		}
		return a, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case SetSensitivity:
		env.Type = "set_sensitivity"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetSensitivity: %w", err)
		}
		env.Data = data

	case ClearSensitivity:
		env.Type = "clear_sensitivity"

	case RemoteInput:
		env.Type = "remote_input"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal RemoteInput: %w", err)
		}
		env.Data = data

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
