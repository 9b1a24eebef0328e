// Package stream defines the push-channel frame types. Frames are transient:
// produced by the relay, serialized once as `data: <json>` lines, never stored.
package stream

import "encoding/json"

// Frame is one push-channel event. Exactly one terminal frame (Done or
// Error) ends every stream.
type Frame interface {
	frame()
}

// Chunk carries a piece of assistant text.
type Chunk struct {
	Text string
}

// Action tells the browser to execute a queued command. Its payload keys are
// flattened into the frame object next to the command type.
type Action struct {
	Type    string
	Payload map[string]any
}

// Done terminates a successful stream.
type Done struct {
	SessionID string
}

// Error terminates a failed stream.
type Error struct {
	Message string
}

func (Chunk) frame()  {}
func (Action) frame() {}
func (Done) frame()   {}
func (Error) frame()  {}

func (c Chunk) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"chunk": c.Text})
}

func (a Action) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(a.Payload)+1)
	for k, v := range a.Payload {
		obj[k] = v
	}
	obj["action"] = a.Type
	return json.Marshal(obj)
}

func (d Done) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"done": true, "session_id": d.SessionID})
}

func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"error": e.Message})
}
