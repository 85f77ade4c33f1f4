package events

// Event type constants for kelindar/event.
const (
	TypeStreamStateChanged uint32 = iota + 1
	TypeLineChanged
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StreamStateChangedEvent reports a stream going live or idle on the host.
type StreamStateChangedEvent struct {
	StreamID  string `json:"stream_id" example:"cam1" doc:"Stream identifier"`
	Active    bool   `json:"active" example:"true" doc:"Whether the stream is live"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStateChangedEvent.
func (e StreamStateChangedEvent) Type() uint32 { return TypeStreamStateChanged }

// LineChangedEvent is published after the tally line has been written.
type LineChangedEvent struct {
	Line      int    `json:"line" example:"597" doc:"Kernel GPIO number"`
	Value     bool   `json:"value" example:"true" doc:"Logic level written"`
	Source    string `json:"source" example:"streams" doc:"What caused the change: streams, blink, api"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for LineChangedEvent.
func (e LineChangedEvent) Type() uint32 { return TypeLineChanged }
