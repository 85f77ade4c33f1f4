// Package models holds the request and response bodies of the HTTP API.
package models

// HealthData represents the health check response data.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Health status"`
	Message string `json:"message" example:"API is healthy" doc:"Health message"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Body HealthData
}

// VersionData represents build information.
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"a1b2c3d" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

// VersionResponse represents the version response.
type VersionResponse struct {
	Body VersionData
}

// LineData describes the GPIO line.
type LineData struct {
	Line  int    `json:"line" example:"597" doc:"Kernel GPIO number"`
	State string `json:"state" example:"ready" enum:"uninitialized,ready,closed" doc:"Lifecycle state of the line"`
	Value bool   `json:"value" example:"true" doc:"Current logic level (true is high)"`
}

// LineResponse wraps LineData.
type LineResponse struct {
	Body LineData
}

// SetLineRequest drives the line to a level.
type SetLineRequest struct {
	Body struct {
		Value bool `json:"value" example:"true" doc:"Level to drive: true for high, false for low"`
	}
}

// BlinkRequest starts a blink sequence.
type BlinkRequest struct {
	Body struct {
		Count    int `json:"count" minimum:"1" maximum:"1000" example:"5" doc:"Number of on/off cycles"`
		PeriodMs int `json:"period_ms,omitempty" minimum:"10" maximum:"60000" default:"1000" example:"1000" doc:"Length of one on/off cycle in milliseconds"`
	}
}

// TallyData describes the aggregate tally state.
type TallyData struct {
	ActiveStreams []string `json:"active_streams" doc:"Streams currently reported live"`
	Blinking      bool     `json:"blinking" example:"false" doc:"Whether a blink sequence is running"`
}

// TallyResponse wraps TallyData.
type TallyResponse struct {
	Body TallyData
}

// StreamStateRequest is sent by the streaming host when a stream goes live
// or idle.
type StreamStateRequest struct {
	StreamID string `path:"stream_id" minLength:"1" maxLength:"128" example:"cam1" doc:"Stream identifier"`
	Body     struct {
		Active bool `json:"active" example:"true" doc:"Whether the stream is live"`
	}
}
