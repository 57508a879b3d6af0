// Package telemetry holds the data exchanged with the telemetry provider:
// channel event history, live source signal, failover policy and alert
// conditions.
package telemetry

import (
	"strings"
	"time"
)

// Event types reported in a channel's pipeline event history.
const (
	EventPipelineFailover = "PipelineFailover"
	EventPipelineRecover  = "PipelineRecover"
	EventStreamStart      = "StreamStart"
	EventStreamStop       = "StreamStop"
	EventNoInputData      = "No Input Data"
)

// Pipeline identifiers. Pipeline "0" is the main path, "1" the backup.
const (
	PipelineMain   = "0"
	PipelineBackup = "1"
)

// PipelineLabel returns the display name of a pipeline id.
func PipelineLabel(pipeline string) string {
	switch pipeline {
	case PipelineMain:
		return "Pipeline A (Main)"
	case PipelineBackup:
		return "Pipeline B (Backup)"
	}
	return "Pipeline " + pipeline
}

// Event is one entry of a channel's event history.
type Event struct {
	ChannelID string    `json:"channel_id"`
	Type      string    `json:"type"`
	Pipeline  string    `json:"pipeline,omitempty"`
	Time      time.Time `json:"time"`
}

// IsFailover reports whether the event records a switch onto the backup path.
func (e Event) IsFailover() bool {
	return strings.Contains(strings.ToLower(e.Type), "failover")
}

// IsRecover reports whether the event records a return to the main path.
func (e Event) IsRecover() bool {
	return strings.Contains(strings.ToLower(e.Type), "recover")
}

// SourceSignal is the live signal-presence state of one upstream address of
// an input.
type SourceSignal struct {
	Address string `json:"address"`
	Active  bool   `json:"active"`
}

// FailoverConfig is a channel's static primary/secondary input policy.
type FailoverConfig struct {
	PrimaryInputID   string `json:"primary_input_id"`
	SecondaryInputID string `json:"secondary_input_id"`
	LossThresholdMs  int    `json:"loss_threshold_ms,omitempty"`
	RecoverBehavior  string `json:"recover_behavior,omitempty"`
}

// Condition is an alert condition raised on one pipeline of a channel.
// A zero ClearedAt means the condition is still active.
type Condition struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name,omitempty"`
	Pipeline    string    `json:"pipeline"`
	Type        string    `json:"type"`
	Message     string    `json:"message,omitempty"`
	SetAt       time.Time `json:"set_time"`
	ClearedAt   time.Time `json:"clear_time,omitempty"`
}

// Cleared reports whether the condition carries a resolution timestamp.
func (c Condition) Cleared() bool { return !c.ClearedAt.IsZero() }
