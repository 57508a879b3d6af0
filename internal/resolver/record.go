package resolver

import (
	"time"

	"github.com/goccy/go-json"
)

// Verdict is the source type a signal points at. None means the signal had
// nothing to say.
type Verdict string

const (
	None   Verdict = ""
	Main   Verdict = "main"
	Backup Verdict = "backup"
)

func (v Verdict) String() string {
	if v == None {
		return "none"
	}
	return string(v)
}

// MarshalJSON encodes None as null.
func (v Verdict) MarshalJSON() ([]byte, error) {
	if v == None {
		return []byte("null"), nil
	}
	return json.Marshal(string(v))
}

func (v *Verdict) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = None
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*v = Verdict(s)
	return nil
}

// Signal names, in default priority order.
const (
	SignalLogEvent       = "log_event"
	SignalLiveSignal     = "live_signal"
	SignalLinkedFlow     = "linked_flow"
	SignalFailoverConfig = "failover_config"
	SignalNamePattern    = "name_pattern"
	SignalPosition       = "position"
)

// SignalResult is what one evaluator produced during a resolution.
type SignalResult struct {
	Name    string  `json:"name"`
	Rank    int     `json:"rank"` // 1 = most trusted
	Verdict Verdict `json:"verdict"`
}

// LogDetection summarizes the failover/recover history inside the look-back
// window.
type LogDetection struct {
	LastEventType string    `json:"last_event_type,omitempty"`
	LastEventTime time.Time `json:"last_event_time,omitempty"`
	FailoverCount int       `json:"failover_count"`
}

// Record is the outcome of resolving a channel's active source.
//
// ActiveInput is None when no signal produced a verdict. VerificationSources
// lists, in priority order, every signal that agrees with ActiveInput;
// DissentingSources lists those that produced the opposite verdict.
type Record struct {
	ChannelID       string  `json:"channel_id"`
	ChannelName     string  `json:"channel_name,omitempty"`
	ActiveInput     Verdict `json:"active_input"`
	ActiveInputID   string  `json:"active_input_id,omitempty"`
	ActiveInputName string  `json:"active_input_name,omitempty"`

	VerificationSources []string `json:"verification_sources"`
	DissentingSources   []string `json:"dissenting_sources,omitempty"`
	VerificationLevel   int      `json:"verification_level"`

	// RedundantSourceMode distinguishes one input with two upstream
	// addresses from two distinct failover inputs.
	RedundantSourceMode bool `json:"is_input_source_redundancy"`

	PrimaryInputID          string `json:"primary_input_id,omitempty"`
	SecondaryInputID        string `json:"secondary_input_id,omitempty"`
	FailoverLossThresholdMs int    `json:"failover_loss_threshold,omitempty"`
	FailoverRecoverBehavior string `json:"failover_recover_behavior,omitempty"`

	LogDetection *LogDetection `json:"log_based_detection,omitempty"`

	Signals     []SignalResult `json:"signals"`
	Unavailable []string       `json:"unavailable,omitempty"` // telemetry calls that failed
	ResolvedAt  time.Time      `json:"resolved_at"`
}

// HasVerdict reports whether any signal resolved the active source.
func (r *Record) HasVerdict() bool { return r.ActiveInput != None }
