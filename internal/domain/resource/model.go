package resource

import "strings"

// Kind separates decode endpoints (channels) from transport pipes (flows).
// Both live in one namespace; Kind is the only distinction.
type Kind string

const (
	KindChannel Kind = "channel"
	KindFlow    Kind = "flow"
)

// Service labels used by the provider listings and the topology filters.
const (
	ServiceStreamLive = "StreamLive"
	ServiceStreamLink = "StreamLink"
)

type Status string

const (
	StatusRunning Status = "running"
	StatusIdle    Status = "idle"
	StatusStopped Status = "stopped"
	StatusError   Status = "error"
	StatusUnknown Status = "unknown"
)

// Input is a channel-side attachment point (or a flow's source input).
type Input struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Protocol string `json:"protocol,omitempty"`
}

// Resource is a channel or flow as reported by the telemetry provider.
//
// Endpoints holds a channel's advertised input endpoints or a flow's output
// URLs; which one is implied by Kind.
type Resource struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Kind      Kind     `json:"kind"`
	Service   string   `json:"service"`
	Status    Status   `json:"status"`
	Inputs    []Input  `json:"inputs"`
	Endpoints []string `json:"endpoints"`
}

func (r *Resource) IsChannel() bool { return r.Kind == KindChannel }
func (r *Resource) IsFlow() bool    { return r.Kind == KindFlow }
func (r *Resource) IsRunning() bool { return r.Status == StatusRunning }

// Group is one channel and the flows linked into it, or an orphan flow as a
// singleton parent with no children.
type Group struct {
	Parent   *Resource   `json:"parent"`
	Children []*Resource `json:"children"`
}

// ParseChannelStatus maps a channel state string to a Status.
func ParseChannelStatus(state string) Status {
	s := strings.ToLower(state)
	switch {
	case strings.Contains(s, "running"), strings.Contains(s, "start"):
		return StatusRunning
	case strings.Contains(s, "idle"):
		return StatusIdle
	case strings.Contains(s, "stop"):
		return StatusStopped
	case strings.Contains(s, "error"), strings.Contains(s, "alert"):
		return StatusError
	}
	return StatusUnknown
}

// ParseFlowStatus maps a flow state string to a Status. Flow states use a
// wider vocabulary than channel states ("active", "online", "wait", "off").
func ParseFlowStatus(state string) Status {
	s := strings.ToLower(state)
	switch {
	case containsAny(s, "running", "start", "active", "online"):
		return StatusRunning
	case containsAny(s, "idle", "wait"):
		return StatusIdle
	case containsAny(s, "stop", "off"):
		return StatusStopped
	case containsAny(s, "error", "alert", "failed", "fail"):
		return StatusError
	}
	return StatusUnknown
}

// ParseStatus normalizes state according to the resource kind.
func ParseStatus(kind Kind, state string) Status {
	if kind == KindFlow {
		return ParseFlowStatus(state)
	}
	return ParseChannelStatus(state)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
