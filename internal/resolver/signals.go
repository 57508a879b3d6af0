package resolver

import (
	"time"

	"github.com/edirooss/ingestwatch/internal/domain/resource"
	"github.com/edirooss/ingestwatch/internal/domain/telemetry"
)

// Evidence is everything gathered from telemetry for one resolution. A nil
// or empty field means that source was unavailable or empty; evaluators treat
// both the same way.
type Evidence struct {
	ChannelID string
	Channel   *resource.Resource   // nil when the channel is not listed
	Flows     []*resource.Resource // flows linked into the channel
	Events    []telemetry.Event    // oldest first
	Since     time.Time            // start of the look-back window
	Signals   map[string][]telemetry.SourceSignal
	Failover  *telemetry.FailoverConfig
}

// Signal is one evaluator of the cascade. Eval must be pure: it may only
// read the evidence.
type Signal struct {
	Name string
	Eval func(e *Evidence) Verdict
}

// DefaultSignals returns the evaluators in descending trust order.
func DefaultSignals(c Conventions) []Signal {
	return []Signal{
		{Name: SignalLogEvent, Eval: logEvent},
		{Name: SignalLiveSignal, Eval: c.liveSignal},
		{Name: SignalLinkedFlow, Eval: c.linkedFlow},
		{Name: SignalFailoverConfig, Eval: failoverConfig},
		{Name: SignalNamePattern, Eval: c.namePattern},
		{Name: SignalPosition, Eval: position},
	}
}

// logEvent: the most recent failover/recover event inside the window.
func logEvent(e *Evidence) Verdict {
	if last := lastSwitchEvent(e); last != nil {
		if last.IsFailover() {
			return Backup
		}
		return Main
	}
	return None
}

func lastSwitchEvent(e *Evidence) *telemetry.Event {
	var last *telemetry.Event
	for i := range e.Events {
		ev := &e.Events[i]
		if ev.Time.Before(e.Since) || (!ev.IsFailover() && !ev.IsRecover()) {
			continue
		}
		if last == nil || !ev.Time.Before(last.Time) {
			last = ev
		}
	}
	return last
}

func logDetection(e *Evidence) *LogDetection {
	var d LogDetection
	for _, ev := range e.Events {
		if !ev.Time.Before(e.Since) && ev.IsFailover() {
			d.FailoverCount++
		}
	}
	if last := lastSwitchEvent(e); last != nil {
		d.LastEventType = last.Type
		d.LastEventTime = last.Time
	} else if d.FailoverCount == 0 {
		return nil
	}
	return &d
}

// activeSource is one upstream address currently carrying signal.
type activeSource struct {
	InputID    string
	InputIndex int // position among the channel's inputs
	AddrIndex  int // position among the input's addresses
	AddrCount  int // addresses reported for the input
	Address    string
}

func (e *Evidence) inputs() []resource.Input {
	if e.Channel == nil {
		return nil
	}
	return e.Channel.Inputs
}

func (e *Evidence) activeSources() []activeSource {
	var out []activeSource
	for i, in := range e.inputs() {
		sigs := e.Signals[in.ID]
		for j, s := range sigs {
			if s.Active {
				out = append(out, activeSource{
					InputID:    in.ID,
					InputIndex: i,
					AddrIndex:  j,
					AddrCount:  len(sigs),
					Address:    s.Address,
				})
			}
		}
	}
	return out
}

// singleActive returns the only active source, if exactly one exists.
func (e *Evidence) singleActive() (activeSource, bool) {
	act := e.activeSources()
	if len(act) != 1 {
		return activeSource{}, false
	}
	return act[0], true
}

// redundantSourceMode: some input has more than one active address, or the
// channel runs on a single input that reports two or more addresses.
func (e *Evidence) redundantSourceMode() bool {
	perInput := make(map[string]int)
	for _, s := range e.activeSources() {
		perInput[s.InputID]++
		if perInput[s.InputID] > 1 {
			return true
		}
	}
	if ins := e.inputs(); len(ins) == 1 {
		return len(e.Signals[ins[0].ID]) > 1
	}
	return false
}

// candidate is the input signals 4-6 reason about: the one carrying the only
// live source, else the first attached input.
func (e *Evidence) candidate() (resource.Input, int, bool) {
	ins := e.inputs()
	if src, ok := e.singleActive(); ok {
		return ins[src.InputIndex], src.InputIndex, true
	}
	if len(ins) == 0 {
		return resource.Input{}, 0, false
	}
	return ins[0], 0, true
}

// liveSignal: exactly one active source across all inputs. Its address
// convention decides; otherwise its position (within the input when the
// input has several addresses, else the input's own position).
func (c Conventions) liveSignal(e *Evidence) Verdict {
	src, ok := e.singleActive()
	if !ok {
		return None
	}
	if v := c.ClassifyAddress(src.Address); v != None {
		return v
	}
	idx := src.InputIndex
	if src.AddrCount > 1 {
		idx = src.AddrIndex
	}
	if idx == 0 {
		return Main
	}
	return Backup
}

// linkedFlow: running linked flows, classified by name and then by output
// address. Only an unambiguous outcome counts.
func (c Conventions) linkedFlow(e *Evidence) Verdict {
	seen := None
	for _, f := range e.Flows {
		if f == nil || !f.IsRunning() {
			continue
		}
		v := c.ClassifyName(f.Name)
		if v == None {
			for _, out := range f.Endpoints {
				if v = c.ClassifyAddress(out); v != None {
					break
				}
			}
		}
		if v == None {
			continue
		}
		if seen != None && seen != v {
			return None
		}
		seen = v
	}
	return seen
}

func failoverConfig(e *Evidence) Verdict {
	if e.Failover == nil {
		return None
	}
	in, _, ok := e.candidate()
	if !ok || in.ID == "" {
		return None
	}
	switch in.ID {
	case e.Failover.PrimaryInputID:
		return Main
	case e.Failover.SecondaryInputID:
		return Backup
	}
	return None
}

func (c Conventions) namePattern(e *Evidence) Verdict {
	in, _, ok := e.candidate()
	if !ok {
		return None
	}
	return c.ClassifyName(in.Name)
}

func position(e *Evidence) Verdict {
	_, idx, ok := e.candidate()
	if !ok {
		return None
	}
	if idx == 0 {
		return Main
	}
	return Backup
}
