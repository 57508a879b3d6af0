// Package resolver decides which of a channel's redundant sources (main or
// backup) is currently live.
//
// Resolution runs in two phases. Gathering performs the telemetry reads,
// each under its own timeout; a failed read only removes that evidence.
// Evaluation then runs an ordered list of pure signal evaluators over the
// evidence: the first verdict wins and every agreeing signal is recorded as
// corroboration.
package resolver

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edirooss/ingestwatch/internal/domain/resource"
	"github.com/edirooss/ingestwatch/internal/domain/telemetry"
	"github.com/edirooss/ingestwatch/internal/linkage"
	"github.com/edirooss/ingestwatch/internal/metrics"
	"github.com/edirooss/ingestwatch/internal/provider"
)

type Options struct {
	// CallTimeout bounds each telemetry read; default 20s.
	CallTimeout time.Duration
	// Lookback is the event-history window of the log signal; default 24h.
	Lookback time.Duration
	// SignalConcurrency bounds parallel per-input signal reads; default 4.
	SignalConcurrency int
	// Signals overrides the evaluator cascade; default DefaultSignals(Conventions).
	Signals     []Signal
	Conventions *Conventions
}

func (o *Options) setDefaults() {
	if o.CallTimeout <= 0 {
		o.CallTimeout = 20 * time.Second
	}
	if o.Lookback <= 0 {
		o.Lookback = 24 * time.Hour
	}
	if o.SignalConcurrency <= 0 {
		o.SignalConcurrency = 4
	}
	if o.Conventions == nil {
		c := DefaultConventions()
		o.Conventions = &c
	}
	if len(o.Signals) == 0 {
		o.Signals = DefaultSignals(*o.Conventions)
	}
}

// Resolver is safe for concurrent use; calls share no mutable state.
type Resolver struct {
	log     *zap.Logger
	src     provider.Provider
	matcher linkage.Matcher
	opts    Options
	now     func() time.Time
}

func New(log *zap.Logger, src provider.Provider, matcher linkage.Matcher, opts Options) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	opts.setDefaults()
	return &Resolver{
		log:     log.Named("resolver"),
		src:     src,
		matcher: matcher,
		opts:    opts,
		now:     time.Now,
	}
}

// Resolve resolves the active source of channelID. It never fails: missing
// telemetry yields a record without a verdict.
func (r *Resolver) Resolve(ctx context.Context, channelID string) *Record {
	start := r.now()
	ev, unavailable := r.gather(ctx, channelID, nil)
	return r.finish(ev, unavailable, start)
}

// ResolveGroup resolves a channel whose listing and linked flows the caller
// already holds, skipping the resource listing.
func (r *Resolver) ResolveGroup(ctx context.Context, g resource.Group) *Record {
	start := r.now()
	ev, unavailable := r.gather(ctx, g.Parent.ID, &g)
	return r.finish(ev, unavailable, start)
}

func (r *Resolver) finish(ev *Evidence, unavailable []string, start time.Time) *Record {
	rec := Evaluate(ev, r.opts.Signals)
	rec.Unavailable = unavailable
	rec.ResolvedAt = r.now()

	metrics.ResolverVerdicts.WithLabelValues(rec.ActiveInput.String()).Inc()
	metrics.ResolverDuration.Observe(rec.ResolvedAt.Sub(start).Seconds())

	r.log.Debug("resolved",
		zap.String("channel_id", rec.ChannelID),
		zap.Stringer("active_input", rec.ActiveInput),
		zap.Strings("verification_sources", rec.VerificationSources),
		zap.Bool("redundant_source_mode", rec.RedundantSourceMode),
		zap.Strings("unavailable", unavailable))
	return rec
}

// gather collects the evidence for one channel. Every read gets its own
// timeout; failures are logged, counted and reported by name.
func (r *Resolver) gather(ctx context.Context, channelID string, g *resource.Group) (*Evidence, []string) {
	ev := &Evidence{
		ChannelID: channelID,
		Since:     r.now().Add(-r.opts.Lookback),
	}

	var (
		mu          sync.Mutex
		unavailable []string
	)
	fail := func(name string, err error) {
		if errors.Is(err, provider.ErrNotFound) {
			r.log.Debug("telemetry not found", zap.String("channel_id", channelID), zap.String("call", name))
			return
		}
		metrics.ResolverSignalFailures.WithLabelValues(name).Inc()
		r.log.Warn("telemetry call failed; signal skipped",
			zap.String("channel_id", channelID), zap.String("call", name), zap.Error(err))
		mu.Lock()
		unavailable = append(unavailable, name)
		mu.Unlock()
	}

	if g != nil {
		ev.Channel = g.Parent
		ev.Flows = g.Children
	} else if err := r.call(ctx, func(ctx context.Context) error {
		rs, err := r.src.ListResources(ctx)
		if err != nil {
			return err
		}
		ev.Channel, ev.Flows = r.locate(rs, channelID)
		return nil
	}); err != nil {
		fail("resources", err)
	}

	if err := r.call(ctx, func(ctx context.Context) error {
		evs, err := r.src.EventHistory(ctx, channelID, ev.Since)
		ev.Events = evs
		return err
	}); err != nil {
		ev.Events = nil
		fail("events", err)
	}

	if err := r.call(ctx, func(ctx context.Context) error {
		cfg, err := r.src.FailoverConfig(ctx, channelID)
		ev.Failover = cfg
		return err
	}); err != nil {
		ev.Failover = nil
		fail("failover_config", err)
	}

	ev.Signals = r.gatherSignals(ctx, ev, fail)
	return ev, unavailable
}

func (r *Resolver) gatherSignals(ctx context.Context, ev *Evidence, fail func(string, error)) map[string][]telemetry.SourceSignal {
	ins := ev.inputs()
	out := make(map[string][]telemetry.SourceSignal, len(ins))
	if len(ins) == 0 {
		return out
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.opts.SignalConcurrency)
	for _, in := range ins {
		if in.ID == "" {
			continue
		}
		g.Go(func() error {
			err := r.call(ctx, func(ctx context.Context) error {
				sigs, err := r.src.SourceSignal(ctx, in.ID)
				if err != nil {
					return err
				}
				mu.Lock()
				out[in.ID] = sigs
				mu.Unlock()
				return nil
			})
			if err != nil {
				fail("signal:"+in.ID, err)
			}
			return nil // soft-fail per input
		})
	}
	_ = g.Wait()
	return out
}

// locate finds the channel and the flows linked into it under the hierarchy
// tie-break (a flow belongs to the first listed channel it matches).
func (r *Resolver) locate(rs []*resource.Resource, channelID string) (*resource.Resource, []*resource.Resource) {
	for _, g := range r.matcher.BuildHierarchy(rs) {
		if g.Parent.ID == channelID && g.Parent.IsChannel() {
			return g.Parent, g.Children
		}
	}
	return nil, nil
}

func (r *Resolver) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
	defer cancel()
	return fn(ctx)
}

// Evaluate runs signals over ev in order and assembles the record. The first
// non-None verdict becomes the active input.
func Evaluate(ev *Evidence, signals []Signal) *Record {
	rec := &Record{
		ChannelID:           ev.ChannelID,
		VerificationSources: []string{},
		Signals:             make([]SignalResult, 0, len(signals)),
		RedundantSourceMode: ev.redundantSourceMode(),
		LogDetection:        logDetection(ev),
	}
	if ev.Channel != nil {
		rec.ChannelName = ev.Channel.Name
	}
	if ev.Failover != nil {
		rec.PrimaryInputID = ev.Failover.PrimaryInputID
		rec.SecondaryInputID = ev.Failover.SecondaryInputID
		rec.FailoverLossThresholdMs = ev.Failover.LossThresholdMs
		rec.FailoverRecoverBehavior = ev.Failover.RecoverBehavior
	}

	for i, s := range signals {
		v := s.Eval(ev)
		rec.Signals = append(rec.Signals, SignalResult{Name: s.Name, Rank: i + 1, Verdict: v})
		if v != None && rec.ActiveInput == None {
			rec.ActiveInput = v
		}
	}

	for _, s := range rec.Signals {
		switch {
		case s.Verdict == None:
		case s.Verdict == rec.ActiveInput:
			rec.VerificationSources = append(rec.VerificationSources, s.Name)
		default:
			rec.DissentingSources = append(rec.DissentingSources, s.Name)
		}
	}
	rec.VerificationLevel = len(rec.VerificationSources)

	if rec.ActiveInput != None {
		rec.ActiveInputID = activeInputID(ev, rec.ActiveInput, liveAgrees(rec))
		for _, in := range ev.inputs() {
			if in.ID == rec.ActiveInputID {
				rec.ActiveInputName = in.Name
				break
			}
		}
	}
	return rec
}

// liveAgrees reports whether the live signal ran and matched the verdict.
func liveAgrees(rec *Record) bool {
	for _, s := range rec.Signals {
		if s.Name == SignalLiveSignal {
			return s.Verdict == rec.ActiveInput
		}
	}
	return false
}

// activeInputID maps a verdict onto an input: the live input when the live
// signal backs the verdict, else the failover policy, else position.
func activeInputID(ev *Evidence, v Verdict, live bool) string {
	if src, ok := ev.singleActive(); ok && live {
		return src.InputID
	}
	if ev.Failover != nil {
		if v == Main && ev.Failover.PrimaryInputID != "" {
			return ev.Failover.PrimaryInputID
		}
		if v == Backup && ev.Failover.SecondaryInputID != "" {
			return ev.Failover.SecondaryInputID
		}
	}
	ins := ev.inputs()
	switch {
	case len(ins) == 0:
		return ""
	case len(ins) == 1 || v == Main:
		return ins[0].ID
	}
	return ins[1].ID
}
