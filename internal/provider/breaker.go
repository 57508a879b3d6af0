package provider

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/edirooss/ingestwatch/internal/domain/resource"
	"github.com/edirooss/ingestwatch/internal/domain/telemetry"
	"github.com/edirooss/ingestwatch/internal/metrics"
)

// BreakerOptions configures the circuit breaker around a Provider.
type BreakerOptions struct {
	Name             string
	MaxRequests      uint32        // requests allowed in half-open state
	Interval         time.Duration // closed-state count reset period
	Timeout          time.Duration // open-state duration before half-open
	FailureThreshold uint32        // consecutive failures that open the circuit
}

func (o *BreakerOptions) setDefaults() {
	if o.Name == "" {
		o.Name = "telemetry"
	}
	if o.MaxRequests == 0 {
		o.MaxRequests = 3
	}
	if o.Interval <= 0 {
		o.Interval = time.Minute
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.FailureThreshold == 0 {
		o.FailureThreshold = 5
	}
}

// Breaker wraps a Provider with a circuit breaker so that a dead backend
// fails fast instead of costing every resolution a full call timeout.
//
// ErrNotFound and caller cancellation do not count as backend failures.
type Breaker struct {
	log   *zap.Logger
	inner Provider
	cb    *gobreaker.CircuitBreaker[any]
	name  string
}

var _ Provider = (*Breaker)(nil)

func NewBreaker(log *zap.Logger, inner Provider, opts BreakerOptions) *Breaker {
	if log == nil {
		log = zap.NewNop()
	}
	opts.setDefaults()
	log = log.Named("breaker")

	metrics.CircuitBreakerState.WithLabelValues(opts.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: opts.MaxRequests,
		Interval:    opts.Interval,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
		IsSuccessful: breakerSuccess,
	})

	return &Breaker{log: log, inner: inner, cb: cb, name: opts.Name}
}

// State returns the current breaker state ("closed", "half-open", "open").
func (b *Breaker) State() string { return b.cb.State().String() }

// breakerSuccess reports whether err counts as a success for the breaker;
// missing keys and caller cancellation do.
func breakerSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, context.Canceled)
}

func (b *Breaker) execute(fn func() (any, error)) (any, error) {
	out, err := b.cb.Execute(fn)
	switch {
	case breakerSuccess(err):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		b.log.Debug("request rejected", zap.Error(err))
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	}
	return out, err
}

func (b *Breaker) ListResources(ctx context.Context) ([]*resource.Resource, error) {
	out, err := b.execute(func() (any, error) { return b.inner.ListResources(ctx) })
	if err != nil {
		return nil, err
	}
	return out.([]*resource.Resource), nil
}

func (b *Breaker) EventHistory(ctx context.Context, channelID string, since time.Time) ([]telemetry.Event, error) {
	out, err := b.execute(func() (any, error) { return b.inner.EventHistory(ctx, channelID, since) })
	if err != nil {
		return nil, err
	}
	return out.([]telemetry.Event), nil
}

func (b *Breaker) SourceSignal(ctx context.Context, inputID string) ([]telemetry.SourceSignal, error) {
	out, err := b.execute(func() (any, error) { return b.inner.SourceSignal(ctx, inputID) })
	if err != nil {
		return nil, err
	}
	return out.([]telemetry.SourceSignal), nil
}

func (b *Breaker) FailoverConfig(ctx context.Context, channelID string) (*telemetry.FailoverConfig, error) {
	out, err := b.execute(func() (any, error) { return b.inner.FailoverConfig(ctx, channelID) })
	if err != nil {
		return nil, err
	}
	return out.(*telemetry.FailoverConfig), nil
}

func (b *Breaker) ActiveConditions(ctx context.Context, channelID string) ([]telemetry.Condition, error) {
	out, err := b.execute(func() (any, error) { return b.inner.ActiveConditions(ctx, channelID) })
	if err != nil {
		return nil, err
	}
	return out.([]telemetry.Condition), nil
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}
