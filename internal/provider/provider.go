// Package provider defines the telemetry provider the engine reads from and
// ships the in-memory and circuit-breaker implementations of it. The Redis
// implementation lives in internal/redis.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/edirooss/ingestwatch/internal/domain/resource"
	"github.com/edirooss/ingestwatch/internal/domain/telemetry"
)

// ErrNotFound is returned when the requested channel, input or policy is
// unknown to the provider.
var ErrNotFound = errors.New("not found")

// Provider is the read side of the telemetry backend.
//
// Implementations must be safe for concurrent use. Empty results are not
// errors: a channel without history returns a nil slice.
type Provider interface {
	// ListResources returns every channel and flow in listing order.
	ListResources(ctx context.Context) ([]*resource.Resource, error)

	// EventHistory returns the channel's events with Time >= since, oldest
	// first.
	EventHistory(ctx context.Context, channelID string, since time.Time) ([]telemetry.Event, error)

	// SourceSignal returns the per-address signal presence of an input.
	SourceSignal(ctx context.Context, inputID string) ([]telemetry.SourceSignal, error)

	// FailoverConfig returns the channel's primary/secondary input policy,
	// or ErrNotFound when none is configured.
	FailoverConfig(ctx context.Context, channelID string) (*telemetry.FailoverConfig, error)

	// ActiveConditions returns the alert conditions currently raised on a
	// channel, cleared ones included.
	ActiveConditions(ctx context.Context, channelID string) ([]telemetry.Condition, error)
}
