// Package alerting classifies alert conditions, suppresses repeat
// notifications, and runs the polled and pushed alert paths.
package alerting

import "github.com/edirooss/ingestwatch/internal/domain/telemetry"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// severities maps condition types to their tier. The tiers are disjoint.
var severities = map[string]Severity{
	telemetry.EventNoInputData:      SeverityCritical,
	telemetry.EventPipelineFailover: SeverityCritical,
	telemetry.EventPipelineRecover:  SeverityWarning,
	telemetry.EventStreamStop:       SeverityWarning,
	telemetry.EventStreamStart:      SeverityInfo,
}

// Classify returns the severity tier of a condition type. Unknown types are
// info.
func Classify(conditionType string) Severity {
	if s, ok := severities[conditionType]; ok {
		return s
	}
	return SeverityInfo
}
