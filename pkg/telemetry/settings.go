// Package telemetry provides OpenTelemetry integration for the gateway
// core. It allows tracking attempt execution, billing and streaming with
// customizable spans, adapted from the teacher SDK's own telemetry package
// to gateway-shaped operations.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Settings configures telemetry for gateway operations. Telemetry is
// disabled by default and must be explicitly enabled.
type Settings struct {
	// IsEnabled controls whether telemetry is active. Defaults to false.
	IsEnabled bool

	// RecordInputs controls whether request bodies are recorded in spans.
	RecordInputs bool

	// RecordOutputs controls whether response bodies are recorded in spans.
	RecordOutputs bool

	// Metadata contains additional key-value pairs included on every span.
	Metadata map[string]attribute.Value

	// Tracer is a custom tracer. If nil, the global tracer is used.
	Tracer trace.Tracer
}

// DefaultSettings returns Settings with telemetry disabled.
func DefaultSettings() *Settings {
	return &Settings{
		IsEnabled:    false,
		RecordInputs: true,
		Metadata:     make(map[string]attribute.Value),
	}
}

// WithEnabled returns a copy of Settings with IsEnabled set to enabled.
func (s *Settings) WithEnabled(enabled bool) *Settings {
	cp := *s
	cp.IsEnabled = enabled
	return &cp
}
