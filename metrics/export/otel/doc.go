// Package otel publishes authcore engine metrics through an OpenTelemetry
// Meter supplied by the caller.
//
// Each engine counter becomes an Int64ObservableCounter; the validation
// latency histogram becomes one cumulative Int64ObservableGauge per bucket
// plus a count gauge. A single callback reads the engine snapshot on every
// collection.
package otel
