// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package metrics // import "go.opentelemetry.io/staticanalyzer/metrics"

// MetricID is the type for metric IDs.
type MetricID uint16

// MetricValue is the type for metric values.
type MetricValue int64

// Metric is the type for a metric id/value pair.
type Metric struct {
	ID    MetricID
	Value MetricValue
}

// MetricType distinguishes accumulating counters from gauges.
type MetricType string

const (
	MetricTypeCounter MetricType = "counter"
	MetricTypeGauge   MetricType = "gauge"
)

// MetricDefinition describes a single metric.
type MetricDefinition struct {
	ID          MetricID
	Name        string
	Description string
	Unit        string
	Type        MetricType
}

// Summary maps metric IDs to their current values.
type Summary map[MetricID]MetricValue
