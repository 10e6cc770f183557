// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics keeps the analyzer's internal counters and gauges and mirrors them to
// the OpenTelemetry metrics API.
//
// Counters accumulate for the lifetime of the process. Gauges hold the last value
// reported. Snapshot returns the current values of both.
package metrics // import "go.opentelemetry.io/staticanalyzer/metrics"
