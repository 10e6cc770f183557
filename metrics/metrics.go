// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package metrics // import "go.opentelemetry.io/staticanalyzer/metrics"

import (
	"context"
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"go.opentelemetry.io/staticanalyzer/vc"
)

var (
	// values holds the process-lifetime value of every metric, indexed by ID.
	values [IDMax]atomic.Int64

	metricTypes [IDMax]MetricType

	meter = otel.Meter("go.opentelemetry.io/staticanalyzer",
		metric.WithInstrumentationVersion(vc.Version()))
	counters = map[MetricID]metric.Int64Counter{}
	gauges   = map[MetricID]metric.Int64Gauge{}
)

func init() {
	for _, md := range definitions {
		metricTypes[md.ID] = md.Type
		switch typ := md.Type; typ {
		case MetricTypeCounter:
			counter, err := meter.Int64Counter(md.Name,
				metric.WithDescription(md.Description),
				metric.WithUnit(md.Unit))
			if err != nil {
				log.Errorf("Creating Int64Counter: %v", err)
				continue
			}
			counters[md.ID] = counter
		case MetricTypeGauge:
			gauge, err := meter.Int64Gauge(md.Name,
				metric.WithDescription(md.Description),
				metric.WithUnit(md.Unit))
			if err != nil {
				log.Errorf("Creating Int64Gauge: %v", err)
				continue
			}
			gauges[md.ID] = gauge
		default:
			panic(fmt.Sprintf("Unknown metric type: %v", typ))
		}
	}
}

// AddSlice records a batch of metrics. Counter values are added to the running total,
// gauge values replace the previous value.
func AddSlice(newMetrics []Metric) {
	ctx := context.Background()
	for _, m := range newMetrics {
		if m.ID <= IDInvalid || m.ID >= IDMax {
			log.Errorf("Metric value %d out of range [%d,%d]- needs investigation",
				m.ID, IDInvalid+1, IDMax-1)
			continue
		}

		switch metricTypes[m.ID] {
		case MetricTypeCounter:
			if m.Value == 0 {
				continue
			}
			values[m.ID].Add(int64(m.Value))
			if counter, ok := counters[m.ID]; ok {
				counter.Add(ctx, int64(m.Value))
			}
		case MetricTypeGauge:
			values[m.ID].Store(int64(m.Value))
			if gauge, ok := gauges[m.ID]; ok {
				gauge.Record(ctx, int64(m.Value))
			}
		default:
			log.Warnf("Invalid metric id %d, skipping", m.ID)
		}
	}
}

// Add records a single metric.
func Add(id MetricID, value MetricValue) {
	AddSlice([]Metric{{id, value}})
}

// Get returns the current value of a single metric.
func Get(id MetricID) MetricValue {
	if id <= IDInvalid || id >= IDMax {
		return 0
	}
	return MetricValue(values[id].Load())
}

// Snapshot returns the current value of every defined metric.
func Snapshot() Summary {
	s := make(Summary, len(definitions))
	for _, md := range definitions {
		s[md.ID] = MetricValue(values[md.ID].Load())
	}
	return s
}
