// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package metrics // import "go.opentelemetry.io/staticanalyzer/metrics"

// To add a new metric, append an ID here and a matching entry to definitions.
// Never renumber existing IDs.
const (
	// Leave out the 0 value. It's an indication of not explicitly initialized variables.
	IDInvalid MetricID = iota

	// Work identifiers handed to the dispatch queue.
	IDQueueSubmitted

	// Work identifiers forwarded to the processor after deduplication.
	IDQueueForwarded

	// Work identifiers dropped because they were submitted before.
	IDQueueDuplicates

	// Batches for which the processor reported failure.
	IDQueueProcessorFailures

	// Methods whose bytecode was analyzed.
	IDAnalyzedMethods

	// Methods whose bytecode could not be analyzed.
	IDAnalysisFailures

	// Method references that could not be resolved on the classpath.
	IDUnresolvedMethods

	// Number of distinct classes referenced by analyzed code.
	IDDiscoveredClasses

	// Parsed class cache hits.
	IDClassCacheHit

	// Parsed class cache misses.
	IDClassCacheMiss

	// Work items waiting for an analysis worker.
	IDPendingWork

	// Class files read and parsed from the classpath.
	IDClassesLoaded

	// IDMax is one past the highest valid ID.
	IDMax
)

var definitions = []MetricDefinition{
	{IDQueueSubmitted, "staticanalyzer.queue.submitted",
		"Work identifiers submitted to the dispatch queue", "{id}", MetricTypeCounter},
	{IDQueueForwarded, "staticanalyzer.queue.forwarded",
		"Work identifiers forwarded to the processor", "{id}", MetricTypeCounter},
	{IDQueueDuplicates, "staticanalyzer.queue.duplicates",
		"Work identifiers dropped as already seen", "{id}", MetricTypeCounter},
	{IDQueueProcessorFailures, "staticanalyzer.queue.processor_failures",
		"Batches the processor rejected", "{batch}", MetricTypeCounter},
	{IDAnalyzedMethods, "staticanalyzer.analysis.methods",
		"Methods analyzed", "{method}", MetricTypeCounter},
	{IDAnalysisFailures, "staticanalyzer.analysis.failures",
		"Methods whose analysis failed", "{method}", MetricTypeCounter},
	{IDUnresolvedMethods, "staticanalyzer.analysis.unresolved",
		"Method references not found on the classpath", "{method}", MetricTypeCounter},
	{IDDiscoveredClasses, "staticanalyzer.analysis.discovered_classes",
		"Distinct classes referenced by analyzed code", "{class}", MetricTypeGauge},
	{IDClassCacheHit, "staticanalyzer.classpath.cache_hits",
		"Parsed class cache hits", "{lookup}", MetricTypeCounter},
	{IDClassCacheMiss, "staticanalyzer.classpath.cache_misses",
		"Parsed class cache misses", "{lookup}", MetricTypeCounter},
	{IDPendingWork, "staticanalyzer.analysis.pending",
		"Work items waiting for a worker", "{method}", MetricTypeGauge},
	{IDClassesLoaded, "staticanalyzer.classpath.loaded",
		"Class files read from the classpath", "{class}", MetricTypeCounter},
}

// GetDefinitions returns the definitions of all metrics.
func GetDefinitions() []MetricDefinition {
	return append([]MetricDefinition(nil), definitions...)
}
