// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package metrics // import "go.opentelemetry.io/staticanalyzer/metrics"

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// StartProgressLogger logs a progress line every interval until ctx is canceled or the
// returned stop function is called.
func StartProgressLogger(ctx context.Context, interval time.Duration) func() {
	ctx, cancel := context.WithCancel(ctx)
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				logProgress(Snapshot())
			case <-ctx.Done():
				return
			}
		}
	}()
	return cancel
}

func logProgress(s Summary) {
	log.Infof("Analyzed %d methods (%d failed, %d unresolved), %d pending, "+
		"%d classes discovered, queue forwarded %d of %d submitted",
		s[IDAnalyzedMethods], s[IDAnalysisFailures], s[IDUnresolvedMethods],
		s[IDPendingWork], s[IDDiscoveredClasses],
		s[IDQueueForwarded], s[IDQueueSubmitted])
}
