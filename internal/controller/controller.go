// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package controller wires the analysis components together and runs them.
package controller // import "go.opentelemetry.io/staticanalyzer/internal/controller"

import (
	"bytes"
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/staticanalyzer/classfile"
	"go.opentelemetry.io/staticanalyzer/classpath"
	"go.opentelemetry.io/staticanalyzer/dispatchqueue"
	"go.opentelemetry.io/staticanalyzer/methodinfo"
	"go.opentelemetry.io/staticanalyzer/methodtable"
	"go.opentelemetry.io/staticanalyzer/metrics"
	"go.opentelemetry.io/staticanalyzer/report"
	"go.opentelemetry.io/staticanalyzer/staticanalyzer"
	"go.opentelemetry.io/staticanalyzer/store"
)

// Controller is an instance that runs a single analysis.
type Controller struct {
	config *Config
	// store overrides the store derived from config, if set.
	store store.Store
}

// New creates a new controller.
func New(cfg *Config) *Controller {
	return &Controller{config: cfg}
}

// WithStore makes the controller write its artifacts to s.
func (c *Controller) WithStore(s store.Store) *Controller {
	c.store = s
	return c
}

func (c *Controller) openStore(ctx context.Context) (store.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	if c.config.S3Bucket != "" {
		client, err := store.NewS3Client(ctx, c.config.S3Endpoint, c.config.S3Region)
		if err != nil {
			return nil, err
		}
		return store.NewS3(client, c.config.S3Bucket, c.config.S3Prefix), nil
	}
	return store.NewLocal(c.config.OutputDir)
}

// Run analyzes the configured entry points and stores the report and the method
// info archive. Entry points that cannot be resolved make Run return an
// ErrorWithExitCode after the artifacts were written.
func (c *Controller) Run(ctx context.Context) (*staticanalyzer.Summary, error) {
	roots, err := c.config.Roots()
	if err != nil {
		return nil, err
	}
	format, err := report.ParseFormat(c.config.ReportFormat)
	if err != nil {
		return nil, err
	}

	loader, err := classpath.New(c.config.ClassPathEntries(), uint32(c.config.ClassCacheSize))
	if err != nil {
		return nil, err
	}
	defer loader.Close()

	infos := methodinfo.NewTable()
	analyzer, err := staticanalyzer.New(staticanalyzer.Config{Workers: c.config.Workers},
		loader, methodtable.New(), infos)
	if err != nil {
		return nil, err
	}
	link := &dispatchqueue.Link{}
	if err = analyzer.Register(link); err != nil {
		return nil, fmt.Errorf("failed to register analyzer: %w", err)
	}
	queue, err := dispatchqueue.New(link)
	if err != nil {
		return nil, err
	}

	if c.config.MonitorInterval > 0 {
		stop := metrics.StartProgressLogger(ctx, c.config.MonitorInterval)
		defer stop()
	}

	summary, err := analyzer.Run(ctx, queue, roots)
	if err != nil {
		return summary, fmt.Errorf("analysis failed: %w", err)
	}

	st, err := c.openStore(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to open store: %w", err)
	}

	var buf bytes.Buffer
	if err = infos.Dump(&buf); err != nil {
		return summary, err
	}
	if err = st.Put(ctx, c.config.ArchiveName, &buf); err != nil {
		return summary, err
	}
	log.Infof("Stored %d method records in %s", infos.Len(), c.config.ArchiveName)

	rep, err := report.Build(summary, roots, loader)
	if err != nil {
		return summary, fmt.Errorf("failed to build report: %w", err)
	}
	buf.Reset()
	if err = rep.Write(&buf, format); err != nil {
		return summary, fmt.Errorf("failed to encode report: %w", err)
	}
	if err = st.Put(ctx, c.config.ReportName, &buf); err != nil {
		return summary, err
	}
	log.Infof("Stored report %s of run %s", c.config.ReportName, rep.RunID)

	stats := loader.Stats()
	log.Debugf("Class cache: %d hits, %d misses, %d evictions",
		stats.Hit, stats.Miss, stats.Evicted)

	if missing := unresolvedRoots(roots, summary); len(missing) > 0 {
		return summary, ErrorWithExitCode{
			error: fmt.Errorf("%d entry points could not be resolved, first: %s",
				len(missing), missing[0]),
			code: ExitIncomplete,
		}
	}
	return summary, nil
}

func unresolvedRoots(roots []classfile.MethodRef, summary *staticanalyzer.Summary) []classfile.MethodRef {
	unresolved := make(map[classfile.MethodRef]struct{}, len(summary.Unresolved))
	for _, u := range summary.Unresolved {
		unresolved[u.Ref] = struct{}{}
	}
	var missing []classfile.MethodRef
	for _, root := range roots {
		if _, ok := unresolved[root]; ok {
			missing = append(missing, root)
		}
	}
	return missing
}
