// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package report renders the outcome of an analysis run.
package report // import "go.opentelemetry.io/staticanalyzer/report"

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"go.opentelemetry.io/staticanalyzer/classfile"
	"go.opentelemetry.io/staticanalyzer/classpath"
	"go.opentelemetry.io/staticanalyzer/staticanalyzer"
	"go.opentelemetry.io/staticanalyzer/vc"
)

// Format selects the encoding of a report.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// ClassSource provides the load location of classes.
type ClassSource interface {
	Load(name string) (*classpath.Entry, error)
}

// Class is a class discovered during the run.
type Class struct {
	Name string `json:"name" yaml:"name"`
	// Source and Digest are empty for classes missing from the classpath.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	Digest string `json:"sha256,omitempty" yaml:"sha256,omitempty"`
}

// Problem is a method the run could not follow.
type Problem struct {
	Method string `json:"method" yaml:"method"`
	Reason string `json:"reason" yaml:"reason"`
}

// Report is the serializable outcome of a run.
type Report struct {
	RunID          string    `json:"runId" yaml:"runId"`
	Version        string    `json:"version" yaml:"version"`
	GeneratedAt    time.Time `json:"generatedAt" yaml:"generatedAt"`
	DurationMillis int64     `json:"durationMillis" yaml:"durationMillis"`
	EntryPoints    []string  `json:"entryPoints" yaml:"entryPoints"`
	Methods        []string  `json:"methods" yaml:"methods"`
	Classes        []Class   `json:"classes" yaml:"classes"`
	Unresolved     []Problem `json:"unresolved" yaml:"unresolved"`
	Failed         []Problem `json:"failed" yaml:"failed"`
	InvokeDynamic  int       `json:"invokeDynamicSites" yaml:"invokeDynamicSites"`
}

func problems(in []staticanalyzer.Unresolved) []Problem {
	out := make([]Problem, 0, len(in))
	for _, u := range in {
		out = append(out, Problem{Method: u.Ref.String(), Reason: u.Reason})
	}
	return out
}

// Build creates the report of a run from the given entry points. Classes are
// annotated with their location as found by src.
func Build(summary *staticanalyzer.Summary, roots []classfile.MethodRef,
	src ClassSource) (*Report, error) {
	runID, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}

	r := &Report{
		RunID:          runID.String(),
		Version:        vc.Version(),
		GeneratedAt:    time.Now().UTC(),
		DurationMillis: summary.Duration.Milliseconds(),
		EntryPoints:    make([]string, 0, len(roots)),
		Methods:        make([]string, 0, len(summary.Methods)),
		Classes:        make([]Class, 0, len(summary.Classes)),
		Unresolved:     problems(summary.Unresolved),
		Failed:         problems(summary.Failed),
		InvokeDynamic:  summary.InvokeDynamic,
	}
	for _, root := range roots {
		r.EntryPoints = append(r.EntryPoints, root.String())
	}
	for _, m := range summary.Methods {
		r.Methods = append(r.Methods, m.String())
	}
	for _, name := range summary.Classes {
		c := Class{Name: name}
		e, err := src.Load(name)
		switch {
		case err == nil:
			c.Source = e.Source
			c.Digest = e.DigestString()
		case !errors.Is(err, classpath.ErrClassNotFound):
			return nil, err
		}
		r.Classes = append(r.Classes, c)
	}
	return r, nil
}

// Write encodes the report in the given format.
func (r *Report) Write(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown report format %q", format)
}
