// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package vc provides buildtime information.
package vc // import "go.opentelemetry.io/staticanalyzer/vc"

import "fmt"

var (
	// The following variables are set at link time using ldflags, e.g.
	// -X go.opentelemetry.io/staticanalyzer/vc.version=v0.1.0

	// revision of the analyzer
	revision = ""
	// buildTimestamp, timestamp of the build
	buildTimestamp = ""
	// version in vX.Y.Z{-N-abbrev} format (via git-describe --tags)
	version = "v0.0.0-dev"
)

// Revision of the analyzer.
func Revision() string {
	return revision
}

// BuildTimestamp returns the timestamp of the build.
func BuildTimestamp() string {
	return buildTimestamp
}

// Version in vX.Y.Z{-N-abbrev} format.
func Version() string {
	return version
}

// String returns a one line description of the build.
func String() string {
	return fmt.Sprintf("%s (revision %q, built %q)", version, revision, buildTimestamp)
}
