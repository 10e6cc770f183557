// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package xsync wraps the sync primitives so that the data a lock protects can only be
// reached through the lock.
package xsync // import "go.opentelemetry.io/staticanalyzer/libpf/xsync"
