// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists analysis artifacts to a local directory or an S3 bucket.
package store // import "go.opentelemetry.io/staticanalyzer/store"

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned by Get for missing objects.
var ErrNotExist = errors.New("object does not exist")

// Store is a flat namespace of named artifacts.
type Store interface {
	// Put stores the content of r under name, replacing an existing object.
	Put(ctx context.Context, name string, r io.Reader) error
	// Get opens the object stored under name.
	Get(ctx context.Context, name string) (io.ReadCloser, error)
}
