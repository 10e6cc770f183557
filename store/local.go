// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package store // import "go.opentelemetry.io/staticanalyzer/store"

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const localTempPrefix = ".staticanalyzer-"

// Local stores artifacts as files in a directory.
type Local struct {
	dir string
}

var _ Store = (*Local)(nil)

// NewLocal creates dir if needed and returns a store writing into it.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return filepath.Join(l.dir, name), nil
}

// Put writes to a temporary file first, so that readers never observe a partially
// written object.
func (l *Local) Put(_ context.Context, name string, r io.Reader) error {
	finalPath, err := l.path(name)
	if err != nil {
		return err
	}

	temp, err := os.CreateTemp(l.dir, localTempPrefix)
	if err != nil {
		return fmt.Errorf("failed to create file in output directory: %w", err)
	}
	defer os.Remove(temp.Name())
	defer temp.Close()

	if _, err = io.Copy(temp, r); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err = temp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err = os.Rename(temp.Name(), finalPath); err != nil {
		return fmt.Errorf("failed to move file to final location: %w", err)
	}
	return nil
}

func (l *Local) Get(_ context.Context, name string) (io.ReadCloser, error) {
	path, err := l.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	return f, err
}

func (l *Local) String() string {
	return l.dir
}
