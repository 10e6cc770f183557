// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "go.opentelemetry.io/staticanalyzer/internal/controller"

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/staticanalyzer/classfile"
	"go.opentelemetry.io/staticanalyzer/report"
)

type Config struct {
	// ClassPath lists directories and archives separated by the OS path list
	// separator.
	ClassPath       string
	EntryPoints     StringList
	Workers         int
	ClassCacheSize  uint
	OutputDir       string
	ArchiveName     string
	ReportName      string
	ReportFormat    string
	S3Bucket        string
	S3Prefix        string
	S3Endpoint      string
	S3Region        string
	MonitorInterval time.Duration
	VerboseMode     bool
	Version         bool

	Fs *flag.FlagSet
}

// StringList is a flag.Value collecting every occurrence of a repeatable flag.
type StringList []string

func (l *StringList) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

func (l *StringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// Dump visits all flag sets, and dumps them all to debug
// Used for verbose mode logging.
func (cfg *Config) Dump() {
	log.Debug("Config:")
	cfg.Fs.VisitAll(func(f *flag.Flag) {
		log.Debug(fmt.Sprintf("%s: %v", f.Name, f.Value))
	})
}

// ClassPathEntries splits ClassPath into its entries.
func (cfg *Config) ClassPathEntries() []string {
	var entries []string
	for _, e := range filepath.SplitList(cfg.ClassPath) {
		if e = strings.TrimSpace(e); e != "" {
			entries = append(entries, e)
		}
	}
	return entries
}

// Roots parses the entry points.
func (cfg *Config) Roots() ([]classfile.MethodRef, error) {
	roots := make([]classfile.MethodRef, 0, len(cfg.EntryPoints))
	for _, e := range cfg.EntryPoints {
		ref, err := classfile.ParseMethodRef(strings.TrimSpace(e))
		if err != nil {
			return nil, fmt.Errorf("invalid entry point: %w", err)
		}
		roots = append(roots, ref)
	}
	return roots, nil
}

func validObjectName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

// Validate runs validations on the provided configuration, and returns errors
// if invalid values were provided.
func (cfg *Config) Validate() error {
	if len(cfg.ClassPathEntries()) == 0 {
		return errors.New("no classpath given")
	}
	if len(cfg.EntryPoints) == 0 {
		return errors.New("no entry point given")
	}
	if _, err := cfg.Roots(); err != nil {
		return err
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("invalid number of workers: %d", cfg.Workers)
	}
	if cfg.ClassCacheSize == 0 || cfg.ClassCacheSize > math.MaxUint32 {
		return fmt.Errorf("invalid class cache size: %d", cfg.ClassCacheSize)
	}
	if !validObjectName(cfg.ArchiveName) {
		return fmt.Errorf("invalid archive name %q", cfg.ArchiveName)
	}
	if !validObjectName(cfg.ReportName) {
		return fmt.Errorf("invalid report name %q", cfg.ReportName)
	}
	if cfg.ArchiveName == cfg.ReportName {
		return errors.New("archive and report must have different names")
	}
	if _, err := report.ParseFormat(cfg.ReportFormat); err != nil {
		return err
	}
	if cfg.S3Bucket == "" && (cfg.S3Prefix != "" || cfg.S3Endpoint != "") {
		return errors.New("S3 options require an S3 bucket")
	}
	if cfg.S3Bucket == "" && cfg.OutputDir == "" {
		return errors.New("either an output directory or an S3 bucket is required")
	}
	if cfg.MonitorInterval < 0 {
		return fmt.Errorf("invalid monitor interval: %v", cfg.MonitorInterval)
	}
	return nil
}
