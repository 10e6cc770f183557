// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"runtime"
	"time"

	"github.com/peterbourgon/ff/v3"

	"go.opentelemetry.io/staticanalyzer/internal/controller"
)

const (
	// Default values for CLI flags
	defaultArgClassCacheSize  = 4096
	defaultArgOutputDir       = "."
	defaultArgArchiveName     = "methods.sami"
	defaultArgReportName      = "report.json"
	defaultArgReportFormat    = "json"
	defaultArgMonitorInterval = 5 * time.Second
)

// Help strings for command line arguments
var (
	classPathHelp = "Classpath to analyze: directories and jar files separated by the " +
		"OS path list separator."
	entryHelp = "Entry point method in the form pkg/Cls.name(descriptor), " +
		"e.g. com/example/Main.main([Ljava/lang/String;)V. May be repeated."
	workersHelp         = "Number of methods analyzed in parallel. Defaults to the number of CPUs."
	classCacheSizeHelp  = "Maximum number of parsed classes kept in memory."
	outputDirHelp       = "Directory receiving the report and the method info archive."
	archiveNameHelp     = "Name of the method info archive."
	reportNameHelp      = "Name of the report."
	reportFormatHelp    = "Encoding of the report: json or yaml."
	s3BucketHelp        = "Store the artifacts in this S3 bucket instead of the output directory."
	s3PrefixHelp        = "Key prefix of the artifacts in the S3 bucket."
	s3EndpointHelp      = "Endpoint of an S3 compatible service, addressed in path style."
	s3RegionHelp        = "Region of the S3 bucket. Defaults to the AWS configuration."
	monitorIntervalHelp = "Interval of the progress log lines. Zero disables them."
	verboseModeHelp     = "Enable verbose logging and debugging capabilities."
	versionHelp         = "Show version."
	configHelp          = "Path to a configuration file with one \"flag value\" pair per line."
)

func parseArgs(arguments []string) (*controller.Config, error) {
	var args controller.Config

	fs := flag.NewFlagSet("static-analyzer", flag.ContinueOnError)

	// Please keep the parameters ordered alphabetically in the source-code.
	fs.StringVar(&args.ArchiveName, "archive-name", defaultArgArchiveName, archiveNameHelp)

	fs.UintVar(&args.ClassCacheSize, "class-cache-size", defaultArgClassCacheSize,
		classCacheSizeHelp)
	fs.StringVar(&args.ClassPath, "classpath", "", classPathHelp)
	fs.String("config", "", configHelp)
	fs.StringVar(&args.ClassPath, "cp", "", "Shorthand for -classpath.")

	fs.Var(&args.EntryPoints, "entry", entryHelp)

	fs.DurationVar(&args.MonitorInterval, "monitor-interval", defaultArgMonitorInterval,
		monitorIntervalHelp)

	fs.StringVar(&args.OutputDir, "output-dir", defaultArgOutputDir, outputDirHelp)

	fs.StringVar(&args.ReportFormat, "report-format", defaultArgReportFormat, reportFormatHelp)
	fs.StringVar(&args.ReportName, "report-name", defaultArgReportName, reportNameHelp)

	fs.StringVar(&args.S3Bucket, "s3-bucket", "", s3BucketHelp)
	fs.StringVar(&args.S3Endpoint, "s3-endpoint", "", s3EndpointHelp)
	fs.StringVar(&args.S3Prefix, "s3-prefix", "", s3PrefixHelp)
	fs.StringVar(&args.S3Region, "s3-region", "", s3RegionHelp)

	fs.BoolVar(&args.VerboseMode, "v", false, "Shorthand for -verbose.")
	fs.BoolVar(&args.VerboseMode, "verbose", false, verboseModeHelp)
	fs.BoolVar(&args.Version, "version", false, versionHelp)

	fs.IntVar(&args.Workers, "workers", runtime.NumCPU(), workersHelp)

	fs.Usage = func() {
		fs.PrintDefaults()
	}

	args.Fs = fs

	return &args, ff.Parse(fs, arguments,
		ff.WithEnvVarPrefix("STATIC_ANALYZER"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		// This will ignore configuration file (only) options that the current
		// version does not recognize.
		ff.WithIgnoreUndefined(true),
		ff.WithAllowMissingConfigFile(true),
	)
}
