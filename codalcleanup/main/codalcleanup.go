// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Main package for the codalcleanup tool.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/finodoc/codal-tools/codalcleanup"
	"github.com/finodoc/codal-tools/common/log"
	"github.com/finodoc/codal-tools/common/progress"
	"github.com/finodoc/codal-tools/common/util"
)

const (
	progressBarLength   = 24
	progressBarWaitTime = time.Second
)

var (
	VersionStr = "built-without-version-string"
	GitCommit  = "build-without-git-commit"
)

func main() {
	opts, err := codalcleanup.ParseOptions(os.Args[1:], VersionStr, GitCommit)
	if err != nil {
		log.Logvf(log.Always, "ERROR: %v", err)
		if !errors.Is(err, codalcleanup.ErrMissingURI) && !errors.Is(err, codalcleanup.ErrMissingDB) {
			log.Logvf(log.Always, "try 'codalcleanup --help' for more information")
		}
		os.Exit(util.ExitCode(err))
	}

	log.SetVerbosity(opts.Verbosity)

	// print help, if specified
	if opts.PrintHelp(false) {
		os.Exit(util.ExitClean)
	}

	// print version, if specified
	if opts.PrintVersion() {
		os.Exit(util.ExitClean)
	}

	// verify uri options and log them
	opts.URI.LogUnsupportedOptions()

	cleanup, err := codalcleanup.New(opts)
	if err != nil {
		log.Logvf(log.Always, "%v", err)
		os.Exit(util.ExitCode(err))
	}

	progressManager := progress.NewBarWriter(log.Writer(0), progressBarWaitTime, progressBarLength)
	progressManager.Start()
	cleanup.ProgressManager = progressManager

	result, err := cleanup.Run(context.Background())
	progressManager.Stop()
	cleanup.Close()
	if err != nil {
		log.Logvf(log.Always, "Failed: %v", err)
		os.Exit(util.ExitCode(err))
	}

	for _, line := range result.Summary() {
		log.Logv(log.Always, line)
	}
}
