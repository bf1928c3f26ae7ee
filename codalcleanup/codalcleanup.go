// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package codalcleanup archives the codal letters collection and then prunes
// it down to the documents of a single letter code.
package codalcleanup

import (
	"context"
	"fmt"
	"strconv"

	"github.com/finodoc/codal-tools/common/db"
	"github.com/finodoc/codal-tools/common/log"
	"github.com/finodoc/codal-tools/common/progress"
	"github.com/finodoc/codal-tools/common/util"
	"github.com/samber/lo"
)

// CodalCleanup is a container for the user-specified options and the
// collections the migration works on.
type CodalCleanup struct {
	MigrationOptions *MigrationOptions

	// DBName is the database holding both collections, used in log lines.
	DBName string

	Source  SourceCollection
	Archive ArchiveCollection

	// ServerVersion of the connected server; the zero value disables
	// writing empty timestamps as-is.
	ServerVersion db.Version

	// ProgressManager, if set, shows a progress bar for the archive phase.
	ProgressManager progress.Manager

	// for connecting to the db
	SessionProvider *db.SessionProvider
}

// New connects to the server described by opts and returns a CodalCleanup
// working on its source and archive collections.
func New(opts Options) (*CodalCleanup, error) {
	provider, err := db.NewSessionProvider(*opts.ToolOptions)
	if err != nil {
		return nil, util.SetupError{
			Err:  fmt.Errorf("error connecting to host: %v", err),
			Code: util.ExitError,
		}
	}

	version, err := provider.ServerVersionArray(context.Background())
	if err != nil {
		log.Logvf(log.DebugLow, "could not determine server version: %v", err)
		version = db.Version{}
	} else {
		log.Logvf(log.DebugLow, "connected to server version %v", version)
	}

	database := provider.DB(opts.Namespace.DB)
	return &CodalCleanup{
		MigrationOptions: opts.MigrationOptions,
		DBName:           opts.Namespace.DB,
		Source:           database.Collection(opts.MigrationOptions.Source),
		Archive:          database.Collection(opts.MigrationOptions.Archive),
		ServerVersion:    version,
		SessionProvider:  provider,
	}, nil
}

// Close releases the connection opened by New.
func (cc *CodalCleanup) Close() {
	if cc.SessionProvider != nil {
		cc.SessionProvider.Close()
	}
}

// Result describes a finished run.
type Result struct {
	Mode    Mode
	Execute bool

	// Archived is the number of documents processed by the archive phase.
	Archived int64

	// Batches is the number of bulk writes the archive phase flushed.
	Batches int

	// Deleted is the number of documents deleted by the cleanup phase, or
	// that would have been without --execute.
	Deleted int64
}

// Summary returns the closing lines of a run.
func (r Result) Summary() []string {
	if !r.Execute {
		lines := []string{"DRY-RUN complete. Nothing was written."}
		if r.Mode.Runs(PhaseCleanup) {
			lines = append(lines, fmt.Sprintf("Would delete: %v docs", r.Deleted))
		}
		return lines
	}
	return []string{
		"DONE.",
		fmt.Sprintf("archived=%v deleted=%v",
			lo.Ternary(r.Mode.Runs(PhaseArchive), strconv.FormatInt(r.Archived, 10), "skipped"),
			lo.Ternary(r.Mode.Runs(PhaseCleanup), strconv.FormatInt(r.Deleted, 10), "skipped")),
	}
}

// Run executes the phases selected by the mode: archive first, then cleanup.
func (cc *CodalCleanup) Run(ctx context.Context) (Result, error) {
	mode, err := ParseMode(cc.MigrationOptions.Mode)
	if err != nil {
		return Result{}, util.SetupError{Err: err, Code: util.ExitBadOptions}
	}
	result := Result{Mode: mode, Execute: cc.MigrationOptions.Execute}

	if !result.Execute {
		log.Logv(log.Always, "DRY-RUN: no document will be written or deleted (pass --execute to apply)")
	}

	if mode.Runs(PhaseArchive) {
		archiver := &Archiver{
			Source:        cc.Source,
			Target:        cc.Archive,
			DBName:        cc.DBName,
			BatchSize:     cc.MigrationOptions.BatchSize,
			Execute:       result.Execute,
			ServerVersion: cc.ServerVersion,
		}
		if cc.ProgressManager != nil {
			archiver.Progress = progress.NewCounter(0)
			barName := namespace(cc.DBName, cc.Archive.Name())
			cc.ProgressManager.Attach(barName, archiver.Progress)
			defer cc.ProgressManager.Detach(barName)
		}

		result.Archived, err = archiver.Archive(ctx)
		result.Batches = archiver.Batches()
		if err != nil {
			return result, err
		}
	}

	if mode.Runs(PhaseCleanup) {
		cleaner := &Cleaner{
			Source:         cc.Source,
			DBName:         cc.DBName,
			KeepLetterCode: cc.MigrationOptions.KeepLetterCode,
			Execute:        result.Execute,
		}
		result.Deleted, err = cleaner.Cleanup(ctx)
		if err != nil {
			return result, err
		}
	}

	return result, nil
}
