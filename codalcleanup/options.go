// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package codalcleanup

import (
	"fmt"

	"github.com/finodoc/codal-tools/common/options"
	"github.com/finodoc/codal-tools/common/util"
	"github.com/pkg/errors"
)

var Usage = `<options>

Copy every document of the source collection into the archive collection, then
delete from the source collection every document whose letterCode is not the
one to keep.

Nothing is written unless --execute is given.

See http://docs.mongodb.com/database-tools/ for more information about the connection options.`

const (
	DefaultSource         = "codal_letters"
	DefaultArchive        = "codal_letters_all"
	DefaultKeepLetterCode = "ن-۱۰"
	DefaultBatchSize      = 1000

	// URIEnvVar and DBEnvVar are read when --uri or --db is not given.
	URIEnvVar = "MONGODB_URI"
	DBEnvVar  = "DB_NAME"
)

var (
	ErrMissingURI = errors.New("Missing " + URIEnvVar + " (set env var or pass --uri)")
	ErrMissingDB  = errors.New("Missing " + DBEnvVar + " (set env var or pass --db)")
)

// MigrationOptions defines the set of options for the migration itself.
type MigrationOptions struct {
	Source         string `long:"source" value-name:"<collection-name>" default:"codal_letters" description:"collection to archive and clean up"`
	Archive        string `long:"archive" value-name:"<collection-name>" default:"codal_letters_all" description:"collection receiving the archived documents"`
	KeepLetterCode string `long:"keep-letter-code" value-name:"<letter-code>" default:"ن-۱۰" description:"letterCode of the documents kept in the source collection"`
	BatchSize      int    `long:"batch-size" value-name:"<count>" default:"1000" description:"number of upserts per bulk write"`
	Mode           string `long:"mode" value-name:"<mode>" default:"archive-and-cleanup" choice:"archive-only" choice:"cleanup-only" choice:"archive-and-cleanup" description:"phases to run"`
	Execute        bool   `long:"execute" description:"apply the changes; without it nothing is written"`
}

// Name returns a human-readable group name for migration options.
func (*MigrationOptions) Name() string {
	return "migration"
}

// Validate checks the migration options for consistency.
func (mo *MigrationOptions) Validate() error {
	if _, err := ParseMode(mo.Mode); err != nil {
		return err
	}
	if mo.BatchSize <= 0 {
		return fmt.Errorf("--batch-size must be a positive integer, got %v", mo.BatchSize)
	}
	if err := util.ValidateCollectionName(mo.Source); err != nil {
		return errors.Wrap(err, "invalid --source")
	}
	if err := util.ValidateCollectionName(mo.Archive); err != nil {
		return errors.Wrap(err, "invalid --archive")
	}
	if mo.Source == mo.Archive {
		return fmt.Errorf("--source and --archive must name different collections, both are %q", mo.Source)
	}
	return nil
}

// Options contains all the possible options used to configure codalcleanup.
type Options struct {
	*options.ToolOptions
	*MigrationOptions
}

// ParseOptions reads the command line arguments, the --config file and the
// environment into an Options. Configuration errors come back as a
// util.SetupError with the exit code to use. When --help or --version is set
// the remaining settings are not checked.
func ParseOptions(rawArgs []string, versionStr, gitCommit string) (Options, error) {
	opts := options.New("codalcleanup", versionStr, gitCommit, Usage,
		options.EnabledOptions{Auth: true, Connection: true, Namespace: true, URI: true})
	opts.UseEnvDefaults(options.EnvDefaults{URI: URIEnvVar, DB: DBEnvVar})

	migrationOpts := &MigrationOptions{}
	opts.AddOptions(migrationOpts)

	extraArgs, err := opts.ParseArgs(rawArgs)
	if err != nil {
		return Options{}, util.SetupError{
			Err:  errors.Wrap(err, "error parsing command line options"),
			Code: util.ExitBadOptions,
		}
	}
	if len(extraArgs) > 0 {
		return Options{}, util.SetupError{
			Err:  fmt.Errorf("too many positional arguments: %v", extraArgs),
			Code: util.ExitBadOptions,
		}
	}

	parsed := Options{opts, migrationOpts}
	if opts.Help || opts.Version {
		return parsed, nil
	}

	if opts.URI.ConnectionString == "" {
		return Options{}, util.SetupError{Err: ErrMissingURI, Code: util.ExitBadOptions}
	}
	if opts.Namespace.DB == "" {
		return Options{}, util.SetupError{Err: ErrMissingDB, Code: util.ExitBadOptions}
	}

	if err := opts.NormalizeOptionsAndURI(); err != nil {
		return Options{}, util.SetupError{Err: err, Code: util.ExitBadOptions}
	}
	if err := util.ValidateDBName(opts.Namespace.DB); err != nil {
		return Options{}, util.SetupError{
			Err:  errors.Wrap(err, "invalid --db"),
			Code: util.ExitBadOptions,
		}
	}
	if err := migrationOpts.Validate(); err != nil {
		return Options{}, util.SetupError{Err: err, Code: util.ExitBadOptions}
	}
	for _, coll := range []string{migrationOpts.Source, migrationOpts.Archive} {
		if err := util.ValidateFullNamespace(namespace(opts.Namespace.DB, coll)); err != nil {
			return Options{}, util.SetupError{Err: err, Code: util.ExitBadOptions}
		}
	}

	return parsed, nil
}
