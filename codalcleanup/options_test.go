// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package codalcleanup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/finodoc/codal-tools/common/testtype"
	"github.com/finodoc/codal-tools/common/testutil"
	"github.com/finodoc/codal-tools/common/util"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURI = "mongodb://localhost:27017"

func clearEnv(t *testing.T) {
	t.Setenv(URIEnvVar, "")
	t.Setenv(DBEnvVar, "")
}

func exitCodeOf(t *testing.T, err error) int {
	var setupErr util.SetupError
	require.True(t, errors.As(err, &setupErr), "error %v is a SetupError", err)
	return setupErr.Code
}

func TestParseOptionsRequiredSettings(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	t.Run("missing URI and DB reports the URI", func(t *testing.T) {
		clearEnv(t)
		_, err := ParseOptions([]string{}, "", "")
		require.ErrorIs(t, err, ErrMissingURI)
		assert.Equal(t, util.ExitBadOptions, exitCodeOf(t, err))
		assert.EqualError(t, err, "Missing MONGODB_URI (set env var or pass --uri)")
	})

	t.Run("missing DB", func(t *testing.T) {
		clearEnv(t)
		_, err := ParseOptions([]string{"--uri", testURI}, "", "")
		require.ErrorIs(t, err, ErrMissingDB)
		assert.Equal(t, util.ExitBadOptions, exitCodeOf(t, err))
		assert.EqualError(t, err, "Missing DB_NAME (set env var or pass --db)")
	})

	t.Run("blank environment values count as unset", func(t *testing.T) {
		t.Setenv(URIEnvVar, "   ")
		t.Setenv(DBEnvVar, "finodoc")
		_, err := ParseOptions([]string{}, "", "")
		require.ErrorIs(t, err, ErrMissingURI)
	})

	t.Run("environment fills in both", func(t *testing.T) {
		t.Setenv(URIEnvVar, " "+testURI+"\n")
		t.Setenv(DBEnvVar, "finodoc")
		opts, err := ParseOptions([]string{}, "", "")
		require.NoError(t, err)
		assert.Equal(t, testURI, opts.URI.ConnectionString)
		assert.Equal(t, "finodoc", opts.Namespace.DB)
	})

	t.Run("flags beat the environment", func(t *testing.T) {
		t.Setenv(URIEnvVar, "mongodb://from-env:27017")
		t.Setenv(DBEnvVar, "from_env")
		opts, err := ParseOptions([]string{"--uri", testURI, "-d", "from_flag"}, "", "")
		require.NoError(t, err)
		assert.Equal(t, testURI, opts.URI.ConnectionString)
		assert.Equal(t, "from_flag", opts.Namespace.DB)
	})

	t.Run("help skips the required settings", func(t *testing.T) {
		clearEnv(t)
		opts, err := ParseOptions([]string{"--help"}, "", "")
		require.NoError(t, err)
		assert.True(t, opts.Help)
	})

	t.Run("version skips the required settings", func(t *testing.T) {
		clearEnv(t)
		opts, err := ParseOptions([]string{"--version"}, "1.0.0", "abc")
		require.NoError(t, err)
		assert.True(t, opts.Version)
		assert.Equal(t, "1.0.0", opts.VersionStr)
	})
}

func TestParseOptionsDefaults(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)
	clearEnv(t)

	Convey("With only the connection settings", t, func() {
		opts, err := ParseOptions([]string{"--uri", testURI, "--db", "finodoc"}, "", "")
		So(err, ShouldBeNil)

		Convey("the migration defaults apply", func() {
			So(opts.MigrationOptions.Source, ShouldEqual, "codal_letters")
			So(opts.MigrationOptions.Archive, ShouldEqual, "codal_letters_all")
			So(opts.KeepLetterCode, ShouldEqual, "ن-۱۰")
			So(opts.BatchSize, ShouldEqual, 1000)
			So(opts.Mode, ShouldEqual, string(ArchiveAndCleanup))
		})

		Convey("it is a dry run", func() {
			So(opts.Execute, ShouldBeFalse)
		})

		Convey("the connection string is normalized", func() {
			So(opts.URI.ConnString, ShouldNotBeNil)
			So(opts.URI.ConnString.Hosts, ShouldResemble, []string{"localhost:27017"})
		})
	})

	Convey("With every migration option set", t, func() {
		args := []string{
			"--uri", testURI,
			"--db", "finodoc",
			"--source", "letters",
			"--archive", "letters_archive",
			"--keep-letter-code", "ن-۱۱",
			"--batch-size", "50",
			"--mode", "cleanup-only",
			"--execute",
		}
		opts, err := ParseOptions(args, "", "")
		So(err, ShouldBeNil)
		So(opts.MigrationOptions.Source, ShouldEqual, "letters")
		So(opts.MigrationOptions.Archive, ShouldEqual, "letters_archive")
		So(opts.KeepLetterCode, ShouldEqual, "ن-۱۱")
		So(opts.BatchSize, ShouldEqual, 50)
		So(opts.Mode, ShouldEqual, string(CleanupOnly))
		So(opts.Execute, ShouldBeTrue)
	})
}

func TestParseOptionsInvalid(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)
	clearEnv(t)

	base := []string{"--uri", testURI, "--db", "finodoc"}
	cases := map[string][]string{
		"unknown mode":          {"--mode", "everything"},
		"zero batch size":       {"--batch-size", "0"},
		"negative batch size":   {"--batch-size", "-5"},
		"non-numeric batch":     {"--batch-size", "many"},
		"same collections":      {"--archive", "codal_letters"},
		"system collection":     {"--source", "system.users"},
		"unknown flag":          {"--frobnicate"},
		"positional arguments":  {"extra"},
		"unparsable uri":        {"--uri", "postgres://localhost"},
		"invalid database name": {"--db", "fino/doc"},
		"empty config path":     {"--config="},
	}

	for name, extra := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOptions(append(append([]string{}, base...), extra...), "", "")
			require.Error(t, err)
			assert.Equal(t, util.ExitBadOptions, exitCodeOf(t, err))
		})
	}
}

func TestParseOptionsConfigFile(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)
	clearEnv(t)

	dir, cleanup := testutil.MakeTempDir(t)
	defer cleanup()

	path := filepath.Join(dir, "codalcleanup.yaml")
	require.NoError(t, os.WriteFile(path, []byte("uri: "+testURI+"\ndb: from_config\n"), 0o600))

	t.Run("config supplies the connection settings", func(t *testing.T) {
		opts, err := ParseOptions([]string{"--config", path}, "", "")
		require.NoError(t, err)
		assert.Equal(t, testURI, opts.URI.ConnectionString)
		assert.Equal(t, "from_config", opts.Namespace.DB)
	})

	t.Run("flags beat the config", func(t *testing.T) {
		opts, err := ParseOptions([]string{"--config", path, "--db", "from_flag"}, "", "")
		require.NoError(t, err)
		assert.Equal(t, "from_flag", opts.Namespace.DB)
	})

	t.Run("config beats the environment", func(t *testing.T) {
		t.Setenv(DBEnvVar, "from_env")
		opts, err := ParseOptions([]string{"--config", path}, "", "")
		require.NoError(t, err)
		assert.Equal(t, "from_config", opts.Namespace.DB)
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("uri: "+testURI+"\nhost: nowhere\n"), 0o600))
		_, err := ParseOptions([]string{"--config", bad}, "", "")
		require.Error(t, err)
		assert.Equal(t, util.ExitBadOptions, exitCodeOf(t, err))
	})
}
