// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package testutil implements functions for filtering and configuring tests.
package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/finodoc/codal-tools/common/db"
	"github.com/finodoc/codal-tools/common/options"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

const uriEnvVar = "TOOLS_TESTING_MONGOD"

// GetBareSession returns a mongo.Client from the environment or
// from a default host and port.
func GetBareSession() (*mongo.Client, error) {
	sessionProvider, _, err := GetBareSessionProvider()
	if err != nil {
		return nil, err
	}
	return sessionProvider.GetSession()
}

// GetBareSessionProvider returns a session provider from the environment or
// from a default host and port.
func GetBareSessionProvider() (*db.SessionProvider, *options.ToolOptions, error) {
	toolOptions, err := GetToolOptions()
	if err != nil {
		return nil, nil, fmt.Errorf(
			"error getting tool options to create a bare session provider: %w",
			err,
		)
	}

	sessionProvider, err := db.NewSessionProvider(*toolOptions)
	if err != nil {
		return nil, nil, err
	}

	return sessionProvider, toolOptions, nil
}

// GetTestURI returns the connection string of the test server.
func GetTestURI() string {
	if uri := os.Getenv(uriEnvVar); uri != "" {
		return uri
	}
	return "mongodb://localhost:" + db.DefaultTestPort + "/"
}

// GetToolOptions returns normalized ToolOptions pointing at the test server.
func GetToolOptions() (*options.ToolOptions, error) {
	uri := GetTestURI()
	parsed, err := connstring.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf(
			"%#q from the %#q env var is not a valid connection string: %w",
			uri,
			uriEnvVar,
			err,
		)
	}

	enabled := options.EnabledOptions{
		Auth:       parsed.UsernameSet,
		Connection: true,
		URI:        true,
	}
	toolOptions := options.New("codal-tools-test", "", "", "", enabled)
	if _, err := toolOptions.ParseArgs([]string{"--uri=" + uri}); err != nil {
		return nil, fmt.Errorf(
			"could not create toolOptions with %#q from the %#q env var: %w",
			uri,
			uriEnvVar,
			err,
		)
	}

	if err := toolOptions.NormalizeOptionsAndURI(); err != nil {
		return nil, err
	}

	return toolOptions, nil
}

// MakeTempDir will attempt to create a temp directory. If it fails it will
// abort the test. It returns two values. The first is the string containing
// the path to the temp directory. The second is a cleanup func that will
// remove the temp directory. You should always call the cleanup func with
// `defer` immedatiately after calling this function:
//
//	dir, cleanup := testutil.MakeTempDir(t)
//	defer cleanup()
//
// If the `TOOLS_TESTING_NO_CLEANUP` env var is not empty, then the cleanup
// function will not delete the directory.
func MakeTempDir(t *testing.T) (string, func()) {
	require := require.New(t)

	dir, err := os.MkdirTemp("", "codal-tools-test")
	require.NoError(err, "can create temp directory")
	cleanup := func() {
		if os.Getenv("TOOLS_TESTING_NO_CLEANUP") == "" {
			err = os.RemoveAll(dir)
			if err != nil {
				t.Fatalf("Failed to delete temp directory: %v", err)
			}
		}
	}
	return dir, cleanup
}

var atlasDomains = []string{
	".mongo.com",
	".mongodb.net",
	".mongodb-qa.net",
	".mongodb-dev.net",
}

// SkipForAtlasCluster will skip the test if `TOOLS_TESTING_MONGOD` is an Atlas URI.
func SkipForAtlasCluster(t *testing.T, reason string) {
	uri := os.Getenv(uriEnvVar)
	if uri == "" {
		return
	}

	for _, d := range atlasDomains {
		if strings.Contains(uri, d) {
			t.Skipf(
				"The %#q env var is for an Atlas cluster: %s",
				uriEnvVar,
				reason,
			)
		}
	}
}
