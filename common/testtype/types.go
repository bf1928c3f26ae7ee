// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package testtype gates tests on the kind of environment they need.
package testtype

import (
	"os"
	"testing"
)

const (
	// Integration tests require a mongod reachable through TOOLS_TESTING_MONGOD,
	// or on localhost:33333 when that variable is unset.
	IntegrationTestType = "TOOLS_TESTING_INTEGRATION"

	// Unit tests don't require a real mongod.
	UnitTestType = "TOOLS_TESTING_UNIT"

	// Auth tests require a user with root privileges, configured through
	// TOOLS_TESTING_AUTH_USERNAME and TOOLS_TESTING_AUTH_PASSWORD.
	AuthTestType = "TOOLS_TESTING_AUTH"
)

// HasTestType reports whether the given test type is enabled in the environment.
func HasTestType(testType string) bool {
	envVal := os.Getenv(testType)
	return envVal == "true"
}

// SkipUnlessTestType skips the test unless the given test type is enabled.
func SkipUnlessTestType(t *testing.T, testType string) {
	if !HasTestType(testType) {
		t.SkipNow()
	}
}
