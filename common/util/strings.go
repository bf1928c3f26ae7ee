// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package util

import (
	"os"
	"regexp"
	"strings"
)

var credentialsRegexp = regexp.MustCompile(`^(mongodb(?:\+srv)?://)[^/?]*@`)

// SanitizeURI redacts the credentials of a connection string, if any, so the
// result can be logged.
func SanitizeURI(uri string) string {
	return credentialsRegexp.ReplaceAllString(uri, "${1}[**REDACTED**]@")
}

// EnvValue returns the value of the named environment variable with
// surrounding whitespace removed. A variable that is unset or blank yields "".
func EnvValue(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}
