// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package util

import "github.com/pkg/errors"

const (
	ExitClean      int = 0
	ExitError      int = 1
	ExitBadOptions int = 2
)

// SetupError is the error returned by option parsing and "New" functions to convey what
// went wrong and which exit code the tool should use.
type SetupError struct {
	Err  error
	Code int
}

// Error implements the error interface.
func (se SetupError) Error() string {
	return se.Err.Error()
}

// Unwrap returns the underlying error.
func (se SetupError) Unwrap() error {
	return se.Err
}

// ExitCode returns the exit code for a tool that stopped with err: ExitClean
// for nil, the code carried by a SetupError anywhere in the chain, and
// ExitError for anything else.
func ExitCode(err error) int {
	if err == nil {
		return ExitClean
	}
	var setupErr SetupError
	if errors.As(err, &setupErr) {
		return setupErr.Code
	}
	return ExitError
}
