// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package password reads a user's password from the terminal, or from
// standard input when it is not a terminal.
package password

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/finodoc/codal-tools/common/log"
)

// Prompt displays a prompt on stderr asking for the password of what and
// returns the password the user enters.
func Prompt(what string) (string, error) {
	fmt.Fprintf(os.Stderr, "Enter password for %s:", what)

	var pass string
	var err error
	if IsTerminal() {
		log.Logv(log.DebugLow, "standard input is a terminal; reading password from terminal")
		pass, err = readPassInteractively()
	} else {
		log.Logv(log.Always, "reading password from standard input")
		pass, err = readPassNonInteractively(os.Stdin)
	}
	if err != nil {
		return "", err
	}
	fmt.Fprintln(os.Stderr)
	return pass, nil
}

// readPassNonInteractively reads the first line of reader. Carriage returns
// and the line terminator are not part of the password.
func readPassNonInteractively(reader io.Reader) (string, error) {
	line, err := bufio.NewReader(reader).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
