// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package codalcleanup

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Mode selects which phases of the migration run.
type Mode string

const (
	ArchiveOnly       Mode = "archive-only"
	CleanupOnly       Mode = "cleanup-only"
	ArchiveAndCleanup Mode = "archive-and-cleanup"
)

// Phase is one step of the migration.
type Phase string

const (
	PhaseArchive Phase = "archive"
	PhaseCleanup Phase = "cleanup"
)

// Modes lists every mode in the order it is shown to users.
var Modes = []Mode{ArchiveOnly, CleanupOnly, ArchiveAndCleanup}

var modePhases = map[Mode]mapset.Set[Phase]{
	ArchiveOnly:       mapset.NewSet(PhaseArchive),
	CleanupOnly:       mapset.NewSet(PhaseCleanup),
	ArchiveAndCleanup: mapset.NewSet(PhaseArchive, PhaseCleanup),
}

// ParseMode returns the Mode named by s.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if _, ok := modePhases[m]; !ok {
		names := make([]string, len(Modes))
		for i, mode := range Modes {
			names[i] = string(mode)
		}
		return "", fmt.Errorf("invalid mode %q, must be one of: %s", s, strings.Join(names, ", "))
	}
	return m, nil
}

// Runs reports whether the mode includes the given phase.
func (m Mode) Runs(p Phase) bool {
	phases, ok := modePhases[m]
	return ok && phases.Contains(p)
}
