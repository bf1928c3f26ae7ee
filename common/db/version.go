// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Version is a server version as major, minor and patch numbers.
type Version [3]int

func (v1 Version) Cmp(v2 Version) int {
	for i := range v1 {
		if v1[i] < v2[i] {
			return -1
		}
		if v1[i] > v2[i] {
			return 1
		}
	}
	return 0
}

func (v1 Version) LT(v2 Version) bool {
	return v1.Cmp(v2) == -1
}

func (v1 Version) GTE(v2 Version) bool {
	return v1.Cmp(v2) != -1
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

// StrToVersion parses a "major.minor.patch" version string, ignoring any
// pre-release or build suffix.
func StrToVersion(v string) (Version, error) {
	v = strings.SplitN(v, "-", 2)[0]
	v = strings.SplitN(v, "+", 2)[0]

	parts := strings.SplitN(v, ".", 3)
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version string %#q", v)
	}

	var result Version
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version string %#q: %v", v, err)
		}
		result[i] = n
	}
	return result, nil
}

// MongoCanAcceptLiteralZeroTimestamp indicates whether the given server
// version keeps an empty timestamp in a written document as-is instead of
// replacing it with the current time.
func MongoCanAcceptLiteralZeroTimestamp(version Version) bool {
	// bypassEmptyTsReplacement was released with 8.0.
	if version[0] >= 8 {
		return true
	}

	// bypassEmptyTsReplacement was backported to 7.0, 6.0, and 5.0.
	// No other minor releases received it.
	if version[1] != 0 {
		return false
	}

	switch version[0] {
	case 7:
		return version[2] >= 13
	case 6:
		return version[2] >= 17
	case 5:
		return version[2] >= 29
	default:
		return false
	}
}

// ServerVersionArray returns the version of the connected server, as
// reported by buildInfo.
func (sp *SessionProvider) ServerVersionArray(ctx context.Context) (Version, error) {
	client, err := sp.GetSession()
	if err != nil {
		return Version{}, err
	}

	var buildInfo struct {
		VersionArray []int32 `bson:"versionArray"`
	}
	res := client.Database("admin").RunCommand(ctx, bson.D{{"buildInfo", 1}})
	if err := res.Decode(&buildInfo); err != nil {
		return Version{}, fmt.Errorf("error running buildInfo: %w", err)
	}
	if len(buildInfo.VersionArray) < 3 {
		return Version{}, errors.New("buildInfo returned an incomplete versionArray")
	}

	var version Version
	for i := range version {
		version[i] = int(buildInfo.VersionArray[i])
	}
	return version, nil
}
