// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package util

import (
	"fmt"
	"strings"
)

const (
	InvalidDBChars         = "/\\. \"\x00$"
	InvalidCollectionChars = "$\x00"
)

// ValidateDBName checks if a database name is valid.
func ValidateDBName(database string) error {
	// must be < 64 characters
	if len([]byte(database)) > 63 {
		return fmt.Errorf("db name '%v' is longer than 63 characters", database)
	}

	for _, invalidRune := range InvalidDBChars {
		if strings.ContainsRune(database, invalidRune) {
			return fmt.Errorf("db name '%v' contains invalid character '%c'", database, invalidRune)
		}
	}

	return nil
}

// ValidateCollectionName checks if a collection name is valid.
func ValidateCollectionName(collection string) error {
	if collection == "" {
		return fmt.Errorf("collection name cannot be an empty string")
	}

	if strings.HasPrefix(collection, "system.") {
		return fmt.Errorf("collection name '%v' is reserved for system use", collection)
	}

	for _, invalidRune := range InvalidCollectionChars {
		if strings.ContainsRune(collection, invalidRune) {
			return fmt.Errorf("collection name '%v' contains invalid character '%c'", collection, invalidRune)
		}
	}

	return nil
}

// ValidateFullNamespace validates a full "<db>.<collection>" namespace.
func ValidateFullNamespace(namespace string) error {
	dbName, collName, ok := strings.Cut(namespace, ".")
	if !ok {
		return fmt.Errorf("namespace '%v' is missing a collection name", namespace)
	}
	if err := ValidateDBName(dbName); err != nil {
		return err
	}
	return ValidateCollectionName(collName)
}
