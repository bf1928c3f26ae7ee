// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package codalcleanup

import (
	"context"

	"github.com/finodoc/codal-tools/common/log"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Cleaner deletes from the source collection every document whose letterCode
// differs from KeepLetterCode.
type Cleaner struct {
	Source         SourceCollection
	DBName         string
	KeepLetterCode string
	Execute        bool
}

// Filter selects the documents to delete. Documents without a letterCode
// match it too.
func (c *Cleaner) Filter() bson.D {
	return bson.D{{LetterCodeField, bson.D{{"$ne", c.KeepLetterCode}}}}
}

// Cleanup returns the number of documents deleted, or without Execute the
// number that would be.
func (c *Cleaner) Cleanup(ctx context.Context) (int64, error) {
	ns := namespace(c.DBName, c.Source.Name())
	filter := c.Filter()

	toDelete, err := c.Source.CountDocuments(ctx, filter)
	if err != nil {
		return 0, errors.Wrapf(err, "error counting documents to delete in %v", ns)
	}
	log.Logvf(log.Always, "Cleanup %v: will delete %v docs where %v != %q (execute=%v)",
		ns, toDelete, LetterCodeField, c.KeepLetterCode, c.Execute)

	if !c.Execute {
		return toDelete, nil
	}

	result, err := c.Source.DeleteMany(ctx, filter)
	if err != nil {
		return 0, errors.Wrapf(err, "error deleting from %v", ns)
	}
	log.Logvf(log.Always, "Deleted %v docs", result.DeletedCount)
	return result.DeletedCount, nil
}
