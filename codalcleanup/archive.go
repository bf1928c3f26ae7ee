// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package codalcleanup

import (
	"context"
	"strconv"

	"github.com/finodoc/codal-tools/common/db"
	"github.com/finodoc/codal-tools/common/log"
	"github.com/finodoc/codal-tools/common/progress"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SourceCollection is the part of *mongo.Collection that the migration reads
// from and deletes from.
type SourceCollection interface {
	Name() string
	EstimatedDocumentCount(ctx context.Context, opts ...*options.EstimatedDocumentCountOptions) (int64, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// ArchiveCollection is the part of *mongo.Collection that archived documents
// are written to.
type ArchiveCollection interface {
	Name() string
	db.BulkWriter
}

// Archiver upserts every document of the source collection into the archive
// collection in unordered batches.
type Archiver struct {
	Source    SourceCollection
	Target    ArchiveCollection
	DBName    string
	BatchSize int
	Execute   bool

	// ServerVersion decides whether empty timestamps may be written as-is.
	ServerVersion db.Version

	// Progress, if set, follows the number of archived documents.
	Progress *progress.Counter

	batches   int
	keyCounts map[FilterKeyKind]int64
}

// Archive copies the source collection into the archive collection and
// returns the number of documents processed. Without Execute nothing is
// written but batching and counting happen as if it were.
func (a *Archiver) Archive(ctx context.Context) (int64, error) {
	srcNS := namespace(a.DBName, a.Source.Name())
	archiveNS := namespace(a.DBName, a.Target.Name())
	a.batches = 0
	a.keyCounts = make(map[FilterKeyKind]int64)

	total, err := a.Source.EstimatedDocumentCount(ctx)
	if err != nil {
		log.Logvf(log.Info, "could not estimate the size of %v: %v", srcNS, err)
		total = 0
	}
	log.Logvf(log.Always, "Archiving from %v -> %v (estimated total=%v)", srcNS, archiveNS, total)
	if a.Progress != nil {
		a.Progress.SetMax(total)
	}
	totalStr := lo.Ternary(total > 0, strconv.FormatInt(total, 10), "?")

	cursor, err := a.Source.Find(ctx, bson.D{}, options.Find().SetNoCursorTimeout(true))
	if err != nil {
		return 0, errors.Wrapf(err, "error reading %v", srcNS)
	}
	defer func() {
		if closeErr := cursor.Close(ctx); closeErr != nil {
			log.Logvf(log.DebugLow, "error closing cursor on %v: %v", srcNS, closeErr)
		}
	}()

	var archived int64
	bulk := db.NewUnorderedBufferedBulkInserter(a.Target, a.BatchSize).
		SetUpsert(true).
		SetDryRun(!a.Execute).
		SetServerVersion(a.ServerVersion).
		OnFlush(func(batchSize int, _ *mongo.BulkWriteResult) {
			archived += int64(batchSize)
			if a.Progress != nil {
				a.Progress.Set(archived)
			}
			log.Logvf(log.Always, "Archived %v/%v", archived, totalStr)
		})

	for cursor.Next(ctx) {
		// cursor.Current is only valid until the next call to Next
		doc := make(bson.Raw, len(cursor.Current))
		copy(doc, cursor.Current)

		key := ChooseFilterKey(doc)
		a.keyCounts[key.Kind]++
		if _, err := bulk.Replace(ctx, key.Filter(), doc); err != nil {
			a.batches = bulk.FlushCount()
			return archived, errors.Wrapf(err, "error archiving into %v", archiveNS)
		}
	}
	if err := cursor.Err(); err != nil {
		a.batches = bulk.FlushCount()
		return archived, errors.Wrapf(err, "error reading %v", srcNS)
	}
	if _, err := bulk.Flush(ctx); err != nil {
		a.batches = bulk.FlushCount()
		return archived, errors.Wrapf(err, "error archiving into %v", archiveNS)
	}
	a.batches = bulk.FlushCount()

	log.Logvf(log.Always, "Archive done. archived=%v execute=%v", archived, a.Execute)
	log.Logvf(log.Info, "archive filter keys: %v=%v %v=%v %v=%v",
		ByPrimaryID, a.keyCounts[ByPrimaryID],
		ByTracingNo, a.keyCounts[ByTracingNo],
		BySentinel, a.keyCounts[BySentinel])
	if n := a.keyCounts[BySentinel]; n > 1 {
		log.Logvf(log.Always, "WARNING: %v documents have neither %v nor %v; they all share the filter {%v: true} in %v",
			n, IDField, TracingNoField, SentinelField, archiveNS)
	}

	return archived, nil
}

// Batches returns the number of batches the last Archive call flushed.
func (a *Archiver) Batches() int {
	return a.batches
}

// KeyCount returns how many documents the last Archive call identified by
// the given kind of filter key.
func (a *Archiver) KeyCount(kind FilterKeyKind) int64 {
	return a.keyCounts[kind]
}

func namespace(dbName, collName string) string {
	if dbName == "" {
		return collName
	}
	return dbName + "." + collName
}
