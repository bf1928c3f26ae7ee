// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package db

import (
	"context"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BulkWriter is the part of *mongo.Collection that a BufferedBulkInserter
// writes to.
type BulkWriter interface {
	BulkWrite(ctx context.Context, models []mongo.WriteModel,
		opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
}

// FlushFunc is called after every flush of a non-empty buffer with the number
// of write models the flush carried. result is nil in dry-run mode.
type FlushFunc func(batchSize int, result *mongo.BulkWriteResult)

// BufferedBulkInserter implements a bufio.Writer-like design for queuing up
// write models and submitting them in bulk when the given doc limit is
// reached. Must be flushed at the end to ensure that all models are written.
//
// In dry-run mode the buffer fills and flushes exactly as it would otherwise,
// but nothing is submitted to the server.
type BufferedBulkInserter struct {
	collection    BulkWriter
	writeModels   []mongo.WriteModel
	docLimit      int
	docCount      int
	bulkWriteOpts *options.BulkWriteOptions
	upsert        bool
	dryRun        bool
	flushCount    int
	onFlush       FlushFunc
}

func newBufferedBulkInserter(
	collection BulkWriter,
	docLimit int,
	ordered bool,
) *BufferedBulkInserter {
	if docLimit < 1 {
		docLimit = 1
	}

	bb := &BufferedBulkInserter{
		collection:    collection,
		bulkWriteOpts: options.BulkWrite().SetOrdered(ordered),
		docLimit:      docLimit,
		writeModels:   make([]mongo.WriteModel, 0, docLimit),
	}
	return bb
}

// NewUnorderedBufferedBulkInserter returns an initialized BufferedBulkInserter for performing unordered bulk writes.
func NewUnorderedBufferedBulkInserter(
	collection BulkWriter,
	docLimit int,
) *BufferedBulkInserter {
	return newBufferedBulkInserter(collection, docLimit, false)
}

func (bb *BufferedBulkInserter) SetUpsert(upsert bool) *BufferedBulkInserter {
	bb.upsert = upsert
	return bb
}

func (bb *BufferedBulkInserter) SetDryRun(dryRun bool) *BufferedBulkInserter {
	bb.dryRun = dryRun
	return bb
}

// SetServerVersion lets the server keep empty timestamps in written documents
// when it is new enough to support that.
func (bb *BufferedBulkInserter) SetServerVersion(serverVersion Version) *BufferedBulkInserter {
	if MongoCanAcceptLiteralZeroTimestamp(serverVersion) {
		bb.bulkWriteOpts.BypassEmptyTsReplacement = lo.ToPtr(true)
	} else {
		bb.bulkWriteOpts.BypassEmptyTsReplacement = nil
	}
	return bb
}

func (bb *BufferedBulkInserter) CanDoZeroTimestamp() bool {
	bypassSettingPtr := bb.bulkWriteOpts.BypassEmptyTsReplacement

	return bypassSettingPtr != nil && *bypassSettingPtr
}

// OnFlush registers a callback run after every flush.
func (bb *BufferedBulkInserter) OnFlush(fn FlushFunc) *BufferedBulkInserter {
	bb.onFlush = fn
	return bb
}

// FlushCount returns the number of non-empty flushes performed so far.
func (bb *BufferedBulkInserter) FlushCount() int {
	return bb.flushCount
}

// throw away the old bulk and init a new one.
func (bb *BufferedBulkInserter) ResetBulk() {
	bb.writeModels = bb.writeModels[:0]
	bb.docCount = 0
}

// Replace adds a replacement to the buffer. If the buffer becomes full, the bulk write is performed, returning
// any error that occurs. The replacement is passed to the driver untouched, so a bson.Raw is written byte-for-byte.
func (bb *BufferedBulkInserter) Replace(
	ctx context.Context,
	selector bson.D,
	replacement interface{},
) (*mongo.BulkWriteResult, error) {
	return bb.addModel(
		ctx,
		mongo.NewReplaceOneModel().
			SetFilter(selector).
			SetReplacement(replacement).
			SetUpsert(bb.upsert),
	)
}

// addModel adds a WriteModel to the buffer. If the buffer becomes full, the bulk write is performed, returning any error
// that occurs.
func (bb *BufferedBulkInserter) addModel(
	ctx context.Context,
	model mongo.WriteModel,
) (*mongo.BulkWriteResult, error) {
	bb.docCount++
	bb.writeModels = append(bb.writeModels, model)

	if bb.docCount >= bb.docLimit {
		return bb.Flush(ctx)
	}

	return nil, nil
}

// Flush writes all buffered models in one bulk write and then resets the buffer.
func (bb *BufferedBulkInserter) Flush(ctx context.Context) (*mongo.BulkWriteResult, error) {
	defer bb.ResetBulk()
	return bb.flush(ctx)
}

func (bb *BufferedBulkInserter) flush(ctx context.Context) (*mongo.BulkWriteResult, error) {
	if bb.docCount == 0 {
		return nil, nil
	}

	var result *mongo.BulkWriteResult
	if !bb.dryRun {
		var err error
		result, err = bb.collection.BulkWrite(ctx, bb.writeModels, bb.bulkWriteOpts)
		if err != nil {
			return result, err
		}
	}

	bb.flushCount++
	if bb.onFlush != nil {
		bb.onFlush(bb.docCount, result)
	}
	return result, nil
}
