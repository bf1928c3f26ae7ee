// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package codalcleanup

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// memCollection is an in-memory stand-in for *mongo.Collection that supports
// the calls the migration makes: single-field equality and $ne filters, and
// replace-with-upsert bulk writes.
type memCollection struct {
	name string
	docs []bson.Raw

	bulkWrites  [][]mongo.WriteModel
	bulkOpts    []*options.BulkWriteOptions
	findOpts    []*options.FindOptions
	deleteCalls int

	estimateErr error
	findErr     error
	bulkErr     error
}

var (
	_ SourceCollection  = (*memCollection)(nil)
	_ ArchiveCollection = (*memCollection)(nil)
)

func newMemCollection(t *testing.T, name string, docs ...bson.D) *memCollection {
	c := &memCollection{name: name}
	for _, d := range docs {
		raw, err := bson.Marshal(d)
		require.NoError(t, err)
		c.docs = append(c.docs, raw)
	}
	return c
}

func (c *memCollection) Name() string {
	return c.name
}

func (c *memCollection) EstimatedDocumentCount(
	context.Context,
	...*options.EstimatedDocumentCountOptions,
) (int64, error) {
	if c.estimateErr != nil {
		return 0, c.estimateErr
	}
	return int64(len(c.docs)), nil
}

func (c *memCollection) Find(
	_ context.Context,
	filter interface{},
	opts ...*options.FindOptions,
) (*mongo.Cursor, error) {
	if c.findErr != nil {
		return nil, c.findErr
	}
	c.findOpts = append(c.findOpts, opts...)
	var docs []interface{}
	for _, doc := range c.docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			docs = append(docs, []byte(doc))
		}
	}
	return mongo.NewCursorFromDocuments(docs, nil, nil)
}

func (c *memCollection) CountDocuments(
	_ context.Context,
	filter interface{},
	_ ...*options.CountOptions,
) (int64, error) {
	var n int64
	for _, doc := range c.docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (c *memCollection) DeleteMany(
	_ context.Context,
	filter interface{},
	_ ...*options.DeleteOptions,
) (*mongo.DeleteResult, error) {
	c.deleteCalls++
	kept := c.docs[:0]
	var deleted int64
	for _, doc := range c.docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			deleted++
		} else {
			kept = append(kept, doc)
		}
	}
	c.docs = kept
	return &mongo.DeleteResult{DeletedCount: deleted}, nil
}

func (c *memCollection) BulkWrite(
	_ context.Context,
	models []mongo.WriteModel,
	opts ...*options.BulkWriteOptions,
) (*mongo.BulkWriteResult, error) {
	if c.bulkErr != nil {
		return nil, c.bulkErr
	}
	c.bulkWrites = append(c.bulkWrites, append([]mongo.WriteModel(nil), models...))
	c.bulkOpts = append(c.bulkOpts, opts...)

	result := &mongo.BulkWriteResult{UpsertedIDs: map[int64]interface{}{}}
	for i, model := range models {
		replace, ok := model.(*mongo.ReplaceOneModel)
		if !ok {
			return nil, fmt.Errorf("unsupported write model %T", model)
		}
		replacement, ok := replace.Replacement.(bson.Raw)
		if !ok {
			return nil, fmt.Errorf("unsupported replacement %T", replace.Replacement)
		}

		idx := -1
		for j, doc := range c.docs {
			ok, err := matches(doc, replace.Filter)
			if err != nil {
				return nil, err
			}
			if ok {
				idx = j
				break
			}
		}

		switch {
		case idx >= 0:
			doc, err := withID(replacement, c.docs[idx].Lookup(IDField))
			if err != nil {
				return nil, err
			}
			c.docs[idx] = doc
			result.MatchedCount++
			result.ModifiedCount++
		case replace.Upsert != nil && *replace.Upsert:
			id, err := bson.Marshal(bson.D{{IDField, primitive.NewObjectID()}})
			if err != nil {
				return nil, err
			}
			doc, err := withID(replacement, bson.Raw(id).Lookup(IDField))
			if err != nil {
				return nil, err
			}
			c.docs = append(c.docs, doc)
			result.UpsertedCount++
			result.UpsertedIDs[int64(i)] = doc.Lookup(IDField)
		}
	}
	return result, nil
}

// find returns the first document matching filter.
func (c *memCollection) find(t *testing.T, filter bson.D) (bson.Raw, bool) {
	for _, doc := range c.docs {
		ok, err := matches(doc, filter)
		require.NoError(t, err)
		if ok {
			return doc, true
		}
	}
	return nil, false
}

// withID returns doc unchanged when it has an _id, and otherwise doc with
// the given _id prepended.
func withID(doc bson.Raw, id bson.RawValue) (bson.Raw, error) {
	if _, err := doc.LookupErr(IDField); err == nil {
		return doc, nil
	}
	var fields bson.D
	if err := bson.Unmarshal(doc, &fields); err != nil {
		return nil, err
	}
	return bson.Marshal(append(bson.D{{IDField, id}}, fields...))
}

func matches(doc bson.Raw, filter interface{}) (bool, error) {
	d, ok := filter.(bson.D)
	if !ok {
		return false, fmt.Errorf("unsupported filter %T", filter)
	}
	for _, elem := range d {
		if ne, ok := elem.Value.(bson.D); ok {
			if len(ne) != 1 || ne[0].Key != "$ne" {
				return false, fmt.Errorf("unsupported operator in %v", ne)
			}
			equal, err := fieldEquals(doc, elem.Key, ne[0].Value)
			if err != nil {
				return false, err
			}
			if equal {
				return false, nil
			}
			continue
		}
		equal, err := fieldEquals(doc, elem.Key, elem.Value)
		if err != nil {
			return false, err
		}
		if !equal {
			return false, nil
		}
	}
	return true, nil
}

func fieldEquals(doc bson.Raw, key string, value interface{}) (bool, error) {
	actual, err := doc.LookupErr(key)
	if err != nil {
		return false, nil
	}
	expected, ok := value.(bson.RawValue)
	if !ok {
		typ, data, err := bson.MarshalValue(value)
		if err != nil {
			return false, err
		}
		expected = bson.RawValue{Type: typ, Value: data}
	}
	return actual.Equal(expected), nil
}
