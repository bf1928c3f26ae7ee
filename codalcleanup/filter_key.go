// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package codalcleanup

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Field names the migration reads.
const (
	IDField         = "_id"
	TracingNoField  = "tracingNo"
	LetterCodeField = "letterCode"

	// SentinelField is matched by the filter of documents that carry neither
	// an _id nor a tracingNo. All such documents share that one filter.
	SentinelField = "__missing_key__"
)

// FilterKeyKind says which field identifies a document in the archive.
type FilterKeyKind int

const (
	ByPrimaryID FilterKeyKind = iota
	ByTracingNo
	BySentinel
)

func (k FilterKeyKind) String() string {
	switch k {
	case ByPrimaryID:
		return IDField
	case ByTracingNo:
		return TracingNoField
	case BySentinel:
		return "sentinel"
	}
	return "unknown"
}

// FilterKey is the identity used to upsert a document into the archive.
// Value is unset for BySentinel.
type FilterKey struct {
	Kind  FilterKeyKind
	Value bson.RawValue
}

// ChooseFilterKey picks _id when the document has a non-null one, then
// tracingNo, then the sentinel.
func ChooseFilterKey(doc bson.Raw) FilterKey {
	if v, ok := lookupPresent(doc, IDField); ok {
		return FilterKey{Kind: ByPrimaryID, Value: v}
	}
	if v, ok := lookupPresent(doc, TracingNoField); ok {
		return FilterKey{Kind: ByTracingNo, Value: v}
	}
	return FilterKey{Kind: BySentinel}
}

// Filter returns the upsert filter for the key.
func (fk FilterKey) Filter() bson.D {
	switch fk.Kind {
	case ByPrimaryID:
		return bson.D{{IDField, fk.Value}}
	case ByTracingNo:
		return bson.D{{TracingNoField, fk.Value}}
	default:
		return bson.D{{SentinelField, true}}
	}
}

// lookupPresent treats null and undefined the same as a missing field.
func lookupPresent(doc bson.Raw, key string) (bson.RawValue, bool) {
	v, err := doc.LookupErr(key)
	if err != nil {
		return bson.RawValue{}, false
	}
	switch v.Type {
	case bsontype.Null, bsontype.Undefined:
		return bson.RawValue{}, false
	}
	return v, true
}
