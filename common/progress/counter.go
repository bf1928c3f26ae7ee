// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package progress

import (
	"sync/atomic"
)

// Progressor can be implemented to allow an object to hook up to a
// progress.Bar.
type Progressor interface {
	// Progress returns a pair of integers: the amount completed and the
	// total amount to reach 100%. A total of 0 means unknown.
	Progress() (int64, int64)
}

// Updateable is a Progressor which also exposes the ability for the
// progressing value to be updated.
type Updateable interface {
	Progressor

	// Inc increments the current progress counter by the given amount.
	Inc(amount int64)

	// Set sets the progress counter to the given amount.
	Set(amount int64)
}

// Counter is an implementation of Updateable, safe for concurrent use.
type Counter struct {
	current, max int64
}

// NewCounter constructs a Counter with the given total. A total of 0 means
// the goal is not known.
func NewCounter(max int64) *Counter {
	return &Counter{0, max}
}

func (c *Counter) Progress() (int64, int64) {
	return atomic.LoadInt64(&c.current), atomic.LoadInt64(&c.max)
}

func (c *Counter) Inc(amount int64) {
	atomic.AddInt64(&c.current, amount)
}

func (c *Counter) Set(amount int64) {
	atomic.StoreInt64(&c.current, amount)
}

// SetMax replaces the goal, e.g. once an estimate becomes available.
func (c *Counter) SetMax(max int64) {
	atomic.StoreInt64(&c.max, max)
}
