// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Manager is an interface which tools can use to register progressors which
// track units of work.
type Manager interface {
	// Attach registers the progressor with the manager under the given name.
	// Any call to Attach must have a matching call to Detach.
	Attach(name string, progressor Progressor)

	// Detach removes the progressor with the given name from the manager
	Detach(name string)
}

// BarWriter implements Manager. It periodically prints the status of all of its
// progressors in the form of pretty progress bars. It handles thread-safe
// synchronized progress bar writing, so that its progressors are written in a
// group at a given interval. It maintains insertion order when printing, such
// that new bars appear at the bottom of the group.
type BarWriter struct {
	sync.Mutex

	waitTime  time.Duration
	writer    io.Writer
	bars      []*Bar
	stopChan  chan struct{}
	barLength int
}

// NewBarWriter returns an initialized BarWriter with the given bar length
// that writes to the given writer every waitTime.
func NewBarWriter(w io.Writer, waitTime time.Duration, barLength int) *BarWriter {
	if waitTime <= 0 {
		waitTime = DefaultWaitTime
	}
	return &BarWriter{
		waitTime:  waitTime,
		writer:    w,
		stopChan:  make(chan struct{}),
		barLength: barLength,
	}
}

// Attach registers the given progressor with the manager
func (manager *BarWriter) Attach(name string, progressor Progressor) {
	pb := &Bar{
		Name:      name,
		Watching:  progressor,
		BarLength: manager.barLength,
	}
	pb.validate()

	manager.Lock()
	defer manager.Unlock()

	// make sure we are not adding the same bar again
	for _, bar := range manager.bars {
		if bar.Name == name {
			panic(fmt.Sprintf("progress bar with name '%s' already exists in manager", name))
		}
	}

	manager.bars = append(manager.bars, pb)
}

// Detach removes the progressor with the given name from the manager. Insert
// order is maintained for consistent ordering of the printed bars.
func (manager *BarWriter) Detach(name string) {
	manager.Lock()
	defer manager.Unlock()

	barIndex := -1
	for i, bar := range manager.bars {
		if bar.Name == name {
			barIndex = i
			break
		}
	}
	if barIndex < 0 {
		panic(fmt.Sprintf("no bar with name '%s' exists in the progress manager", name))
	}

	manager.bars = append(manager.bars[:barIndex], manager.bars[barIndex+1:]...)
}

// helper to render all bars in order
func (manager *BarWriter) renderAllBars() {
	manager.Lock()
	defer manager.Unlock()
	for _, bar := range manager.bars {
		_, _ = manager.writer.Write([]byte(bar.render() + "\n"))
	}
	// add padding of one row if we have more than one active bar
	if len(manager.bars) > 1 {
		_, _ = manager.writer.Write([]byte("\n"))
	}
}

// Start kicks of the timed batch writing of progress bars.
func (manager *BarWriter) Start() {
	manager.Lock()
	defer manager.Unlock()
	if manager.writer == nil {
		panic("Cannot use a progress.BarWriter with an unset Writer")
	}
	manager.stopChan = make(chan struct{})
	go manager.start(manager.stopChan)
}

func (manager *BarWriter) start(stop chan struct{}) {
	ticker := time.NewTicker(manager.waitTime)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			manager.renderAllBars()
		}
	}
}

// Stop ends the main manager goroutine, stopping the manager's bars
// from being rendered.
func (manager *BarWriter) Stop() {
	manager.Lock()
	defer manager.Unlock()
	close(manager.stopChan)
}
