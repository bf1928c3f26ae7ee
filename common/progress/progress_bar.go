// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package progress exposes utilities to asynchronously monitor and display processing progress.
package progress

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	DefaultWaitTime = 3 * time.Second

	BarFilling = "#"
	BarEmpty   = "."
	BarLeft    = "["
	BarRight   = "]"
)

// Bar is a tool for concurrently monitoring the progress
// of a task with a simple linear ASCII visualization.
type Bar struct {
	// Name is an identifier printed along with the bar
	Name string
	// BarLength is the number of characters used to print the bar
	BarLength int

	// Watching is the object that implements the Progressor to expose the
	// values necessary for calculation
	Watching Progressor

	// Writer is where the Bar is written out to
	Writer io.Writer
	// WaitTime is the time to wait between writing the bar
	WaitTime time.Duration

	stopChan     chan struct{}
	stopChanSync chan struct{}
}

// Start starts the Bar goroutine. Once Start is called, a bar will
// be written to the given Writer at regular intervals. The goroutine
// can only be stopped manually using the Stop() method. The Bar
// must be set up before calling this. Panics if Start has already been called.
func (pb *Bar) Start() {
	pb.validate()
	// we only check for the writer if we're using a single bar without a manager
	if pb.Writer == nil {
		panic("Cannot use a Bar with an unset Writer")
	}
	pb.stopChan = make(chan struct{})
	pb.stopChanSync = make(chan struct{})

	go pb.start()
}

// validate does a set of sanity checks against the progress bar, and panics
// if the bar is unfit for use
func (pb *Bar) validate() {
	if pb.Watching == nil {
		panic("Cannot use a Bar with a nil Watching")
	}
	if pb.stopChan != nil {
		panic("Cannot start a Bar more than once")
	}
}

// Stop kills the Bar goroutine, stopping it from writing.
// Generally called as
//
//	myBar.Start()
//	defer myBar.Stop()
//
// to stop leakage
func (pb *Bar) Stop() {
	close(pb.stopChan)
	<-pb.stopChanSync
	pb.stopChan = nil
}

func (pb *Bar) formatCounts() (string, string) {
	currentCount, maxCount := pb.Watching.Progress()
	// show the full max value
	maxStr := fmt.Sprintf("%v", maxCount)
	// pad the current value so the bar does not jitter
	currentStr := fmt.Sprintf("%*v", len(maxStr), currentCount)
	return currentStr, maxStr
}

// renderToWriter computes and writes the current bar to the Writer.
func (pb *Bar) renderToWriter() {
	_, _ = pb.Writer.Write([]byte(pb.render() + "\n"))
}

// render computes the bar as a single line.
func (pb *Bar) render() string {
	currentCount, maxCount := pb.Watching.Progress()
	currentStr, maxStr := pb.formatCounts()
	if maxCount == 0 {
		// if we have no max amount, just print a count
		return fmt.Sprintf("%v\t%v", pb.Name, currentStr)
	}
	// otherwise, print a bar and percents
	percent := float64(currentCount) / float64(maxCount)
	return fmt.Sprintf("%v %v\t%s/%s (%2.1f%%)",
		drawBar(pb.BarLength, percent),
		pb.Name,
		currentStr,
		maxStr,
		percent*100,
	)
}

// the main concurrent loop
func (pb *Bar) start() {
	if pb.WaitTime <= 0 {
		pb.WaitTime = DefaultWaitTime
	}
	ticker := time.NewTicker(pb.WaitTime)
	defer ticker.Stop()

	for {
		select {
		case <-pb.stopChan:
			// print one last time so the bar reflects the final state
			pb.renderToWriter()
			close(pb.stopChanSync)
			return
		case <-ticker.C:
			pb.renderToWriter()
		}
	}
}

// drawBar returns a drawn progress bar of a given width and percentage
// as a string. Examples:
//
//	[........................]
//	[###########.............]
//	[########################]
func drawBar(spaces int, percent float64) string {
	if spaces <= 0 {
		return ""
	}
	var strBuffer bytes.Buffer
	strBuffer.WriteString(BarLeft)

	// the number of "#" to draw
	fullSpaces := int(percent * float64(spaces))
	if fullSpaces < 0 {
		fullSpaces = 0
	}
	if fullSpaces > spaces {
		fullSpaces = spaces
	}

	strBuffer.WriteString(strings.Repeat(BarFilling, fullSpaces))
	strBuffer.WriteString(strings.Repeat(BarEmpty, spaces-fullSpaces))

	strBuffer.WriteString(BarRight)
	return strBuffer.String()
}
