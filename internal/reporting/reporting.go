// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package reporting delivers status transitions of (test, target) pairs to
// presentation layers.
package reporting

import (
	"context"
	"fmt"
	"sync"

	"github.com/Jrinx/ktest/internal/judge"
	"github.com/Jrinx/ktest/internal/logging"
)

// State is the status of a (test, target) pair.
type State int

const (
	Waiting State = iota
	Running
	Passed
	Failed
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Running:
		return "running"
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is a status transition of a (test, target) pair.
type Event struct {
	Test   string
	Target string
	State  State
	// Verdict is set for Passed and Failed events of sessions that ran.
	Verdict *judge.Verdict
	// Err is set for Failed events of sessions that could not run.
	Err error
}

// Slug returns "test@target", or just the test when target is empty.
func (e *Event) Slug() string {
	return Slug(e.Test, e.Target)
}

// Slug formats a (test, target) pair for humans.
func Slug(test, target string) string {
	if target == "" {
		return test
	}
	return test + "@" + target
}

// Sink receives events. Implementations need not be safe for concurrent use;
// wrap them with Serialize when events come from multiple goroutines.
type Sink interface {
	Report(e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(e Event)

// Report calls f(e).
func (f SinkFunc) Report(e Event) { f(e) }

type serialSink struct {
	mu   sync.Mutex
	sink Sink
}

func (s *serialSink) Report(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.Report(e)
}

// Serialize returns a Sink that forwards events to sink one at a time.
func Serialize(sink Sink) Sink {
	return &serialSink{sink: sink}
}

// Tee returns a Sink forwarding each event to all sinks in order.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			s.Report(e)
		}
	})
}

// LogSink reports events as log lines via the logger attached to ctx.
// Waiting events are not logged.
type LogSink struct {
	ctx context.Context
}

// NewLogSink returns a LogSink logging to ctx.
func NewLogSink(ctx context.Context) *LogSink {
	return &LogSink{ctx: ctx}
}

// Report logs e.
func (s *LogSink) Report(e Event) {
	switch e.State {
	case Running:
		logging.Info(s.ctx, "Run    ", e.Slug())
	case Passed:
		logging.Info(s.ctx, "Passed ", e.Slug())
	case Failed:
		switch {
		case e.Err != nil:
			logging.Warnf(s.ctx, "Failed %s: %v", e.Slug(), e.Err)
		case e.Verdict != nil:
			logging.Warnf(s.ctx, "Failed %s: %v", e.Slug(), e.Verdict)
		default:
			logging.Warn(s.ctx, "Failed ", e.Slug())
		}
	}
}
