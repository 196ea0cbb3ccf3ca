// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package timing is used to collect and write timing information about a run,
// e.g. the build stage and every judging session.
package timing

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// now is the function to return the current time. This is altered in unit tests.
var now = time.Now

// Log contains nested timing information.
type Log struct {
	// Root is a special root stage containing all stages as its descendants.
	// Its End should not be called, and its timestamps should be ignored.
	Root *Stage
}

// NewLog returns a new Log.
func NewLog() *Log {
	return &Log{Root: &Stage{}}
}

// StartTop starts and returns a new top-level stage named name.
func (l *Log) StartTop(name string) *Stage {
	return l.Root.StartChild(name)
}

// Empty returns true if l doesn't contain any stages.
func (l *Log) Empty() bool {
	l.Root.mu.Lock()
	defer l.Root.mu.Unlock()
	return len(l.Root.Children) == 0
}

// WritePretty writes timing information to w as JSON, consisting of an array
// of stages, each represented by an array consisting of the stage's duration,
// name, and an optional array of child stages:
//
//	[[4.000, "run", [
//	         [3.000, "jrinx::test::mm@virt"],
//	         [1.000, "jrinx::test::sched@virt"]]],
//	 [0.531, "write results"]]
func (l *Log) WritePretty(w io.Writer) error {
	l.Root.mu.Lock()
	defer l.Root.mu.Unlock()

	// Use a bufio.Writer to avoid any further writes after an error is encountered.
	bw := bufio.NewWriter(w)

	io.WriteString(bw, "[")
	for i, s := range l.Root.Children {
		// The first top-level stage is on the same line as the opening '['.
		var indent string
		if i > 0 {
			indent = " "
		}
		if err := s.writePretty(bw, indent, " ", i == len(l.Root.Children)-1); err != nil {
			return err
		}
	}
	io.WriteString(bw, "]\n")
	return bw.Flush() // returns first error encountered during earlier writes
}

// MarshalJSON marshals Log as JSON.
func (l *Log) MarshalJSON() ([]byte, error) {
	l.Root.mu.Lock()
	defer l.Root.mu.Unlock()
	return json.Marshal(struct {
		Stages []*Stage `json:"stages"`
	}{l.Root.Children})
}

// Stage represents a discrete unit of work that is being timed.
type Stage struct {
	Name      string    `json:"name"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Children  []*Stage  `json:"children,omitempty"`

	mu sync.Mutex // protects EndTime and Children
}

// StartChild creates and returns a new named timing stage as a child of s.
// Stage.End should be called when the stage is completed. Children may be
// started concurrently.
func (s *Stage) StartChild(name string) *Stage {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.EndTime.IsZero() {
		return nil
	}
	c := &Stage{Name: name, StartTime: now()}
	s.Children = append(s.Children, c)
	return c
}

// End ends the stage. Child stages are recursively ended as well.
func (s *Stage) End() {
	// Handle nil receivers returned by Start.
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.EndTime.IsZero() {
		return
	}
	for _, c := range s.Children {
		c.End()
	}
	s.EndTime = now()
}

// Duration returns the elapsed time of the stage so far.
func (s *Stage) Duration() time.Duration {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EndTime.IsZero() {
		return now().Sub(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// writePretty writes the stage and its children to w as a JSON array.
// The first line is indented by initialIndent and subsequent lines by
// followIndent. last should be true if this is the last entry in its parent
// array; otherwise a trailing comma and newline are appended.
func (s *Stage) writePretty(w *bufio.Writer, initialIndent, followIndent string, last bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mn, err := json.Marshal(&s.Name)
	if err != nil {
		return err
	}
	var elapsed time.Duration
	if s.EndTime.IsZero() {
		elapsed = now().Sub(s.StartTime)
	} else {
		elapsed = s.EndTime.Sub(s.StartTime)
	}
	fmt.Fprintf(w, "%s[%0.3f, %s", initialIndent, elapsed.Seconds(), mn)

	if len(s.Children) > 0 {
		io.WriteString(w, ", [\n")
		ci := followIndent + strings.Repeat(" ", 8)
		for i, c := range s.Children {
			if err := c.writePretty(w, ci, ci, i == len(s.Children)-1); err != nil {
				return err
			}
		}
		io.WriteString(w, "]")
	}

	io.WriteString(w, "]")
	if !last {
		io.WriteString(w, ",\n")
	}
	return nil
}

type contextKey struct{}

type contextValue struct {
	log   *Log
	stage *Stage
}

// NewContext returns a context carrying l. Stages started with Start become
// top-level stages of l.
func NewContext(ctx context.Context, l *Log) context.Context {
	return context.WithValue(ctx, contextKey{}, &contextValue{l, l.Root})
}

// FromContext returns the Log and current stage attached to ctx.
func FromContext(ctx context.Context) (*Log, *Stage, bool) {
	v, ok := ctx.Value(contextKey{}).(*contextValue)
	if !ok {
		return nil, nil, false
	}
	return v.log, v.stage, true
}

// Start starts a stage named name as a child of the current stage of ctx and
// returns a context in which the new stage is current. If ctx carries no Log,
// a nil Stage is returned; calling End on it is safe.
func Start(ctx context.Context, name string) (context.Context, *Stage) {
	l, parent, ok := FromContext(ctx)
	if !ok {
		return ctx, nil
	}
	s := parent.StartChild(name)
	if s == nil {
		return ctx, nil
	}
	return context.WithValue(ctx, contextKey{}, &contextValue{l, s}), s
}
