// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package timing

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// fakeClock can be used to simulate the passage of time in tests.
type fakeClock struct {
	mu  sync.Mutex
	sec int64
}

// install installs the fake clock as the function used to get the current
// time in this package and uninstalls it at the end of the test.
func (c *fakeClock) install(t *testing.T) {
	now = c.now
	t.Cleanup(func() { now = time.Now })
}

// now returns a time based on c.sec and increments it to simulate a second passing.
func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := time.Unix(c.sec, 0)
	c.sec++
	return t
}

func writePretty(t *testing.T, l *Log) string {
	var b bytes.Buffer
	if err := l.WritePretty(&b); err != nil {
		t.Fatal("WritePretty() failed: ", err)
	}
	return b.String()
}

func TestEmpty(t *testing.T) {
	l := NewLog()
	if !l.Empty() {
		t.Error("Empty() initially returned false")
	}
	s := l.StartTop("stage")
	if l.Empty() {
		t.Error("Empty() returned true with open stage")
	}
	s.End()
	if l.Empty() {
		t.Error("Empty() returned true with closed stage")
	}
}

func TestWritePretty(t *testing.T) {
	var fc fakeClock
	fc.install(t)

	l := NewLog()
	run := l.StartTop("run")           // 0
	run.StartChild("mm@virt").End()    // 1, 2
	run.StartChild("sched@virt").End() // 3, 4
	run.End()                          // 5
	l.StartTop("write results").End()  // 6, 7

	const want = `[[5.000, "run", [
         [1.000, "mm@virt"],
         [1.000, "sched@virt"]]],
 [1.000, "write results"]]
`
	if got := writePretty(t, l); got != want {
		t.Errorf("WritePretty() wrote:\n%s\nwant:\n%s", got, want)
	}
}

func TestEndEndsChildren(t *testing.T) {
	var fc fakeClock
	fc.install(t)

	l := NewLog()
	s := l.StartTop("run")
	c := s.StartChild("mm@virt")
	s.End()
	if c.EndTime.IsZero() {
		t.Error("Child stage not ended by parent")
	}
	if s.StartChild("late") != nil {
		t.Error("StartChild on an ended stage returned non-nil")
	}
}

func TestMarshalJSON(t *testing.T) {
	var fc fakeClock
	fc.install(t)

	l := NewLog()
	l.StartTop("build").End()
	b, err := json.Marshal(l)
	if err != nil {
		t.Fatal("Marshal failed: ", err)
	}
	var got struct {
		Stages []struct {
			Name string `json:"name"`
		} `json:"stages"`
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal("Unmarshal failed: ", err)
	}
	if len(got.Stages) != 1 || got.Stages[0].Name != "build" {
		t.Errorf("Marshal produced %s", b)
	}
}

func TestContext(t *testing.T) {
	if l, s, ok := FromContext(context.Background()); ok || l != nil || s != nil {
		t.Errorf("FromContext(bg) = (%v, %v, %v); want (nil, nil, false)", l, s, ok)
	}

	// Start and End must work without a Log.
	_, st := Start(context.Background(), "stage")
	st.End()

	l := NewLog()
	ctx := NewContext(context.Background(), l)
	ctx1, s1 := Start(ctx, "run")
	_, s2 := Start(ctx1, "mm@virt")
	_, s3 := Start(ctx1, "sched@virt")
	s2.End()
	s3.End()
	s1.End()

	var names []string
	for _, c := range l.Root.Children[0].Children {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff(names, []string{"mm@virt", "sched@virt"}); diff != "" {
		t.Errorf("Child stages mismatch (-got +want):\n%s", diff)
	}
	if l.Root.Children[0].Name != "run" {
		t.Errorf("Top stage = %q; want %q", l.Root.Children[0].Name, "run")
	}
}

func TestDuration(t *testing.T) {
	var fc fakeClock
	fc.install(t)

	var nilStage *Stage
	if d := nilStage.Duration(); d != 0 {
		t.Errorf("Duration() of nil stage = %v; want 0", d)
	}
	s := NewLog().StartTop("x") // 0
	s.End()                     // 1
	if d := s.Duration(); d != time.Second {
		t.Errorf("Duration() = %v; want %v", d, time.Second)
	}
}
