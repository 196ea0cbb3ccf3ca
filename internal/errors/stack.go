// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package errors

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	maxDepth = 8       // maximum number of stack frames to record
	ellipsis = "\t..." // appended when the trace was cut at maxDepth
)

// stack holds a snapshot of program counters.
type stack []uintptr

// newStack captures the caller's stack. skip=0 records the newStack caller
// as the innermost frame.
func newStack(skip int) stack {
	pc := make([]uintptr, maxDepth+1)
	return stack(pc[:runtime.Callers(skip+2, pc)])
}

func (s stack) String() string {
	var lines []string
	cf := runtime.CallersFrames(s)
	for {
		f, more := cf.Next()
		lines = append(lines, fmt.Sprintf("\tat %s (%s:%d)", f.Function, filepath.Base(f.File), f.Line))
		if !more {
			break
		}
		if len(lines) >= maxDepth {
			lines = append(lines, ellipsis)
			break
		}
	}
	return strings.Join(lines, "\n")
}
