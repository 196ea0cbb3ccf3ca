// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package errors

import (
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
)

func check(t *testing.T, err error, msg string, traceRegexp *regexp.Regexp) {
	t.Helper()
	if s := err.Error(); s != msg {
		t.Errorf("Wrong error message %q; want %q", s, msg)
	}
	if s := fmt.Sprintf("%v", err); s != msg {
		t.Errorf("Wrong default value %q; want %q", s, msg)
	}
	if tr := fmt.Sprintf("%+v", err); !traceRegexp.MatchString(tr) {
		t.Errorf("Wrong trace %q; should match %q", tr, traceRegexp)
	}
}

func TestNew(t *testing.T) {
	check(t, New("spawn failed"), "spawn failed",
		regexp.MustCompile(`^spawn failed
	at github.com/Jrinx/ktest/internal/errors\.TestNew \(errors_test.go:\d+\)`))
}

func TestErrorf(t *testing.T) {
	check(t, Errorf("pid %d gone", 42), "pid 42 gone",
		regexp.MustCompile(`^pid 42 gone
	at github.com/Jrinx/ktest/internal/errors\.TestErrorf \(errors_test.go:\d+\)`))
}

func TestWrap(t *testing.T) {
	check(t, Wrap(New("no such file"), "failed to load test"), "failed to load test: no such file",
		regexp.MustCompile(`(?s)^failed to load test
	at github.com/Jrinx/ktest/internal/errors\.TestWrap \(errors_test.go:\d+\)
.*
no such file
	at github.com/Jrinx/ktest/internal/errors\.TestWrap \(errors_test.go:\d+\)`))
}

func TestWrapForeignError(t *testing.T) {
	check(t, Wrapf(stderrors.New("EOF"), "reading %s", "stdout"), "reading stdout: EOF",
		regexp.MustCompile(`(?s)^reading stdout
	at .*
EOF
	at \?\?\?$`))
}

func TestWrapNil(t *testing.T) {
	check(t, Wrap(nil, "alone"), "alone",
		regexp.MustCompile(`^alone
	at github.com/Jrinx/ktest/internal/errors\.TestWrapNil \(errors_test.go:\d+\)`))
}

func TestIs(t *testing.T) {
	sentinel := New("invalid pattern spec")
	err := Wrapf(Wrap(sentinel, "ordered child 1"), "test %s", "jrinx::test::a")
	if !Is(err, sentinel) {
		t.Errorf("Is(%v, sentinel) = false; want true", err)
	}
	if Is(err, New("invalid pattern spec")) {
		t.Error("Is matched a distinct error with the same message")
	}
}

func deepStack(depth int) stack {
	if depth == 0 {
		return newStack(0)
	}
	return deepStack(depth - 1)
}

func TestStackTruncated(t *testing.T) {
	lines := strings.Split(deepStack(maxDepth).String(), "\n")
	if len(lines) != maxDepth+1 {
		t.Fatalf("Stack trace has %d lines; want %d", len(lines), maxDepth+1)
	}
	if lines[len(lines)-1] != ellipsis {
		t.Errorf("Last line = %q; want %q", lines[len(lines)-1], ellipsis)
	}
}
