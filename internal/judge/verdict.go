// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package judge

import "fmt"

// VerdictKind is the outcome of a judging session.
type VerdictKind int

const (
	// Passed means the expected pattern fully matched.
	Passed VerdictKind = iota
	// FailedUnexpected means the unexpected pattern fully matched first.
	FailedUnexpected
	// FailedTimeout means the deadline elapsed before a decision was made.
	FailedTimeout
	// FailedExpectedNotFound means the output ended without the expected
	// pattern fully matching.
	FailedExpectedNotFound
)

func (k VerdictKind) String() string {
	switch k {
	case Passed:
		return "passed"
	case FailedUnexpected:
		return "unexpected pattern found"
	case FailedTimeout:
		return "timeout"
	case FailedExpectedNotFound:
		return "expected pattern not found"
	default:
		return fmt.Sprintf("verdict(%d)", int(k))
	}
}

// Verdict is the single result of a judging session.
type Verdict struct {
	Kind VerdictKind
	// Trigger describes the unexpected pattern for FailedUnexpected.
	Trigger string
	// Line is the line that completed the unexpected pattern.
	Line string
}

// Passed reports whether v is a passing verdict.
func (v *Verdict) Passed() bool {
	return v.Kind == Passed
}

// ExitCode returns the process exit status conventionally used for v.
func (v *Verdict) ExitCode() int {
	if v.Passed() {
		return 0
	}
	return 1
}

func (v *Verdict) String() string {
	if v.Kind == FailedUnexpected {
		return fmt.Sprintf("%v: %q in line %q", v.Kind, v.Trigger, v.Line)
	}
	return v.Kind.String()
}
