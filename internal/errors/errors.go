// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package errors constructs errors that remember where they were created.
//
// Use this package instead of the standard errors.New and fmt.Errorf so that
// judging failures logged with the "%+v" verb carry a short stack trace for
// every link of the chain:
//
//	errors.Wrapf(err, "failed to spawn %q", args[0])
//
// Errors created here unwrap to their cause, so errors.Is and errors.As from
// the standard library (re-exported below) work across wrapping.
package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"
)

// impl is the error implementation used by this package.
type impl struct {
	msg   string // message prepended to cause
	stk   stack  // where this error was created
	cause error  // wrapped error, if any
}

func (e *impl) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %s", e.msg, e.cause.Error())
}

// Unwrap returns the wrapped error, or nil.
func (e *impl) Unwrap() error { return e.cause }

// Format implements fmt.Formatter. "%+v" prints the whole chain with stacks.
func (e *impl) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		io.WriteString(s, formatChain(e))
		return
	}
	io.WriteString(s, e.Error())
}

func formatChain(err error) string {
	var chain []string
	for err != nil {
		e, ok := err.(*impl)
		if !ok {
			chain = append(chain, fmt.Sprintf("%s\n\tat ???", err.Error()))
			break
		}
		chain = append(chain, fmt.Sprintf("%s\n%v", e.msg, e.stk))
		err = e.cause
	}
	return strings.Join(chain, "\n")
}

// New creates a new error with the given message.
func New(msg string) error {
	return &impl{msg, newStack(1), nil}
}

// Errorf creates a new error with a formatted message.
func Errorf(format string, args ...interface{}) error {
	return &impl{fmt.Sprintf(format, args...), newStack(1), nil}
}

// Wrap creates a new error with the given message, wrapping cause.
// If cause is nil, this is the same as New.
func Wrap(cause error, msg string) error {
	return &impl{msg, newStack(1), cause}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(cause error, format string, args ...interface{}) error {
	return &impl{fmt.Sprintf(format, args...), newStack(1), cause}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }
