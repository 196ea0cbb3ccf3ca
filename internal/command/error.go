// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package command contains code shared by the ktest subcommands: flag types,
// exit statuses, terminal handling and signal handling.
package command

import (
	"fmt"
	"io"

	"github.com/Jrinx/ktest/internal/errors"
)

// Exit statuses of ktest.
const (
	// ExitOK means every judged test passed.
	ExitOK = 0
	// ExitFailed means at least one test did not pass.
	ExitFailed = 1
	// ExitError means the tests could not be run.
	ExitError = 2
)

// StatusError implements the error interface and contains an additional status code.
type StatusError struct {
	msg    string
	status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v (status %v)", e.msg, e.status)
}

// Status returns e's status code.
func (e *StatusError) Status() int {
	return e.status
}

// NewStatusErrorf creates a StatusError with the passed status code and formatted string.
func NewStatusErrorf(status int, format string, args ...interface{}) *StatusError {
	return &StatusError{fmt.Sprintf(format, args...), status}
}

// WriteError writes a newline-terminated fatal error to w and returns the status code to use when exiting.
// If err does not wrap a *StatusError, ExitError is returned.
func WriteError(w io.Writer, err error) int {
	var msg string
	var status int

	var se *StatusError
	if errors.As(err, &se) {
		msg = se.msg
		status = se.status
	} else {
		msg = err.Error()
		status = ExitError
	}

	if len(msg) > 0 && msg[len(msg)-1] != '\n' {
		msg += "\n"
	}
	io.WriteString(w, msg)

	return status
}
