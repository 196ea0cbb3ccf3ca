// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package command_test

import (
	"bytes"
	"testing"

	"github.com/Jrinx/ktest/internal/command"
	"github.com/Jrinx/ktest/internal/errors"
)

func TestWriteErrorStatusError(t *testing.T) {
	const (
		status = command.ExitFailed
		msg    = "this is the error message"
	)

	// When passed a *StatusError, WriteError should return the attached status code.
	err := errors.Wrap(command.NewStatusErrorf(status, msg), "wrapped")
	b := bytes.Buffer{}
	if ret := command.WriteError(&b, err); ret != status {
		t.Errorf("WriteError(%v) = %v; want %v", err, ret, status)
	}
	if b.String() != msg+"\n" {
		t.Errorf("WriteError(%v) wrote %q; want %q", err, b.String(), msg+"\n")
	}
}

func TestWriteErrorGenericError(t *testing.T) {
	const msg = "this is the error message"

	// Other errors mean the tests could not be run.
	err := errors.New(msg)
	b := bytes.Buffer{}
	if ret := command.WriteError(&b, err); ret != command.ExitError {
		t.Errorf("WriteError(%v) = %v; want %v", err, ret, command.ExitError)
	}
	if b.String() != msg+"\n" {
		t.Errorf("WriteError(%v) wrote %q; want %q", err, b.String(), msg+"\n")
	}
}
