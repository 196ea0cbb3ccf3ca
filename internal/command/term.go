// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package command

import (
	"os"

	"golang.org/x/crypto/ssh/terminal"
)

// IsTerminal reports whether f refers to a terminal.
func IsTerminal(f *os.File) bool {
	return terminal.IsTerminal(int(f.Fd()))
}

// TerminalState is a saved terminal mode.
type TerminalState struct {
	fd    int
	state *terminal.State // nil if f was not a terminal
}

// SaveTerminal saves the mode of the terminal f. If f is not a terminal, the
// returned state restores nothing.
func SaveTerminal(f *os.File) *TerminalState {
	fd := int(f.Fd())
	if !terminal.IsTerminal(fd) {
		return &TerminalState{fd: fd}
	}
	st, err := terminal.GetState(fd)
	if err != nil {
		return &TerminalState{fd: fd}
	}
	return &TerminalState{fd: fd, state: st}
}

// Restore puts the terminal back into the saved mode.
func (s *TerminalState) Restore() error {
	if s.state == nil {
		return nil
	}
	return terminal.Restore(s.fd, s.state)
}
