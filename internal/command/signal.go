// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package command

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

var selfName = filepath.Base(os.Args[0])

// exit is replaced in tests.
var exit = os.Exit

// InstallSignalHandler installs a handler for SIGINT and SIGTERM. out is the
// output stream to write messages to (typically stderr).
//
// The first signal calls callback, which should cancel ongoing work so that
// running sessions eliminate their children. A second signal restores the
// terminal, terminates child processes along with their sessions and exits
// with status 1.
// The returned function uninstalls the handler.
func InstallSignalHandler(out io.Writer, callback func(sig os.Signal)) (stop func()) {
	term := SaveTerminal(os.Stdin)
	ch := make(chan os.Signal, 2)
	done := make(chan struct{})
	go func() {
		caught := 0
		for {
			select {
			case sig := <-ch:
				caught++
				if caught == 1 {
					fmt.Fprintf(out, "\n%s: Caught %v signal; stopping (send again to exit now)\n", selfName, sig)
					callback(sig)
					continue
				}
				fmt.Fprintf(out, "\n%s: Caught %v signal; exiting\n", selfName, sig)
				term.Restore()
				terminateChildren(out)
				exit(1)
			case <-done:
				return
			}
		}
	}()
	signal.Notify(ch, unix.SIGINT, unix.SIGTERM)

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
}

// terminateChildren sends SIGTERM to the child processes of this process.
// Children leading their own session take every process in that session
// with them, so grandchildren of session children do not outlive us.
func terminateChildren(out io.Writer) {
	procs, err := process.Processes()
	if err != nil {
		fmt.Fprintf(out, "Failed to terminate subprocesses: %v\n", err)
		return
	}

	selfPid := int32(os.Getpid())
	targets := make(map[int32]*process.Process)
	sessions := make(map[int]struct{})
	for _, proc := range procs {
		ppid, err := proc.Ppid()
		if err != nil || ppid != selfPid {
			continue
		}
		targets[proc.Pid] = proc
		if sid, err := unix.Getsid(int(proc.Pid)); err == nil && sid == int(proc.Pid) {
			sessions[sid] = struct{}{}
		}
	}
	for _, proc := range procs {
		if proc.Pid == selfPid {
			continue
		}
		sid, err := unix.Getsid(int(proc.Pid))
		if err != nil {
			continue
		}
		if _, ok := sessions[sid]; ok {
			targets[proc.Pid] = proc
		}
	}

	for _, proc := range targets {
		if err := proc.Terminate(); err != nil && err != unix.ESRCH {
			fmt.Fprintf(out, "Failed to terminate pid %d: %v\n", proc.Pid, err)
		}
	}
}
