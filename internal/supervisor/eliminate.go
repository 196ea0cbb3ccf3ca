// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package supervisor

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/sys/unix"

	"github.com/Jrinx/ktest/internal/errors"
	"github.com/Jrinx/ktest/internal/logging"
)

// pollInterval is the interval at which Eliminate checks whether signaled
// processes have exited.
const pollInterval = 50 * time.Millisecond

// Eliminate terminates the child and all of its descendants. Processes get
// SIGTERM first and SIGKILL if they are still alive after bound. Eliminate
// then waits without a timeout until the child has been reaped.
//
// Eliminate is idempotent: it may be called any number of times, from any
// goroutine, also after the child exited on its own. Callers after the first
// block until the first elimination completes. Failures are logged as
// warnings and never returned.
func (p *Process) Eliminate(ctx context.Context, bound time.Duration) {
	p.once.Do(func() {
		defer close(p.elimDone)
		p.eliminate(ctx, bound)
	})
	<-p.elimDone
}

func (p *Process) eliminate(ctx context.Context, bound time.Duration) {
	// Cleanup runs to completion even if ctx is already canceled.
	ctx = context.WithoutCancel(ctx)
	p.setState(StateTerminating)
	close(p.stop)

	if p.stdin != nil {
		if err := p.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logging.Warnf(ctx, "Failed to close stdin of pid %d: %v", p.Pid(), err)
		}
	}
	if p.echo != nil {
		p.drain()
	}
	if err := p.out.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		logging.Warnf(ctx, "Failed to close output of pid %d: %v", p.Pid(), err)
	}

	procs := p.tree(ctx)
	logging.Debugf(ctx, "Terminating %d process(es) of session %d", len(procs), p.Pid())
	for _, pid := range procs {
		signal(ctx, pid, unix.SIGTERM)
	}

	p.setState(StateWaiting)
	alive := p.waitAll(procs, bound)

	if len(alive) > 0 {
		p.setState(StateKilling)
		logging.Debugf(ctx, "Killing %d process(es) still alive after %v", len(alive), bound)
		for _, pid := range alive {
			signal(ctx, pid, unix.SIGKILL)
		}
		// Catch anything forked while the first signals were delivered.
		killSession(ctx, p.Pid(), unix.SIGKILL)
	}

	<-p.exited
	p.setState(StateReaped)
}

// drain forwards lines already decoded to the echo function without blocking.
func (p *Process) drain() {
	for {
		select {
		case line, ok := <-p.lines:
			if !ok {
				return
			}
			p.echo(line)
		default:
			return
		}
	}
}

// tree returns the PIDs of the child, its descendants and any other process
// still in the child's session, in ascending order.
func (p *Process) tree(ctx context.Context) []int32 {
	pids := make(map[int32]struct{})

	var walk func(proc *process.Process)
	walk = func(proc *process.Process) {
		if _, ok := pids[proc.Pid]; ok {
			return
		}
		pids[proc.Pid] = struct{}{}
		children, err := proc.ChildrenWithContext(ctx)
		if err != nil {
			return
		}
		for _, c := range children {
			walk(c)
		}
	}
	select {
	case <-p.exited:
	default:
		pids[int32(p.Pid())] = struct{}{}
		if root, err := process.NewProcessWithContext(ctx, int32(p.Pid())); err == nil {
			delete(pids, root.Pid)
			walk(root)
		}
	}

	// Descendants whose parents died have been reparented, but they stay in
	// the session.
	sid := p.Pid()
	all, err := process.PidsWithContext(ctx)
	if err != nil {
		logging.Warn(ctx, "Failed to list processes: ", err)
	}
	for _, pid := range all {
		if s, err := unix.Getsid(int(pid)); err == nil && s == sid {
			pids[pid] = struct{}{}
		}
	}

	list := maps.Keys(pids)
	slices.Sort(list)
	return list
}

// waitAll waits up to bound for pids to exit and returns those still alive.
func (p *Process) waitAll(pids []int32, bound time.Duration) []int32 {
	timeout := p.clk.NewTimer(bound)
	defer timeout.Stop()
	exited := p.exited
	for {
		alive := pids[:0:0]
		for _, pid := range pids {
			if p.isAlive(pid) {
				alive = append(alive, pid)
			}
		}
		if len(alive) == 0 {
			return nil
		}
		pids = alive
		select {
		case <-timeout.C():
			return alive
		case <-p.clk.After(pollInterval):
		case <-exited:
			// Recheck right away once the child is reaped, then go back to
			// polling.
			exited = nil
		}
	}
}

// isAlive reports whether pid is running. Zombies count as exited.
func (p *Process) isAlive(pid int32) bool {
	if int(pid) == p.Pid() {
		select {
		case <-p.exited:
			return false
		default:
		}
	}
	proc, err := process.NewProcess(pid)
	if err != nil {
		return false
	}
	status, err := proc.Status()
	if err != nil {
		return false
	}
	return !slices.Contains(status, process.Zombie)
}

// signal sends sig to pid. A process that no longer exists is not an error.
func signal(ctx context.Context, pid int32, sig unix.Signal) {
	if err := unix.Kill(int(pid), sig); err != nil && err != unix.ESRCH {
		logging.Warnf(ctx, "Failed to send %v to pid %d: %v", sig, pid, err)
	}
}

// killSession makes a best-effort attempt to kill all processes in session
// sid. It makes several passes over the list of running processes, sending
// sig to any that are part of the session, until a pass finds none.
func killSession(ctx context.Context, sid int, sig unix.Signal) {
	const maxPasses = 3
	for i := 0; i < maxPasses; i++ {
		pids, err := process.PidsWithContext(ctx)
		if err != nil {
			return
		}
		n := 0
		for _, pid := range pids {
			if s, err := unix.Getsid(int(pid)); err == nil && s == sid {
				signal(ctx, pid, sig)
				n++
			}
		}
		if n == 0 {
			return
		}
	}
}
