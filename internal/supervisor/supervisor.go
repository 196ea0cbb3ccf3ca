// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package supervisor runs a child process in its own session, streams its
// combined output as lines and guarantees the whole process tree is gone once
// the child is eliminated.
package supervisor

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"code.cloudfoundry.org/clock"
	"github.com/creack/pty"
	"golang.org/x/sys/unix"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/Jrinx/ktest/internal/errors"
	"github.com/Jrinx/ktest/internal/logging"
)

var (
	// ErrSpawn is wrapped by errors returned when a child cannot be started.
	ErrSpawn = errors.New("failed to spawn child")
	// ErrEliminated is returned by Next once elimination has begun.
	ErrEliminated = errors.New("child eliminated")
)

// lineBufferSize is the number of decoded lines buffered ahead of the reader.
const lineBufferSize = 64

// Cmd describes a child process to spawn.
type Cmd struct {
	// Args holds the command line; Args[0] is looked up in PATH.
	Args []string
	// Env is the child's environment. If nil, the current environment is used.
	Env []string
	// Dir is the child's working directory.
	Dir string
	// PTY attaches the child to a pseudo-terminal instead of a pipe.
	PTY bool
	// Echo, if set, receives lines still buffered when the child is
	// eliminated.
	Echo func(line string)
	// Clock paces the bounded wait of Eliminate. Defaults to the real clock.
	Clock clock.Clock
}

// State is the elimination state of a Process.
type State int

// States a Process goes through. Transitions only move forward.
const (
	StateRunning State = iota
	StateTerminating
	StateWaiting
	StateKilling
	StateReaped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	case StateWaiting:
		return "waiting"
	case StateKilling:
		return "killing"
	case StateReaped:
		return "reaped"
	default:
		return "unknown"
	}
}

// Process is a spawned child and its descendants.
type Process struct {
	cmd   *exec.Cmd
	stdin io.Closer // nil for PTY children
	out   *os.File
	echo  func(string)
	clk   clock.Clock

	lines  chan string
	stop   chan struct{} // closed when elimination begins
	exited chan struct{} // closed when the child has been reaped

	exitCode int // valid after exited is closed

	once     sync.Once
	elimDone chan struct{}

	mu    sync.Mutex
	state State
}

// Spawn starts c in a new session. The returned Process must be eliminated
// with Eliminate.
func Spawn(ctx context.Context, c *Cmd) (*Process, error) {
	if len(c.Args) == 0 {
		return nil, errors.Wrap(ErrSpawn, "empty command")
	}
	cmd := exec.Command(c.Args[0], c.Args[1:]...)
	cmd.Env = c.Env
	cmd.Dir = c.Dir

	clk := c.Clock
	if clk == nil {
		clk = clock.NewClock()
	}
	p := &Process{
		cmd:      cmd,
		echo:     c.Echo,
		clk:      clk,
		lines:    make(chan string, lineBufferSize),
		stop:     make(chan struct{}),
		exited:   make(chan struct{}),
		elimDone: make(chan struct{}),
	}

	if c.PTY {
		// pty.Start puts the child in a new session with the pty as its
		// controlling terminal.
		ptmx, err := pty.Start(cmd)
		if err != nil {
			return nil, errors.Wrapf(ErrSpawn, "%s: %v", strings.Join(c.Args, " "), err)
		}
		p.out = ptmx
	} else {
		pr, pw, err := os.Pipe()
		if err != nil {
			return nil, errors.Wrapf(ErrSpawn, "output pipe: %v", err)
		}
		inr, inw, err := os.Pipe()
		if err != nil {
			pr.Close()
			pw.Close()
			return nil, errors.Wrapf(ErrSpawn, "input pipe: %v", err)
		}
		cmd.Stdin = inr
		cmd.Stdout = pw
		cmd.Stderr = pw
		cmd.SysProcAttr = &unix.SysProcAttr{Setsid: true}
		err = cmd.Start()
		// The child holds its own copies now.
		pw.Close()
		inr.Close()
		if err != nil {
			pr.Close()
			inw.Close()
			return nil, errors.Wrapf(ErrSpawn, "%s: %v", strings.Join(c.Args, " "), err)
		}
		p.out = pr
		p.stdin = inw
	}

	logging.Debugf(ctx, "Spawned %q as pid %d", c.Args, cmd.Process.Pid)
	go p.read()
	go p.wait()
	return p, nil
}

// Pid returns the child's process ID, which is also its session ID.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// read decodes the output stream into lines until it ends or is closed.
func (p *Process) read() {
	defer close(p.lines)
	br := bufio.NewReader(transform.NewReader(p.out, unicode.UTF8.NewDecoder()))
	for {
		s, err := br.ReadString('\n')
		if s != "" {
			s = strings.TrimSuffix(strings.TrimSuffix(s, "\n"), "\r")
			select {
			case <-p.stop:
				return
			default:
			}
			select {
			case p.lines <- s:
			case <-p.stop:
				return
			}
		}
		// EOF for pipes, EIO for a pty whose slave side is gone, or
		// os.ErrClosed after Eliminate closed the read side.
		if err != nil {
			return
		}
	}
}

func (p *Process) wait() {
	p.cmd.Wait()
	p.exitCode = p.cmd.ProcessState.ExitCode()
	close(p.exited)
}

// Lines returns the channel of output lines. It is closed when the output
// stream ends or soon after elimination begins. Lines and Next consume the
// same stream.
//
// Only Next stops returning lines once elimination has begun. A receiver on
// the channel may still get lines decoded before that, up to the buffer size
// plus the line being delivered at the time.
func (p *Process) Lines() <-chan string {
	return p.lines
}

// Next blocks until the next output line is available. It returns io.EOF
// once the stream is exhausted and ErrEliminated once elimination has begun.
func (p *Process) Next(ctx context.Context) (string, error) {
	select {
	case <-p.stop:
		return "", ErrEliminated
	default:
	}
	select {
	case line, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		select {
		case <-p.stop:
			return "", ErrEliminated
		default:
		}
		return line, nil
	case <-p.stop:
		return "", ErrEliminated
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Exited returns a channel closed once the child has exited and been reaped.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// ExitCode returns the child's exit code, or -1 if it was killed by a
// signal. It must be called after Exited is closed.
func (p *Process) ExitCode() int {
	return p.exitCode
}

// State returns the current elimination state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Process) setState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}
