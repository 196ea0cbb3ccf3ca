// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package judge runs a single test: it spawns the test target, matches its
// output against the expected and unexpected patterns and returns a verdict.
package judge

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/Jrinx/ktest/internal/errors"
	"github.com/Jrinx/ktest/internal/logging"
	"github.com/Jrinx/ktest/internal/pattern"
	"github.com/Jrinx/ktest/internal/supervisor"
)

const (
	// DefaultTimeout is the default deadline of a session.
	DefaultTimeout = 180 * time.Second

	// BootArgsEnv is the environment variable carrying boot arguments to the
	// kernel under test.
	BootArgsEnv = "BOOTARGS"
)

// DefaultCommand is the default command booting the test target.
var DefaultCommand = []string{"cargo", "qemu"}

// ErrMissingExpected is wrapped by errors returned for a session without an
// expected pattern.
var ErrMissingExpected = errors.New("no expected pattern specified")

// Config describes a judging session.
type Config struct {
	// Expected must fully match for the test to pass. Required.
	Expected *pattern.Spec
	// Unexpected fails the test when it fully matches. Optional.
	Unexpected *pattern.Spec
	// BootArgs is appended to BOOTARGS in the child's environment.
	BootArgs string

	// Command is the child command line. Defaults to DefaultCommand.
	Command []string
	// Env is the base environment of the child. Defaults to os.Environ().
	Env []string
	// Dir is the working directory of the child.
	Dir string
	// PTY runs the child on a pseudo-terminal.
	PTY bool

	// Timeout bounds the whole session. Defaults to DefaultTimeout.
	Timeout time.Duration
	// KillBound is how long terminated processes are given before they are
	// killed. Defaults to Timeout.
	KillBound time.Duration

	// Verbose echoes every line to Output and logs captured strings.
	Verbose bool
	// Output receives echoed lines in verbose mode.
	Output io.Writer
	// Transcript, if set, receives every line read from the child.
	Transcript io.Writer

	// Clock drives the session deadline. Defaults to the real clock.
	Clock clock.Clock
}

// Run runs a judging session and returns its verdict. An error is returned
// only if the session could not be run at all; test failures are reported
// as verdicts. The child is eliminated before Run returns.
func Run(ctx context.Context, cfg *Config) (*Verdict, error) {
	if cfg.Expected == nil {
		return nil, errors.Wrap(ErrMissingExpected, "cannot judge")
	}
	expected, err := pattern.New(cfg.Expected)
	if err != nil {
		return nil, errors.Wrap(err, "expected pattern")
	}
	var unexpected pattern.Matcher
	if cfg.Unexpected != nil {
		if unexpected, err = pattern.New(cfg.Unexpected); err != nil {
			return nil, errors.Wrap(err, "unexpected pattern")
		}
	}

	args := cfg.Command
	if len(args) == 0 {
		args = DefaultCommand
	}
	env := cfg.Env
	if env == nil {
		env = os.Environ()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	killBound := cfg.KillBound
	if killBound <= 0 {
		killBound = timeout
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewClock()
	}
	var echo func(string)
	if cfg.Verbose && cfg.Output != nil {
		echo = func(line string) { fmt.Fprintln(cfg.Output, line) }
	}

	proc, err := supervisor.Spawn(ctx, &supervisor.Cmd{
		Args: args,
		Env:  withBootArgs(env, cfg.BootArgs),
		Dir:  cfg.Dir,
		PTY:  cfg.PTY,
		Echo: echo,
	})
	if err != nil {
		return nil, err
	}
	defer proc.Eliminate(ctx, killBound)

	tm := clk.NewTimer(timeout)
	defer tm.Stop()

	lines := proc.Lines()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				logging.Info(ctx, "Expected pattern not found")
				return &Verdict{Kind: FailedExpectedNotFound}, nil
			}
			if cfg.Transcript != nil {
				fmt.Fprintln(cfg.Transcript, line)
			}
			if echo != nil {
				echo(line)
			}

			if unexpected != nil && unexpected.Apply(line).Matched {
				logging.Infof(ctx, "Unexpected pattern %q found in line %q", cfg.Unexpected, line)
				return &Verdict{Kind: FailedUnexpected, Trigger: cfg.Unexpected.String(), Line: line}, nil
			}
			out := expected.Apply(line)
			if cfg.Verbose && len(out.Captures) > 0 {
				logging.Infof(ctx, "Picked strings %q", out.Captures)
			}
			if out.Matched {
				logging.Debug(ctx, "Expected pattern found")
				return &Verdict{Kind: Passed}, nil
			}
		case <-tm.C():
			logging.Infof(ctx, "Timed out after %v", timeout)
			return &Verdict{Kind: FailedTimeout}, nil
		case <-ctx.Done():
			logging.Infof(ctx, "Session canceled: %v", ctx.Err())
			return &Verdict{Kind: FailedTimeout}, nil
		}
	}
}

// withBootArgs returns env with bootArgs appended to BOOTARGS, separated by
// a space from any existing value.
func withBootArgs(env []string, bootArgs string) []string {
	if bootArgs == "" {
		return env
	}
	const prefix = BootArgsEnv + "="
	out := make([]string, 0, len(env)+1)
	val := bootArgs
	for _, kv := range env {
		if v, ok := strings.CutPrefix(kv, prefix); ok {
			// The last assignment wins, as in exec.Cmd.
			val = v + " " + bootArgs
			continue
		}
		out = append(out, kv)
	}
	return append(out, prefix+val)
}
