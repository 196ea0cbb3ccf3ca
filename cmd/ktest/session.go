// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"io"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/Jrinx/ktest/internal/build"
	"github.com/Jrinx/ktest/internal/command"
	"github.com/Jrinx/ktest/internal/judge"
	"github.com/Jrinx/ktest/internal/logging"
	"github.com/Jrinx/ktest/internal/testconf"
	"github.com/Jrinx/ktest/shutil"
)

// sessionFlags holds flags shared by subcommands that load and judge tests.
type sessionFlags struct {
	root         string        // kernel source root
	includeDirs  []string      // extra include dirs, searched after tests/include
	command      string        // command line booting the kernel
	buildCommand string        // command line building the kernel
	timeout      time.Duration // per-session deadline
	killBound    time.Duration // grace period between SIGTERM and SIGKILL
	pty          bool          // run sessions on a pseudo-terminal
	verbose      bool          // echo session output
}

func (s *sessionFlags) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.root, "root", s.root, "kernel source root")
	rf := command.RepeatedFlag(func(v string) error {
		s.includeDirs = append(s.includeDirs, v)
		return nil
	})
	f.Var(&rf, "I", "additional include dir (may be repeated)")
	f.StringVar(&s.command, "command", strings.Join(judge.DefaultCommand, " "), "command line booting the kernel")
	f.StringVar(&s.buildCommand, "buildcmd", strings.Join(build.DefaultCommand, " "), "command line building the kernel")
	f.Var(command.NewDurationFlag(time.Second, &s.timeout, judge.DefaultTimeout), "timeout", "session timeout in seconds")
	f.Var(command.NewDurationFlag(time.Second, &s.killBound, 0), "killbound",
		"seconds terminated processes get before they are killed (default: timeout)")
	f.BoolVar(&s.pty, "pty", false, "run sessions on a pseudo-terminal")
	f.BoolVar(&s.verbose, "v", false, "echo session output and captured strings")
}

func (s *sessionFlags) testsDir() string {
	return filepath.Join(s.root, testsDirName)
}

func (s *sessionFlags) loader() *testconf.Loader {
	return &testconf.Loader{TestsDir: s.testsDir(), IncludeDirs: s.includeDirs}
}

// judgeConfig returns the session config shared by all tests. out receives
// echoed output in verbose mode.
func (s *sessionFlags) judgeConfig(out io.Writer) (*judge.Config, error) {
	args, err := shutil.Split(s.command)
	if err != nil {
		return nil, err
	}
	return &judge.Config{
		Command:   args,
		Dir:       s.root,
		PTY:       s.pty,
		Timeout:   s.timeout,
		KillBound: s.killBound,
		Verbose:   s.verbose,
		Output:    out,
	}, nil
}

// runBuild builds the kernel.
func (s *sessionFlags) runBuild(ctx context.Context) error {
	args, err := shutil.Split(s.buildCommand)
	if err != nil {
		return err
	}
	return build.Build(ctx, &build.Config{Command: args, Dir: s.root, Verbose: s.verbose})
}

// applyDefaultEnv sets unset build variables to their defaults.
func applyDefaultEnv(ctx context.Context) error {
	now := time.Now()
	set, err := testconf.ApplyDefaultEnv(testconf.DefaultEnv(now, rand.New(rand.NewSource(now.UnixNano()))))
	if err != nil {
		return err
	}
	if len(set) > 0 {
		logging.Debugf(ctx, "Using default values for %s", strings.Join(set, ", "))
	}
	return nil
}
