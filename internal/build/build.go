// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package build builds the kernel under test before judging it.
package build

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Jrinx/ktest/internal/errors"
	"github.com/Jrinx/ktest/internal/logging"
	"github.com/Jrinx/ktest/internal/supervisor"
	"github.com/Jrinx/ktest/internal/timing"
	"github.com/Jrinx/ktest/shutil"
)

// DefaultCommand is the default build command.
var DefaultCommand = []string{"cargo", "make"}

// killBound is how long an interrupted build is given to exit after SIGTERM.
const killBound = 10 * time.Second

// Config describes a build.
type Config struct {
	// Command is the build command line. Defaults to DefaultCommand.
	Command []string
	// Env is the environment of the build. Defaults to os.Environ().
	Env []string
	// Dir is the working directory of the build.
	Dir string
	// Verbose logs build output as it arrives. Otherwise output is only
	// logged if the build fails.
	Verbose bool
}

// Build runs the build command and waits for it to finish. VERBOSE is set
// to "true" or "false" in the build's environment following cfg.Verbose.
func Build(ctx context.Context, cfg *Config) error {
	ctx, st := timing.Start(ctx, "build")
	defer st.End()

	args := cfg.Command
	if len(args) == 0 {
		args = DefaultCommand
	}
	env := cfg.Env
	if env == nil {
		env = os.Environ()
	}
	verbose := "VERBOSE=false"
	if cfg.Verbose {
		verbose = "VERBOSE=true"
	}
	env = append(append([]string(nil), env...), verbose)

	logging.Infof(ctx, "Running %s", shutil.EscapeSlice(args))
	proc, err := supervisor.Spawn(ctx, &supervisor.Cmd{Args: args, Env: env, Dir: cfg.Dir})
	if err != nil {
		return err
	}
	defer proc.Eliminate(ctx, killBound)

	var out []string
	for {
		line, err := proc.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "build %s interrupted", shutil.EscapeSlice(args))
		}
		if cfg.Verbose {
			logging.Info(ctx, line)
		} else {
			out = append(out, line)
		}
	}

	select {
	case <-proc.Exited():
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "build %s interrupted", shutil.EscapeSlice(args))
	}
	if code := proc.ExitCode(); code != 0 {
		writeMultiline(ctx, out)
		return errors.Errorf("build %s failed with status %d", shutil.EscapeSlice(args), code)
	}
	return nil
}

// writeMultiline writes lines to the log.
func writeMultiline(ctx context.Context, lines []string) {
	if len(lines) == 0 {
		return
	}
	logging.Info(ctx, strings.Join(lines, "\n"))
}
