// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package main implements the ktest executable, used to build the kernel and
// judge its tests.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/Jrinx/ktest/internal/command"
	"github.com/Jrinx/ktest/internal/logging"
)

// Version is the version info of this command. It is filled in at link time.
var Version = "<unknown>"

// newLogger creates the console logger based on the supplied command-line flags.
func newLogger(verbose, logTime bool) (*logging.ZapLogger, error) {
	level := logging.LevelInfo
	if verbose {
		level = logging.LevelDebug
	}
	return logging.NewZapLogger(logging.ZapConfig{
		Level: level,
		Color: command.IsTerminal(os.Stdout),
		Time:  logTime,
		Out:   os.Stdout,
	})
}

// doMain implements the main body of the program. It's a separate function so
// that its deferred functions will run before os.Exit makes the program exit
// immediately.
func doMain() int {
	root := rootDir()
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(newJudgeCmd(os.Stdout, root), "")
	subcommands.Register(newRunCmd(os.Stdout, root), "")
	subcommands.Register(newExpandCmd(os.Stdout, root), "")
	subcommands.Register(newListCmd(os.Stdout, root), "")

	version := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "use verbose logging")
	logTime := flag.Bool("logtime", false, "include date/time headers in logs")
	flag.Parse()

	if *version {
		fmt.Printf("ktest version %s\n", Version)
		return command.ExitOK
	}

	lg, err := newLogger(*verbose, *logTime)
	if err != nil {
		return command.WriteError(os.Stderr, err)
	}
	defer lg.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logging.AttachLogger(ctx, lg)

	stop := command.InstallSignalHandler(os.Stderr, func(os.Signal) { cancel() })
	defer stop()

	return int(subcommands.Execute(ctx))
}

func main() {
	os.Exit(doMain())
}
