// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/subcommands"

	"github.com/Jrinx/ktest/internal/command"
	"github.com/Jrinx/ktest/internal/suite"
	"github.com/Jrinx/ktest/internal/testconf"
)

// listedTest is printed by list -json.
type listedTest struct {
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Targets []string `json:"targets,omitempty"`
}

// listCmd implements subcommands.Command to list tests.
type listCmd struct {
	root      string
	json      bool // marshal tests to JSON instead of just printing names
	allBoards bool // list every pair with the boards of ARCH
	stdout    io.Writer
}

var _ = subcommands.Command(&listCmd{})

func newListCmd(stdout io.Writer, root string) *listCmd {
	return &listCmd{root: root, stdout: stdout}
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list tests" }
func (*listCmd) Usage() string {
	return `Usage: list [flag]...

Description:
    Lists the names of the tests under tests/kern. With -allboards, every
    test is listed once per board of $ARCH as test@board.

Flag:
`
}

func (lc *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&lc.root, "root", lc.root, "kernel source root")
	f.BoolVar(&lc.json, "json", false, "print test details as JSON")
	f.BoolVar(&lc.allBoards, "allboards", false, "list tests with every board of $ARCH")
}

func (lc *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := lc.list(ctx); err != nil {
		return subcommands.ExitStatus(command.WriteError(os.Stderr, err))
	}
	return subcommands.ExitSuccess
}

func (lc *listCmd) list(ctx context.Context) error {
	if err := applyDefaultEnv(ctx); err != nil {
		return err
	}
	var boards []string
	if lc.allBoards {
		var err error
		if boards, err = testconf.BoardList(lc.root, os.Getenv(testconf.ArchEnv)); err != nil {
			return err
		}
	}

	l := &testconf.Loader{TestsDir: filepath.Join(lc.root, testsDirName)}
	paths, err := l.Discover()
	if err != nil {
		return err
	}
	var tests []listedTest
	var ids []suite.Test
	for _, p := range paths {
		name, err := l.TestName(p)
		if err != nil {
			return err
		}
		tests = append(tests, listedTest{Name: name, Path: p, Targets: boards})
		ids = append(ids, suite.Test{ID: name})
	}

	if lc.json {
		enc := json.NewEncoder(lc.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tests)
	}
	for _, p := range suite.Pairs(ids, boards) {
		if _, err := fmt.Fprintln(lc.stdout, p); err != nil {
			return err
		}
	}
	return nil
}
