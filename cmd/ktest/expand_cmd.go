// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"
	"gopkg.in/yaml.v2"

	"github.com/Jrinx/ktest/internal/command"
	"github.com/Jrinx/ktest/internal/logging"
	"github.com/Jrinx/ktest/internal/testconf"
)

// expandCmd implements subcommands.Command to print a test file with
// includes and variables resolved.
type expandCmd struct {
	root        string
	file        string
	includeDirs []string
	stdout      io.Writer
}

var _ = subcommands.Command(&expandCmd{})

func newExpandCmd(stdout io.Writer, root string) *expandCmd {
	return &expandCmd{root: root, stdout: stdout}
}

func (*expandCmd) Name() string     { return "expand" }
func (*expandCmd) Synopsis() string { return "print a test file with includes and variables resolved" }
func (*expandCmd) Usage() string {
	return `Usage: expand [flag]... -f <file>

Description:
    Prints <file> as YAML after merging included files and expanding
    variables. TEST_NAME is set to the base name of <file> without its
    extension.

Flag:
`
}

func (e *expandCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&e.root, "root", e.root, "kernel source root")
	f.StringVar(&e.file, "f", "", "test file to expand")
	rf := command.RepeatedFlag(func(v string) error {
		e.includeDirs = append(e.includeDirs, v)
		return nil
	})
	f.Var(&rf, "I", "additional include dir (may be repeated)")
}

func (e *expandCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if e.file == "" || f.NArg() > 0 {
		logging.Info(ctx, "Missing test file.\n\n"+e.Usage())
		return subcommands.ExitUsageError
	}
	if err := e.expand(ctx); err != nil {
		return subcommands.ExitStatus(command.WriteError(os.Stderr, err))
	}
	return subcommands.ExitSuccess
}

func (e *expandCmd) expand(ctx context.Context) error {
	if err := applyDefaultEnv(ctx); err != nil {
		return err
	}
	conf, err := testconf.ReadFile(e.file)
	if err != nil {
		return err
	}
	l := &testconf.Loader{TestsDir: filepath.Join(e.root, testsDirName), IncludeDirs: e.includeDirs}
	base := filepath.Base(e.file)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	conf, err = l.Expander(map[string]string{testconf.TestNameVar: name}).Expand(conf)
	if err != nil {
		return err
	}
	b, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}
	_, err = e.stdout.Write(b)
	return err
}
