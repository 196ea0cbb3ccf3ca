// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/google/subcommands"

	"github.com/Jrinx/ktest/internal/command"
	"github.com/Jrinx/ktest/internal/judge"
	"github.com/Jrinx/ktest/internal/logging"
)

// judgeCmd implements subcommands.Command to judge a single test.
type judgeCmd struct {
	sessionFlags
	file   string    // test file to judge
	build  bool      // build the kernel first
	stdout io.Writer // where to echo session output
}

var _ = subcommands.Command(&judgeCmd{})

func newJudgeCmd(stdout io.Writer, root string) *judgeCmd {
	return &judgeCmd{sessionFlags: sessionFlags{root: root}, stdout: stdout}
}

func (*judgeCmd) Name() string     { return "judge" }
func (*judgeCmd) Synopsis() string { return "judge a single test" }
func (*judgeCmd) Usage() string {
	return `Usage: judge [flag]... -f <file>

Description:
    Boots the kernel with the test in <file> selected and judges its output.
    Exits with 0 if the test passed, 1 if it failed and 2 if it could not be
    run.

Flag:
`
}

func (j *judgeCmd) SetFlags(f *flag.FlagSet) {
	j.sessionFlags.SetFlags(f)
	f.StringVar(&j.file, "f", "", "test file to judge")
	f.BoolVar(&j.build, "build", false, "build the kernel before judging")
}

func (j *judgeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if j.file == "" || f.NArg() > 0 {
		logging.Info(ctx, "Missing test file.\n\n"+j.Usage())
		return subcommands.ExitUsageError
	}
	v, err := j.judge(ctx)
	if err != nil {
		logging.Warnf(ctx, "Failed to judge %s: %v", j.file, err)
		return subcommands.ExitStatus(command.ExitError)
	}
	if v.Passed() {
		logging.Info(ctx, "Passed ", j.file)
	} else {
		fmt.Fprintf(j.stdout, "Failed: %v\n", v)
	}
	return subcommands.ExitStatus(v.ExitCode())
}

func (j *judgeCmd) judge(ctx context.Context) (*judge.Verdict, error) {
	if err := applyDefaultEnv(ctx); err != nil {
		return nil, err
	}
	test, err := j.loader().Load(j.file)
	if err != nil {
		return nil, err
	}
	base, err := j.judgeConfig(j.stdout)
	if err != nil {
		return nil, err
	}
	if j.build {
		if err := j.runBuild(ctx); err != nil {
			return nil, err
		}
	}
	logging.Infof(ctx, "Judging %s", test.Name)
	return judge.Run(ctx, test.JudgeConfig(base))
}
