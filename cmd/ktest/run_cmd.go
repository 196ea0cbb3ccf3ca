// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/Jrinx/ktest/internal/command"
	"github.com/Jrinx/ktest/internal/errors"
	"github.com/Jrinx/ktest/internal/logging"
	"github.com/Jrinx/ktest/internal/reporting"
	"github.com/Jrinx/ktest/internal/results"
	"github.com/Jrinx/ktest/internal/suite"
	"github.com/Jrinx/ktest/internal/testconf"
	"github.com/Jrinx/ktest/internal/timing"
)

// displayMode selects how session progress is shown.
type displayMode int

const (
	displayPlain displayMode = iota // log lines
	displayTable                    // live table, on terminals only
)

// runCmd implements subcommands.Command to run the test suite.
type runCmd struct {
	sessionFlags
	file         string      // single test file to run; all tests if empty
	concurrency  int         // sessions run at once
	targets      []string    // boards to run on
	allBoards    bool        // run on every board of ARCH
	display      displayMode // progress display
	resDir       string      // results dir; a new dir under target/ktest if empty
	failFast     bool        // stop starting sessions after a failure
	noBuild      bool        // skip the build
	compressLogs bool        // zstd-compress session transcripts
	stdout       io.Writer   // where to draw tables and summaries
	isTerminal   bool        // stdout is a terminal
}

var _ = subcommands.Command(&runCmd{})

func newRunCmd(stdout io.Writer, root string) *runCmd {
	r := &runCmd{sessionFlags: sessionFlags{root: root}, stdout: stdout}
	if f, ok := stdout.(*os.File); ok {
		r.isTerminal = command.IsTerminal(f)
	}
	return r
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run the test suite" }
func (*runCmd) Usage() string {
	return `Usage: run [flag]...

Description:
    Builds the kernel and judges every test under tests/kern on every
    selected board. Exits with 0 if all tests passed, 1 if any failed and 2
    if the tests could not be run.

    Results are written to a new directory under target/ktest unless
    -resultsdir is given.

Flag:
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	r.sessionFlags.SetFlags(f)
	f.StringVar(&r.file, "f", "", "run only this test file")
	f.IntVar(&r.concurrency, "p", 1, "number of sessions run at once (0: one per CPU)")
	f.IntVar(&r.concurrency, "j", 1, "alias of -p")
	f.Var(command.NewListFlag(",", func(v []string) { r.targets = v }, nil), "targets",
		"comma-separated boards to run on (default: $BOARD)")
	f.BoolVar(&r.allBoards, "allboards", false, "run on every board listed for $ARCH")
	df := command.NewEnumFlag(map[string]int{"plain": int(displayPlain), "table": int(displayTable)},
		func(v int) { r.display = displayMode(v) }, "plain")
	f.Var(df, "display", fmt.Sprintf("progress display, one of %s (default %q)", df.QuotedValues(), df.Default()))
	f.StringVar(&r.resDir, "resultsdir", "", "directory for results")
	f.BoolVar(&r.failFast, "failfast", false, "stop starting sessions after the first failure")
	f.BoolVar(&r.noBuild, "nobuild", false, "do not build the kernel first")
	f.BoolVar(&r.compressLogs, "compresslogs", false, "compress session transcripts with zstd")
}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 0 {
		logging.Info(ctx, "Unexpected arguments.\n\n"+r.Usage())
		return subcommands.ExitUsageError
	}
	if r.concurrency == 0 {
		r.concurrency = runtime.NumCPU()
	}
	status, err := r.run(ctx)
	if err != nil {
		return subcommands.ExitStatus(command.WriteError(os.Stderr, err))
	}
	return subcommands.ExitStatus(status)
}

func (r *runCmd) run(ctx context.Context) (int, error) {
	if err := applyDefaultEnv(ctx); err != nil {
		return 0, err
	}

	updateLatest := r.resDir == ""
	if updateLatest {
		r.resDir = filepath.Join(r.root, resultsBaseDir, time.Now().Format("20060102-150405"))
	}
	w, err := results.NewWriter(r.resDir, r.compressLogs)
	if err != nil {
		return 0, err
	}
	defer w.Close()

	// Update the "latest" symlink if the default result directory is used.
	if updateLatest {
		link := filepath.Join(filepath.Dir(r.resDir), "latest")
		os.Remove(link)
		if err := os.Symlink(filepath.Base(r.resDir), link); err != nil {
			logging.Info(ctx, "Failed to create results symlink: ", err)
		}
	}

	tl := timing.NewLog()
	ctx = timing.NewContext(ctx, tl)
	ctx, st := timing.Start(ctx, "exec")
	// Write the timing log after the command finishes.
	defer func() {
		st.End()
		if err := w.WriteTiming(tl); err != nil {
			logging.Info(ctx, err)
		}
	}()

	// Log the full output of the command to disk.
	fullLog, err := w.OpenFullLog()
	if err != nil {
		return 0, err
	}
	defer fullLog.Close()
	fileLogger := logging.NewSinkLogger(logging.LevelDebug, true, logging.NewWriterSink(fullLog))

	title := fmt.Sprintf("Run testset on %s (%s) in %s mode",
		os.Getenv(testconf.ArchEnv), os.Getenv(testconf.BoardEnv), os.Getenv(testconf.BuildModeEnv))
	var sink reporting.Sink
	if r.display == displayTable && r.isTerminal {
		// Keep the console to the table while sessions run.
		ctx = logging.AttachLoggerNoPropagation(ctx, fileLogger)
		sink = reporting.NewLiveTable(r.stdout, title, true)
	} else {
		ctx = logging.AttachLogger(ctx, fileLogger)
		logging.Info(ctx, title)
		sink = reporting.NewLogSink(ctx)
	}
	logging.Debug(ctx, "Command line: ", strings.Join(os.Args, " "))
	logging.Infof(ctx, "Writing results to %s (run %s)", w.Dir(), w.RunID())

	if !r.noBuild {
		if err := r.runBuild(ctx); err != nil {
			return 0, err
		}
	}

	tests, err := r.loadTests(ctx)
	if err != nil {
		return 0, err
	}
	targets, err := r.selectTargets()
	if err != nil {
		return 0, err
	}

	res, runErr := suite.Run(ctx, &suite.Config{
		Tests:       tests,
		Targets:     targets,
		Concurrency: r.concurrency,
		FailFast:    r.failFast,
	}, w.Judger(suite.DefaultJudger), reporting.Tee(w.StreamSink(ctx), sink))

	if err := w.WriteResults(ctx, res, runErr == nil); err != nil {
		logging.Warn(ctx, "Failed to write results: ", err)
	}
	if runErr != nil {
		return 0, runErr
	}
	if res.OK() {
		return command.ExitOK, nil
	}
	failed := append(append([]suite.Pair(nil), res.Failed...), res.Skipped...)
	fmt.Fprintf(r.stdout, "Failed in %v\n", failed)
	return command.ExitFailed, nil
}

// loadTests loads the test given by -f, or every discovered test.
func (r *runCmd) loadTests(ctx context.Context) ([]suite.Test, error) {
	ctx, st := timing.Start(ctx, "load")
	defer st.End()

	l := r.loader()
	paths := []string{r.file}
	if r.file == "" {
		var err error
		if paths, err = l.Discover(); err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, errors.Errorf("no tests found in %s", filepath.Join(r.testsDir(), testconf.KernDir))
		}
	}

	base, err := r.judgeConfig(r.stdout)
	if err != nil {
		return nil, err
	}
	// Echoed output of concurrent sessions would interleave.
	if r.concurrency > 1 || r.display == displayTable {
		base.Output = nil
	}
	var tests []suite.Test
	for _, p := range paths {
		t, err := l.Load(p)
		if err != nil {
			return nil, err
		}
		logging.Debugf(ctx, "Loaded %s from %s", t.Name, p)
		tests = append(tests, suite.Test{ID: t.Name, Judge: t.JudgeConfig(base)})
	}
	return tests, nil
}

// selectTargets returns the boards selected by -targets or -allboards. nil
// means the board in the environment.
func (r *runCmd) selectTargets() ([]string, error) {
	if len(r.targets) > 0 {
		return r.targets, nil
	}
	if r.allBoards {
		return testconf.BoardList(r.root, os.Getenv(testconf.ArchEnv))
	}
	return nil, nil
}
