// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package suite runs every test against every target under bounded
// concurrency and aggregates the verdicts.
package suite

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Jrinx/ktest/internal/errors"
	"github.com/Jrinx/ktest/internal/judge"
	"github.com/Jrinx/ktest/internal/logging"
	"github.com/Jrinx/ktest/internal/reporting"
	"github.com/Jrinx/ktest/internal/timing"
)

// TargetEnv is the environment variable selecting the board a session runs on.
const TargetEnv = "BOARD"

// Test is a runnable test.
type Test struct {
	// ID identifies the test, e.g. "jrinx::test::mm".
	ID string
	// Judge is the session configuration shared by all targets.
	Judge *judge.Config
}

// Pair is one cell of the test matrix.
type Pair struct {
	Test   string
	Target string
}

func (p Pair) String() string {
	return reporting.Slug(p.Test, p.Target)
}

// Config describes a suite run.
type Config struct {
	Tests []Test
	// Targets are the boards every test runs on. If empty, each test runs
	// once with an empty target.
	Targets []string
	// Concurrency is the maximum number of sessions run at once. Values
	// below 1 mean 1.
	Concurrency int
	// FailFast stops starting new sessions after the first failure.
	FailFast bool
}

// Judger runs one session of test on target.
type Judger interface {
	Judge(ctx context.Context, test Test, target string) (*judge.Verdict, error)
}

// JudgerFunc adapts a function to Judger.
type JudgerFunc func(ctx context.Context, test Test, target string) (*judge.Verdict, error)

// Judge calls f.
func (f JudgerFunc) Judge(ctx context.Context, test Test, target string) (*judge.Verdict, error) {
	return f(ctx, test, target)
}

// DefaultJudger runs judge.Run with the test's config, setting BOARD to the
// target when one is given.
var DefaultJudger = JudgerFunc(func(ctx context.Context, test Test, target string) (*judge.Verdict, error) {
	if test.Judge == nil {
		return nil, errors.Wrapf(judge.ErrMissingExpected, "test %s has no config", test.ID)
	}
	cfg := *test.Judge
	if target != "" {
		env := cfg.Env
		if env == nil {
			env = os.Environ()
		}
		cfg.Env = append(append([]string(nil), env...), TargetEnv+"="+target)
	}
	return judge.Run(ctx, &cfg)
})

// PairResult is the outcome of one pair.
type PairResult struct {
	Pair
	// Verdict is nil if the session could not run or was skipped.
	Verdict *judge.Verdict
	// Err is set if the session could not run.
	Err error
	// Skipped is true if the session never started.
	Skipped  bool
	Start    time.Time
	Duration time.Duration
}

// Passed reports whether the pair ran and passed.
func (r *PairResult) Passed() bool {
	return r.Err == nil && r.Verdict != nil && r.Verdict.Passed()
}

// Result aggregates a suite run.
type Result struct {
	// Pairs holds every pair in test-major order.
	Pairs []PairResult
	// Failed lists pairs that ran and did not pass.
	Failed []Pair
	// Skipped lists pairs that never started.
	Skipped []Pair
}

// OK reports whether every pair ran and passed.
func (r *Result) OK() bool {
	return len(r.Failed) == 0 && len(r.Skipped) == 0
}

// Pairs returns the test × target product in test-major order.
func Pairs(tests []Test, targets []string) []Pair {
	if len(targets) == 0 {
		targets = []string{""}
	}
	pairs := make([]Pair, 0, len(tests)*len(targets))
	for _, t := range tests {
		for _, tgt := range targets {
			pairs = append(pairs, Pair{t.ID, tgt})
		}
	}
	return pairs
}

// Run runs all pairs of cfg with j, reporting transitions to sink. A failing
// session never affects sessions already running. The returned error is
// non-nil only if ctx was canceled before every pair started; the partial
// result is returned along with it.
func Run(ctx context.Context, cfg *Config, j Judger, sink reporting.Sink) (*Result, error) {
	ctx, st := timing.Start(ctx, "run")
	defer st.End()

	sink = reporting.Serialize(sink)
	tests := make(map[string]Test, len(cfg.Tests))
	for _, t := range cfg.Tests {
		tests[t.ID] = t
	}
	pairs := Pairs(cfg.Tests, cfg.Targets)
	results := make([]PairResult, len(pairs))
	for i, p := range pairs {
		results[i] = PairResult{Pair: p, Skipped: true}
		sink.Report(reporting.Event{Test: p.Test, Target: p.Target, State: reporting.Waiting})
	}

	limit := cfg.Concurrency
	if limit < 1 {
		limit = 1
	}
	logging.Infof(ctx, "Running %d session(s), %d at a time", len(pairs), limit)

	var failed atomic.Bool
	stopped := func() bool {
		return ctx.Err() != nil || (cfg.FailFast && failed.Load())
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, p := range pairs {
		if stopped() {
			break
		}
		i, p := i, p
		g.Go(func() error {
			// Go may have blocked while the limit was reached.
			if stopped() {
				return nil
			}
			results[i] = runOne(ctx, tests[p.Test], p, j, sink)
			if !results[i].Passed() {
				failed.Store(true)
			}
			return nil
		})
	}
	g.Wait()

	res := &Result{Pairs: results}
	for _, r := range results {
		switch {
		case r.Skipped:
			res.Skipped = append(res.Skipped, r.Pair)
		case !r.Passed():
			res.Failed = append(res.Failed, r.Pair)
		}
	}
	if len(res.Skipped) > 0 && ctx.Err() != nil {
		return res, errors.Wrapf(ctx.Err(), "%d session(s) not run", len(res.Skipped))
	}
	return res, nil
}

func runOne(ctx context.Context, test Test, p Pair, j Judger, sink reporting.Sink) PairResult {
	ctx, st := timing.Start(ctx, p.String())
	defer st.End()
	ctx = logging.SetLogPrefix(ctx, "["+p.String()+"] ")

	sink.Report(reporting.Event{Test: p.Test, Target: p.Target, State: reporting.Running})
	r := PairResult{Pair: p, Start: time.Now()}
	r.Verdict, r.Err = j.Judge(ctx, test, p.Target)
	r.Duration = time.Since(r.Start)

	ev := reporting.Event{Test: p.Test, Target: p.Target, State: reporting.Passed, Verdict: r.Verdict, Err: r.Err}
	if !r.Passed() {
		ev.State = reporting.Failed
		if r.Err != nil {
			logging.Warnf(ctx, "Session could not run: %v", r.Err)
		}
	}
	sink.Report(ev)
	return r
}
