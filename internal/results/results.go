// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package results writes the results directory of a suite run.
//
// A results directory contains:
//
//	results.json            run ID and the result of every pair
//	streamed_results.jsonl  pair results appended as sessions finish
//	full.txt                the complete run log
//	timing.json             stage timings
//	<test>/<target>.log     output read from each session (".log.zst" if compressed)
package results

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/Jrinx/ktest/internal/errors"
	"github.com/Jrinx/ktest/internal/judge"
	"github.com/Jrinx/ktest/internal/logging"
	"github.com/Jrinx/ktest/internal/reporting"
	"github.com/Jrinx/ktest/internal/suite"
	"github.com/Jrinx/ktest/internal/timing"
)

const (
	// These paths are relative to the results directory.
	ResultsFilename         = "results.json"           // file containing the Results object
	StreamedResultsFilename = "streamed_results.jsonl" // file containing newline-separated Pair objects
	FullLogFilename         = "full.txt"               // file containing the complete run log
	TimingFilename          = "timing.json"            // file containing stage timings

	transcriptExt = ".log"
	zstdExt       = ".zst"
	noTarget      = "default" // transcript name of pairs without a target
)

// Status values of Pair.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Pair is the result of a single (test, target) pair.
// Fields are exported so they can be marshaled by the json package.
type Pair struct {
	Test   string `json:"test"`
	Target string `json:"target,omitempty"`
	// Status is one of "passed", "failed" or "skipped".
	Status string `json:"status"`
	// Verdict describes the verdict of a session that ran.
	Verdict string `json:"verdict,omitempty"`
	// Trigger and Line are set for sessions failed by the unexpected pattern.
	Trigger string `json:"trigger,omitempty"`
	Line    string `json:"line,omitempty"`
	// Error is set for sessions that could not run.
	Error    string        `json:"error,omitempty"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	// Transcript is the session output file, relative to the results directory.
	Transcript string `json:"transcript,omitempty"`
}

// Results is the contents of results.json.
type Results struct {
	RunID string `json:"runId"`
	// Complete is false if the run was interrupted.
	Complete bool   `json:"complete"`
	Pairs    []Pair `json:"pairs"`
}

// Writer writes a results directory. Its methods are safe for concurrent use.
type Writer struct {
	dir      string
	runID    string
	compress bool

	mu       sync.Mutex
	streamed *os.File
}

// NewWriter creates dir if needed and returns a Writer for it. If compress
// is true, session transcripts are zstd-compressed.
func NewWriter(dir string, compress bool) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create results dir")
	}
	streamed, err := os.Create(filepath.Join(dir, StreamedResultsFilename))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create streamed results")
	}
	return &Writer{
		dir:      dir,
		runID:    uuid.NewString(),
		compress: compress,
		streamed: streamed,
	}, nil
}

// Dir returns the results directory.
func (w *Writer) Dir() string { return w.dir }

// RunID returns the unique ID of this run.
func (w *Writer) RunID() string { return w.runID }

// Close closes files held by w.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.streamed.Close()
}

// OpenFullLog creates full.txt. The caller closes it.
func (w *Writer) OpenFullLog() (*os.File, error) {
	f, err := os.Create(filepath.Join(w.dir, FullLogFilename))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create full log")
	}
	fmt.Fprintf(f, "Run ID %s\n", w.runID)
	return f, nil
}

// TranscriptPath returns the transcript file of a pair, relative to the
// results directory.
func (w *Writer) TranscriptPath(test, target string) string {
	if target == "" {
		target = noTarget
	}
	p := filepath.Join(strings.ReplaceAll(test, "::", "."), target+transcriptExt)
	if w.compress {
		p += zstdExt
	}
	return p
}

// CreateTranscript creates the transcript file of a pair.
func (w *Writer) CreateTranscript(test, target string) (io.WriteCloser, error) {
	p := filepath.Join(w.dir, w.TranscriptPath(test, target))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create transcript dir")
	}
	f, err := os.Create(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create transcript")
	}
	if !w.compress {
		return f, nil
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "failed to start zstd stream")
	}
	return &zstdFile{zw, f}, nil
}

// zstdFile closes the compressed stream before the file underneath it.
type zstdFile struct {
	*zstd.Encoder
	f *os.File
}

func (z *zstdFile) Close() error {
	err := z.Encoder.Close()
	if cerr := z.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Judger returns a suite.Judger recording the output of every session to its
// transcript before passing the test on to next.
func (w *Writer) Judger(next suite.Judger) suite.Judger {
	return suite.JudgerFunc(func(ctx context.Context, test suite.Test, target string) (*judge.Verdict, error) {
		if test.Judge == nil {
			return next.Judge(ctx, test, target)
		}
		tr, err := w.CreateTranscript(test.ID, target)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := tr.Close(); err != nil {
				logging.Warnf(ctx, "Failed to close transcript: %v", err)
			}
		}()

		cfg := *test.Judge
		cfg.Transcript = tr
		test.Judge = &cfg
		return next.Judge(ctx, test, target)
	})
}

// StreamSink returns a sink appending the result of every finished pair to
// streamed_results.jsonl. Other events are ignored. Failures to record a
// result are logged to ctx.
func (w *Writer) StreamSink(ctx context.Context) reporting.Sink {
	return reporting.SinkFunc(func(e reporting.Event) {
		if err := w.stream(e); err != nil {
			logging.Warnf(ctx, "Failed to stream result of %s: %v", reporting.Slug(e.Test, e.Target), err)
		}
	})
}

func (w *Writer) stream(e reporting.Event) error {
	if e.State != reporting.Passed && e.State != reporting.Failed {
		return nil
	}
	p := Pair{Test: e.Test, Target: e.Target, Status: StatusFailed}
	if e.State == reporting.Passed {
		p.Status = StatusPassed
	}
	setVerdict(&p, e.Verdict, e.Err)

	b, err := json.Marshal(&p)
	if err != nil {
		return errors.Wrap(err, "failed to marshal result")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.streamed.Write(append(b, '\n')); err != nil {
		return errors.Wrap(err, "failed to write result")
	}
	return nil
}

func setVerdict(p *Pair, v *judge.Verdict, err error) {
	if err != nil {
		p.Error = err.Error()
	}
	if v != nil {
		p.Verdict = v.Kind.String()
		p.Trigger = v.Trigger
		p.Line = v.Line
	}
}

// WriteResults writes results.json for res and logs a summary to ctx.
// complete should be false if the run was interrupted.
func (w *Writer) WriteResults(ctx context.Context, res *suite.Result, complete bool) error {
	out := Results{RunID: w.runID, Complete: complete}
	for _, r := range res.Pairs {
		p := Pair{
			Test:     r.Test,
			Target:   r.Target,
			Start:    r.Start,
			Duration: r.Duration,
		}
		switch {
		case r.Skipped:
			p.Status = StatusSkipped
		case r.Passed():
			p.Status = StatusPassed
		default:
			p.Status = StatusFailed
		}
		if !r.Skipped {
			p.Transcript = w.TranscriptPath(r.Test, r.Target)
		}
		setVerdict(&p, r.Verdict, r.Err)
		out.Pairs = append(out.Pairs, p)
	}

	f, err := os.Create(filepath.Join(w.dir, ResultsFilename))
	if err != nil {
		return errors.Wrap(err, "failed to create results")
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&out); err != nil {
		return errors.Wrap(err, "failed to write results")
	}

	logSummary(ctx, out.Pairs)
	if !complete {
		logging.Info(ctx, "")
		logging.Info(ctx, "Run did not finish successfully; results are incomplete")
	}
	logging.Info(ctx, strings.Repeat("-", 80))
	logging.Info(ctx, "Results saved to ", w.dir)
	return f.Close()
}

func logSummary(ctx context.Context, pairs []Pair) {
	ml := 0
	names := make([]string, len(pairs))
	for i, p := range pairs {
		names[i] = reporting.Slug(p.Test, p.Target)
		if len(names[i]) > ml {
			ml = len(names[i])
		}
	}

	logging.Info(ctx, strings.Repeat("-", 80))
	for i, p := range pairs {
		pn := fmt.Sprintf("%-"+strconv.Itoa(ml)+"s", names[i])
		switch p.Status {
		case StatusPassed:
			logging.Info(ctx, pn+"  [ PASS ]")
		case StatusSkipped:
			logging.Info(ctx, pn+"  [ SKIP ]")
		default:
			reason := p.Verdict
			if p.Error != "" {
				reason = p.Error
			}
			logging.Info(ctx, pn+"  [ FAIL ] "+reason)
		}
	}
}

// WriteTiming writes timing.json.
func (w *Writer) WriteTiming(l *timing.Log) error {
	f, err := os.Create(filepath.Join(w.dir, TimingFilename))
	if err != nil {
		return errors.Wrap(err, "failed to create timing log")
	}
	defer f.Close()
	if err := l.WritePretty(f); err != nil {
		return errors.Wrap(err, "failed to write timing log")
	}
	return f.Close()
}

// ReadResults reads results.json from dir.
func ReadResults(dir string) (*Results, error) {
	b, err := os.ReadFile(filepath.Join(dir, ResultsFilename))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read results")
	}
	var res Results
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, errors.Wrap(err, "failed to parse results")
	}
	return &res, nil
}

// ReadTranscript returns the lines of a transcript written by a Writer,
// decompressing it if needed. path is relative to dir.
func ReadTranscript(dir, path string) ([]string, error) {
	f, err := os.Open(filepath.Join(dir, path))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open transcript")
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, zstdExt) {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "failed to start zstd stream")
		}
		defer zr.Close()
		r = zr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read transcript")
	}
	s := strings.TrimSuffix(string(b), "\n")
	if s == "" {
		return nil, nil
	}
	return strings.Split(s, "\n"), nil
}
