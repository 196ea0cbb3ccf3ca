// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package results

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/Jrinx/ktest/internal/errors"
	"github.com/Jrinx/ktest/internal/judge"
	"github.com/Jrinx/ktest/internal/logging"
	"github.com/Jrinx/ktest/internal/logging/loggingtest"
	"github.com/Jrinx/ktest/internal/pattern"
	"github.com/Jrinx/ktest/internal/reporting"
	"github.com/Jrinx/ktest/internal/suite"
	"github.com/Jrinx/ktest/internal/timing"
	"github.com/Jrinx/ktest/testutil"
)

func newWriter(t *testing.T, compress bool) *Writer {
	t.Helper()
	w, err := NewWriter(filepath.Join(testutil.TempDir(t), "results"), compress)
	if err != nil {
		t.Fatal("NewWriter failed: ", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func TestTranscript(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			w := newWriter(t, compress)
			tr, err := w.CreateTranscript("jrinx::test::mm", "virt")
			if err != nil {
				t.Fatal("CreateTranscript failed: ", err)
			}
			fmt.Fprintln(tr, "booting")
			fmt.Fprintln(tr, "BOOT_OK")
			if err := tr.Close(); err != nil {
				t.Fatal("Close failed: ", err)
			}

			want := "jrinx.test.mm/virt.log"
			if compress {
				want += ".zst"
			}
			if got := w.TranscriptPath("jrinx::test::mm", "virt"); got != want {
				t.Errorf("TranscriptPath() = %q; want %q", got, want)
			}
			lines, err := ReadTranscript(w.Dir(), want)
			if err != nil {
				t.Fatal("ReadTranscript failed: ", err)
			}
			if diff := cmp.Diff(lines, []string{"booting", "BOOT_OK"}); diff != "" {
				t.Errorf("Transcript mismatch (-got +want):\n%s", diff)
			}
		})
	}
}

func TestTranscriptPathNoTarget(t *testing.T) {
	w := newWriter(t, false)
	if got, want := w.TranscriptPath("boot", ""), "boot/default.log"; got != want {
		t.Errorf("TranscriptPath() = %q; want %q", got, want)
	}
}

func TestJudger(t *testing.T) {
	w := newWriter(t, true)
	test := suite.Test{
		ID: "jrinx::test::boot",
		Judge: &judge.Config{
			Expected: pattern.Literal("BOOT_OK"),
			Command:  []string{"/bin/sh", "-c", `echo "board $BOARD"; echo BOOT_OK; echo after`},
			Timeout:  time.Minute,
		},
	}
	v, err := w.Judger(suite.DefaultJudger).Judge(context.Background(), test, "virt")
	if err != nil {
		t.Fatal("Judge failed: ", err)
	}
	if !v.Passed() {
		t.Errorf("Judge() = %v; want passed", v)
	}
	if test.Judge.Transcript != nil {
		t.Error("Test config was modified")
	}

	lines, err := ReadTranscript(w.Dir(), w.TranscriptPath(test.ID, "virt"))
	if err != nil {
		t.Fatal("ReadTranscript failed: ", err)
	}
	if diff := cmp.Diff(lines, []string{"board virt", "BOOT_OK"}); diff != "" {
		t.Errorf("Transcript mismatch (-got +want):\n%s", diff)
	}
}

func TestWriteResults(t *testing.T) {
	w := newWriter(t, false)
	logger := loggingtest.NewLogger(t, logging.LevelInfo)
	ctx := logging.AttachLogger(context.Background(), logger)

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	res := &suite.Result{
		Pairs: []suite.PairResult{
			{Pair: suite.Pair{Test: "a", Target: "virt"}, Verdict: &judge.Verdict{Kind: judge.Passed}, Start: start, Duration: time.Second},
			{Pair: suite.Pair{Test: "b", Target: "virt"}, Verdict: &judge.Verdict{Kind: judge.FailedUnexpected, Trigger: "PANIC", Line: "PANIC!"}, Start: start, Duration: 2 * time.Second},
			{Pair: suite.Pair{Test: "c", Target: "virt"}, Err: errors.New("spawn failed"), Start: start},
			{Pair: suite.Pair{Test: "d", Target: "virt"}, Skipped: true},
		},
	}
	if err := w.WriteResults(ctx, res, false); err != nil {
		t.Fatal("WriteResults failed: ", err)
	}

	got, err := ReadResults(w.Dir())
	if err != nil {
		t.Fatal("ReadResults failed: ", err)
	}
	if _, err := uuid.Parse(got.RunID); err != nil || got.RunID != w.RunID() {
		t.Errorf("RunID = %q; want %q", got.RunID, w.RunID())
	}
	want := &Results{
		RunID:    w.RunID(),
		Complete: false,
		Pairs: []Pair{
			{Test: "a", Target: "virt", Status: StatusPassed, Verdict: "passed", Start: start, Duration: time.Second, Transcript: "a/virt.log"},
			{Test: "b", Target: "virt", Status: StatusFailed, Verdict: "unexpected pattern found", Trigger: "PANIC", Line: "PANIC!", Start: start, Duration: 2 * time.Second, Transcript: "b/virt.log"},
			{Test: "c", Target: "virt", Status: StatusFailed, Error: "spawn failed", Start: start, Transcript: "c/virt.log"},
			{Test: "d", Target: "virt", Status: StatusSkipped},
		},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Results mismatch (-got +want):\n%s", diff)
	}

	logs := logger.String()
	for _, s := range []string{
		"a@virt  [ PASS ]",
		"b@virt  [ FAIL ] unexpected pattern found",
		"c@virt  [ FAIL ] spawn failed",
		"d@virt  [ SKIP ]",
		"results are incomplete",
	} {
		if !strings.Contains(logs, s) {
			t.Errorf("Summary does not contain %q:\n%s", s, logs)
		}
	}
}

func TestStreamSink(t *testing.T) {
	w := newWriter(t, false)
	logger := loggingtest.NewLogger(t, logging.LevelInfo)
	sink := w.StreamSink(logging.AttachLogger(context.Background(), logger))

	sink.Report(reporting.Event{Test: "a", State: reporting.Waiting})
	sink.Report(reporting.Event{Test: "a", State: reporting.Running})
	sink.Report(reporting.Event{Test: "a", State: reporting.Passed, Verdict: &judge.Verdict{Kind: judge.Passed}})
	sink.Report(reporting.Event{Test: "b", Target: "virt", State: reporting.Failed, Verdict: &judge.Verdict{Kind: judge.FailedTimeout}})
	if err := w.Close(); err != nil {
		t.Fatal("Close failed: ", err)
	}

	b, err := os.ReadFile(filepath.Join(w.Dir(), StreamedResultsFilename))
	if err != nil {
		t.Fatal(err)
	}
	const zero = `"start":"0001-01-01T00:00:00Z","duration":0`
	want := `{"test":"a","status":"passed","verdict":"passed",` + zero + "}\n" +
		`{"test":"b","target":"virt","status":"failed","verdict":"timeout",` + zero + "}\n"
	if diff := cmp.Diff(string(b), want); diff != "" {
		t.Errorf("Streamed results mismatch (-got +want):\n%s", diff)
	}
	if logs := logger.Logs(); len(logs) != 0 {
		t.Errorf("StreamSink logged %q; want nothing", logs)
	}
}

func TestStreamSinkWriteFailure(t *testing.T) {
	w := newWriter(t, false)
	logger := loggingtest.NewLogger(t, logging.LevelInfo)
	sink := w.StreamSink(logging.AttachLogger(context.Background(), logger))

	// Results can no longer be written once the writer is closed.
	if err := w.Close(); err != nil {
		t.Fatal("Close failed: ", err)
	}
	sink.Report(reporting.Event{Test: "a", Target: "virt", State: reporting.Failed, Verdict: &judge.Verdict{Kind: judge.FailedTimeout}})

	if logs := logger.String(); !strings.Contains(logs, "Failed to stream result of a@virt") {
		t.Errorf("StreamSink logged %q; want a warning for a@virt", logs)
	}
}

func TestFullLogAndTiming(t *testing.T) {
	w := newWriter(t, false)

	f, err := w.OpenFullLog()
	if err != nil {
		t.Fatal("OpenFullLog failed: ", err)
	}
	fmt.Fprintln(f, "hello")
	f.Close()

	l := timing.NewLog()
	l.StartTop("build").End()
	if err := w.WriteTiming(l); err != nil {
		t.Fatal("WriteTiming failed: ", err)
	}

	files, err := testutil.ReadFiles(w.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := files[FullLogFilename], "Run ID "+w.RunID()+"\nhello\n"; got != want {
		t.Errorf("%s = %q; want %q", FullLogFilename, got, want)
	}
	if !strings.Contains(files[TimingFilename], `"build"`) {
		t.Errorf("%s = %q; want build stage", TimingFilename, files[TimingFilename])
	}
}
