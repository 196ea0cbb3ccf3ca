// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package command

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/exp/slices"
	"golang.org/x/sys/unix"
)

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestInstallSignalHandler(t *testing.T) {
	exited := make(chan int, 1)
	exit = func(code int) { exited <- code }
	defer func() { exit = os.Exit }()

	var out syncBuffer
	sigs := make(chan os.Signal, 2)
	stop := InstallSignalHandler(&out, func(sig os.Signal) { sigs <- sig })
	defer stop()

	if err := unix.Kill(os.Getpid(), unix.SIGINT); err != nil {
		t.Fatal("Kill failed: ", err)
	}
	select {
	case sig := <-sigs:
		if sig != unix.SIGINT {
			t.Errorf("Callback got %v; want %v", sig, unix.SIGINT)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Callback not called")
	}
	select {
	case code := <-exited:
		t.Fatalf("Exited with %d after the first signal", code)
	default:
	}

	if err := unix.Kill(os.Getpid(), unix.SIGTERM); err != nil {
		t.Fatal("Kill failed: ", err)
	}
	select {
	case code := <-exited:
		if code != 1 {
			t.Errorf("Exit status = %d; want 1", code)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Did not exit after the second signal")
	}
	if len(sigs) != 0 {
		t.Errorf("Callback called again with %v", <-sigs)
	}
	if s := out.String(); !strings.Contains(s, "stopping") || !strings.Contains(s, "exiting") {
		t.Errorf("Handler wrote %q; want stopping and exiting messages", s)
	}
}

// running reports whether pid exists and is not a zombie.
func running(pid int) bool {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	st, err := proc.Status()
	return err == nil && !slices.Contains(st, process.Zombie)
}

func TestTerminateChildren(t *testing.T) {
	// The shell leads its own session, like judged kernels do, and leaves a
	// grandchild behind in it.
	cmd := exec.Command("/bin/sh", "-c", "sleep 60 & echo $!; wait")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatal("Start failed: ", err)
	}
	defer unix.Kill(-cmd.Process.Pid, unix.SIGKILL)

	var grandchild int
	if _, err := fmt.Fscan(stdout, &grandchild); err != nil {
		t.Fatal("Failed to read grandchild pid: ", err)
	}

	var out bytes.Buffer
	terminateChildren(&out)
	if err := cmd.Wait(); err == nil {
		t.Error("Shell exited normally; want it terminated")
	}
	deadline := time.Now().Add(10 * time.Second)
	for running(grandchild) {
		if time.Now().After(deadline) {
			t.Fatalf("Grandchild %d still running", grandchild)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if out.Len() > 0 {
		t.Errorf("terminateChildren wrote %q; want nothing", out.String())
	}
}

func TestIsTerminal(t *testing.T) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skip("No pseudo-terminal available: ", err)
	}
	defer ptmx.Close()
	defer tty.Close()

	if !IsTerminal(tty) {
		t.Errorf("IsTerminal(%s) = false; want true", tty.Name())
	}
	st := SaveTerminal(tty)
	if err := st.Restore(); err != nil {
		t.Error("Restore failed: ", err)
	}

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()
	if IsTerminal(r) {
		t.Error("IsTerminal(pipe) = true; want false")
	}
	if err := SaveTerminal(r).Restore(); err != nil {
		t.Error("Restore of a non-terminal failed: ", err)
	}
}
