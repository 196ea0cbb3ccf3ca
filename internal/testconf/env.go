// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testconf

import (
	"bufio"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/Jrinx/ktest/internal/errors"
)

// Build environment variables read by the kernel build and boot scripts.
const (
	ArchEnv      = "ARCH"
	BoardEnv     = "BOARD"
	BuildModeEnv = "BUILD_MODE"
)

const buildTimeLayout = "2006-01-02 15:04:05"

// DefaultEnv returns the defaults of the build environment. rnd picks the
// random seed handed to the kernel.
func DefaultEnv(now time.Time, rnd *rand.Rand) map[string]string {
	return map[string]string{
		ArchEnv:      "riscv64",
		BoardEnv:     "virt",
		BuildModeEnv: "release",
		"BUILD_TIME": now.Format(buildTimeLayout),
		"RAND_SEED":  strconv.Itoa(rnd.Intn(32768)),
		"SMP":        "5",
		"MEMORY":     "1G",
	}
}

// ApplyDefaultEnv sets every variable of defaults that is not already set
// in the process environment. It returns the names it set, sorted.
func ApplyDefaultEnv(defaults map[string]string) ([]string, error) {
	keys := maps.Keys(defaults)
	slices.Sort(keys)
	var set []string
	for _, k := range keys {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		if err := os.Setenv(k, defaults[k]); err != nil {
			return set, errors.Wrapf(err, "failed to set %s", k)
		}
		set = append(set, k)
	}
	return set, nil
}

// BoardList returns the boards supported for arch, read from
// <root>/kern/tgt/<arch>.board-list. If no list exists for arch, trailing
// characters are dropped until one is found, so "riscv64" may use
// "riscv.board-list".
func BoardList(root, arch string) ([]string, error) {
	dir := filepath.Join(root, "kern", "tgt")
	for a := arch; a != ""; a = a[:len(a)-1] {
		f, err := os.Open(filepath.Join(dir, a+".board-list"))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open board list for %s", arch)
		}
		defer f.Close()

		var boards []string
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if b := strings.TrimSpace(sc.Text()); b != "" {
				boards = append(boards, b)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", f.Name())
		}
		return boards, nil
	}
	return nil, errors.Errorf("no board list for %q in %s", arch, dir)
}
