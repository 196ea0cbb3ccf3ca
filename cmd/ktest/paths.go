// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
)

const (
	// testsDirName is the directory under the source root holding tests.
	testsDirName = "tests"
	// resultsBaseDir is where results directories are created by default,
	// relative to the source root.
	resultsBaseDir = "target/ktest"
)

// rootDir returns the kernel source root: the closest ancestor of the
// working directory containing a tests directory. If there is none, the
// working directory is used.
func rootDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	for dir := wd; ; {
		if fi, err := os.Stat(filepath.Join(dir, testsDirName)); err == nil && fi.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return wd
		}
		dir = parent
	}
}
