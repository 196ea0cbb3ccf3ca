// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package testconf loads kernel test files.
//
// A test file is a YAML mapping with an "expected" pattern, an optional
// "unexpected" pattern and an optional "include" naming another file to
// merge in. Strings may refer to environment variables, plus TEST_NAME.
package testconf

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v2"

	"github.com/Jrinx/ktest/internal/errors"
	"github.com/Jrinx/ktest/internal/judge"
	"github.com/Jrinx/ktest/internal/pattern"
)

const (
	// KernDir is the directory under the tests dir holding kernel tests.
	KernDir = "kern"
	// IncludeDir is the directory under the tests dir searched for includes
	// before any user-supplied ones.
	IncludeDir = "include"
	// TestNameVar is the variable holding the name of the test being loaded.
	TestNameVar = "TEST_NAME"

	namePrefix = "jrinx::test::"
)

// Test is a loaded test file.
type Test struct {
	// Name is the test name passed to the kernel, e.g. "jrinx::test::mm::alloc".
	Name string
	// Path is the file the test was loaded from.
	Path string
	// Conf is the expanded file contents.
	Conf yaml.MapSlice

	Expected   *pattern.Spec
	Unexpected *pattern.Spec
}

// BootArgs returns the kernel arguments selecting the test.
func (t *Test) BootArgs() string {
	return "-t " + t.Name
}

// JudgeConfig returns a copy of base set up to judge t.
func (t *Test) JudgeConfig(base *judge.Config) *judge.Config {
	cfg := *base
	cfg.Expected = t.Expected
	cfg.Unexpected = t.Unexpected
	cfg.BootArgs = t.BootArgs()
	return &cfg
}

// Loader loads test files found under a tests directory.
type Loader struct {
	// TestsDir is the root of the test tree, e.g. "tests".
	TestsDir string
	// IncludeDirs are searched for includes after TestsDir/include.
	IncludeDirs []string
	// Env supplies variables in addition to the process environment.
	Env map[string]string
}

// TestName returns the name of the kernel test at path, which must lie
// under TestsDir/kern. For tests/kern/a/b/c.yml it is jrinx::test::a::b::c.
func (l *Loader) TestName(path string) (string, error) {
	rel, err := filepath.Rel(l.TestsDir, path)
	if err != nil {
		return "", errors.Wrapf(err, "%s is not under %s", path, l.TestsDir)
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 || parts[0] != KernDir {
		return "", errors.Errorf("%s is not a kernel test under %s", path, filepath.Join(l.TestsDir, KernDir))
	}
	parts = parts[1:]
	last := parts[len(parts)-1]
	parts[len(parts)-1] = strings.TrimSuffix(last, filepath.Ext(last))
	return namePrefix + strings.Join(parts, "::"), nil
}

// Expander returns an Expander resolving variables with extra set on top
// of l.Env and the process environment.
func (l *Loader) Expander(extra map[string]string) *Expander {
	vars := make(map[string]string, len(l.Env)+len(extra))
	for k, v := range l.Env {
		vars[k] = v
	}
	for k, v := range extra {
		vars[k] = v
	}
	dirs := append([]string{filepath.Join(l.TestsDir, IncludeDir)}, l.IncludeDirs...)
	return &Expander{Env: Environ(vars), IncludeDirs: dirs}
}

// Load reads and expands the kernel test at path.
func (l *Loader) Load(path string) (*Test, error) {
	name, err := l.TestName(path)
	if err != nil {
		return nil, err
	}
	conf, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	conf, err = l.Expander(map[string]string{TestNameVar: name}).Expand(conf)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to expand %s", path)
	}

	t := &Test{Name: name, Path: path, Conf: conf}
	for _, item := range conf {
		switch item.Key {
		case "expected":
			t.Expected, err = pattern.Decode(item.Value)
		case "unexpected":
			t.Unexpected, err = pattern.Decode(item.Value)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%s: %v", path, item.Key)
		}
	}
	if t.Expected == nil {
		return nil, errors.Wrapf(judge.ErrMissingExpected, "%s", path)
	}
	return t, nil
}

// Discover returns the paths of all kernel test files, sorted.
func (l *Loader) Discover() ([]string, error) {
	root := filepath.Join(l.TestsDir, KernDir)
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ext := filepath.Ext(p); !d.IsDir() && (ext == ".yml" || ext == ".yaml") {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to discover tests in %s", root)
	}
	slices.Sort(paths)
	return paths, nil
}

// ReadFile decodes the YAML mapping in path, preserving key order.
func ReadFile(path string) (yaml.MapSlice, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read test file")
	}
	var conf yaml.MapSlice
	if err := yaml.Unmarshal(b, &conf); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return conf, nil
}
