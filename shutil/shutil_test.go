// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package shutil_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Jrinx/ktest/shutil"
)

func TestEscape(t *testing.T) {
	for _, c := range []struct {
		in, exp string
	}{
		{``, `''`},
		{` `, `' '`},
		{`\t`, `'\t'`},
		{`ab`, `ab`},
		{`a b`, `'a b'`},
		{`AZaz09@%_+=:,./-`, `AZaz09@%_+=:,./-`},
		{`a!b`, `'a!b'`},
		{`'`, `''"'"''`},
		{`=foo`, `'=foo'`},
		{`-t jrinx::test::mm`, `'-t jrinx::test::mm'`},
		{`jrinx::test::mm`, `jrinx::test::mm`},
	} {
		if s := shutil.Escape(c.in); s != c.exp {
			t.Errorf("Escape(%q) = %q; want %q", c.in, s, c.exp)
		}
	}
}

func TestSplit(t *testing.T) {
	for _, c := range []struct {
		in  string
		exp []string
	}{
		{`cargo qemu`, []string{"cargo", "qemu"}},
		{`  cargo   make  `, []string{"cargo", "make"}},
		{`sh -c 'echo "a b"; exit 1'`, []string{"sh", "-c", `echo "a b"; exit 1`}},
		{`a\ b c`, []string{"a b", "c"}},
	} {
		got, err := shutil.Split(c.in)
		if err != nil {
			t.Errorf("Split(%q) failed: %v", c.in, err)
		} else if diff := cmp.Diff(got, c.exp); diff != "" {
			t.Errorf("Split(%q) mismatch (-got +want):\n%s", c.in, diff)
		}
	}

	for _, in := range []string{``, `   `, `'unterminated`} {
		if got, err := shutil.Split(in); err == nil {
			t.Errorf("Split(%q) = %q; want error", in, got)
		}
	}
}

func TestSplitEscapeRoundTrip(t *testing.T) {
	args := []string{"/bin/sh", "-c", `echo "it's $HOME"`}
	got, err := shutil.Split(shutil.EscapeSlice(args))
	if err != nil {
		t.Fatal("Split failed: ", err)
	}
	if diff := cmp.Diff(got, args); diff != "" {
		t.Errorf("Split(EscapeSlice()) mismatch (-got +want):\n%s", diff)
	}
}
