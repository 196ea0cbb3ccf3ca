// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package command_test

import (
	"flag"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Jrinx/ktest/internal/command"
)

func TestDurationFlag(t *testing.T) {
	for _, tc := range []struct {
		units time.Duration // units for flag
		args  []string      // args to parse
		def   time.Duration // default value for flag
		exp   time.Duration // expected value
	}{
		{time.Second, []string{}, 0, 0},
		{time.Second, []string{}, 180 * time.Second, 180 * time.Second},
		{time.Second, []string{"-flag=5"}, 0, 5 * time.Second},
		{time.Minute, []string{"-flag=2"}, 0, 2 * time.Minute},
		{time.Millisecond, []string{"-flag=200"}, 0, 200 * time.Millisecond},
	} {
		var d time.Duration
		fs := flag.NewFlagSet("", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		fs.Var(command.NewDurationFlag(tc.units, &d, tc.def), "flag", "usage")

		if err := fs.Parse(tc.args); err != nil {
			t.Errorf("%v produced error: %v", tc.args, err)
		} else if d != tc.exp {
			t.Errorf("%v resulted in %v; want %v", tc.args, d, tc.exp)
		}
	}
}

func TestDurationFlagInvalid(t *testing.T) {
	for _, arg := range []string{"-flag=1.5", "-flag=-3", "-flag=3s"} {
		var d time.Duration
		fs := flag.NewFlagSet("", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		fs.Var(command.NewDurationFlag(time.Second, &d, 0), "flag", "usage")
		if err := fs.Parse([]string{arg}); err == nil {
			t.Errorf("%v resulted in %v; want error", arg, d)
		}
	}
}

func ExampleDurationFlag() {
	var dest time.Duration
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.Var(command.NewDurationFlag(time.Second, &dest, 5*time.Second), "flag", "usage")

	// When the flag isn't supplied, the default is used.
	flags.Parse([]string{})
	fmt.Println("no flag:", dest)

	// When the flag is supplied, it's interpreted as an integer duration using the supplied units.
	flags.Parse([]string{"-flag=10"})
	fmt.Println("flag:", dest)

	// Output:
	// no flag: 5s
	// flag: 10s
}

func TestListFlag(t *testing.T) {
	for _, tc := range []struct {
		sep  string   // separator to use
		args []string // args to parse
		def  []string // default value for flag
		exp  []string // expected values
	}{
		{",", []string{}, nil, nil},
		{",", []string{}, []string{"virt", "sifive_u"}, []string{"virt", "sifive_u"}},
		{",", []string{"-flag=virt"}, nil, []string{"virt"}},
		{",", []string{"-flag=virt,sifive_u"}, nil, []string{"virt", "sifive_u"}},
		{",", []string{"-flag=virt, sifive_u,"}, []string{"default"}, []string{"virt", "sifive_u"}},
		{" ", []string{"-flag=virt sifive_u"}, []string{"default"}, []string{"virt", "sifive_u"}},
		{":", []string{"-flag=virt:sifive_u"}, []string{"default"}, []string{"virt", "sifive_u"}},
	} {
		var vals []string
		f := func(v []string) { vals = v }
		fs := flag.NewFlagSet("", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		fs.Var(command.NewListFlag(tc.sep, f, tc.def), "flag", "usage")

		if err := fs.Parse(tc.args); err != nil {
			t.Errorf("%v produced error: %v", tc.args, err)
		} else if diff := cmp.Diff(vals, tc.exp); diff != "" {
			t.Errorf("%v resulted in unexpected values (-got +want):\n%s", tc.args, diff)
		}
	}
}

func TestEnumFlag(t *testing.T) {
	type display int
	const (
		plain display = iota
		table
	)

	for _, tc := range []struct {
		args   []string // args to parse
		def    string   // default value for flag
		exp    display  // expected value
		expErr bool     // if true, error is expected
	}{
		{[]string{}, "plain", plain, false},
		{[]string{"-flag=plain"}, "table", plain, false},
		{[]string{"-flag=table"}, "plain", table, false},
		{[]string{"-flag=bogus"}, "plain", plain, true},
		{[]string{"-flag"}, "plain", plain, true},
	} {
		valid := map[string]int{"plain": int(plain), "table": int(table)}
		val := display(-1)
		f := func(v int) { val = display(v) }
		fs := flag.NewFlagSet("", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		fs.Var(command.NewEnumFlag(valid, f, tc.def), "flag", "usage")

		if err := fs.Parse(tc.args); err != nil && !tc.expErr {
			t.Errorf("%v produced error: %v", tc.args, err)
		} else if err == nil && tc.expErr {
			t.Errorf("%v didn't produce expected error", tc.args)
		} else if val != tc.exp {
			t.Errorf("%v resulted in %v; want %v", tc.args, val, tc.exp)
		}
	}
}

func ExampleRepeatedFlag() {
	var dirs []string
	rf := command.RepeatedFlag(func(v string) error {
		dirs = append(dirs, v)
		return nil
	})
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.Var(&rf, "I", "usage")

	// When the flag isn't supplied, the slice is unchanged.
	flags.Parse([]string{})
	fmt.Println("no flag:", dirs)

	// The function is called each time the flag is provided.
	flags.Parse([]string{"-I=inc", "-I", "more"})
	fmt.Println("flag:", dirs)

	// Output:
	// no flag: []
	// flag: [inc more]
}
