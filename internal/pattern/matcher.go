// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package pattern

import (
	"regexp"

	"github.com/Jrinx/ktest/internal/errors"
)

// Outcome is the result of applying a Matcher to a line.
type Outcome struct {
	// Matched is true if the matcher is fully matched after the line.
	Matched bool
	// Captures holds the substrings matched by literals while processing the
	// line. It is non-empty iff the line contributed to a (partial) match.
	Captures []string
}

// Matcher is a stateful matcher built from a Spec. A Matcher is owned by a
// single judging session and is not safe for concurrent use.
type Matcher interface {
	// Apply feeds the next line to the matcher.
	Apply(line string) Outcome
	// Done reports whether the matcher is fully matched. Once true, it stays
	// true.
	Done() bool
}

// New builds a Matcher from s. The whole tree is validated up front, so an
// error is returned for any malformed node.
func New(s *Spec) (Matcher, error) {
	if s == nil {
		return nil, errors.Wrap(ErrInvalidSpec, "nil pattern")
	}
	switch s.Kind {
	case KindLiteral:
		re, err := regexp.Compile(s.Regex)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidSpec, "bad regexp %q: %v", s.Regex, err)
		}
		return &literal{re: re}, nil
	case KindOrdered, KindUnordered:
		if len(s.Children) == 0 {
			return nil, errors.Wrapf(ErrInvalidSpec, "%v pattern has no children", s.Kind)
		}
		children := make([]Matcher, len(s.Children))
		for i, c := range s.Children {
			m, err := New(c)
			if err != nil {
				return nil, err
			}
			children[i] = m
		}
		if s.Kind == KindOrdered {
			return &ordered{children: children}, nil
		}
		return &unordered{waiting: children}, nil
	case KindRepeat:
		if s.Count < 1 {
			return nil, errors.Wrapf(ErrInvalidSpec, "repeat count %d is less than 1", s.Count)
		}
		inner, err := New(s.Child)
		if err != nil {
			return nil, err
		}
		return &repeat{spec: s.Child, inner: inner, rem: s.Count}, nil
	default:
		return nil, errors.Wrapf(ErrInvalidSpec, "unknown pattern kind %v", s.Kind)
	}
}

type literal struct {
	re *regexp.Regexp
}

func (m *literal) Apply(line string) Outcome {
	loc := m.re.FindStringIndex(line)
	if loc == nil {
		return Outcome{}
	}
	return Outcome{Matched: true, Captures: []string{line[loc[0]:loc[1]]}}
}

// Done is always false; a literal has no state and retires on each match.
func (m *literal) Done() bool { return false }

type ordered struct {
	children []Matcher
	next     int
}

func (m *ordered) Apply(line string) Outcome {
	if m.Done() {
		return Outcome{Matched: true}
	}
	out := m.children[m.next].Apply(line)
	if len(out.Captures) == 0 {
		return Outcome{}
	}
	if out.Matched {
		m.next++
	}
	return Outcome{Matched: m.Done(), Captures: out.Captures}
}

func (m *ordered) Done() bool { return m.next >= len(m.children) }

type unordered struct {
	// waiting holds children not yet matched, in declaration order.
	waiting []Matcher
}

func (m *unordered) Apply(line string) Outcome {
	if m.Done() {
		return Outcome{Matched: true}
	}
	var caps []string
	remaining := m.waiting[:0:0]
	for _, c := range m.waiting {
		out := c.Apply(line)
		caps = append(caps, out.Captures...)
		if len(out.Captures) > 0 && out.Matched {
			continue
		}
		remaining = append(remaining, c)
	}
	m.waiting = remaining
	return Outcome{Matched: m.Done(), Captures: caps}
}

func (m *unordered) Done() bool { return len(m.waiting) == 0 }

type repeat struct {
	spec  *Spec
	inner Matcher
	rem   int
}

func (m *repeat) Apply(line string) Outcome {
	if m.Done() {
		return Outcome{Matched: true}
	}
	out := m.inner.Apply(line)
	if len(out.Captures) > 0 && out.Matched {
		m.rem--
		// The child Spec was validated when m was built.
		m.inner, _ = New(m.spec)
	}
	return Outcome{Matched: m.Done(), Captures: out.Captures}
}

func (m *repeat) Done() bool { return m.rem == 0 }
