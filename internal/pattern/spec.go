// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package pattern implements composable matchers evaluated over a stream of
// output lines.
//
// A pattern is described by an immutable Spec tree. New builds a stateful
// Matcher from a Spec; the Matcher is fed every line in order via Apply and
// eventually reports that it is fully matched ("retired"):
//
//	m, err := pattern.New(pattern.Ordered(
//		pattern.Literal("BOOT_OK"),
//		pattern.Repeat(pattern.Literal("tick"), 2),
//	))
//	...
//	for line := range lines {
//		if m.Apply(line).Matched {
//			break
//		}
//	}
package pattern

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/Jrinx/ktest/internal/errors"
)

// ErrInvalidSpec is wrapped by errors returned for malformed pattern specs.
var ErrInvalidSpec = errors.New("invalid pattern spec")

// Kind identifies the variant of a Spec.
type Kind int

const (
	// KindLiteral matches a regular expression found anywhere in a line.
	KindLiteral Kind = iota + 1
	// KindOrdered matches its children one after another.
	KindOrdered
	// KindUnordered matches all of its children in any order.
	KindUnordered
	// KindRepeat matches its child a fixed number of times.
	KindRepeat
)

// String returns the tag used for the kind in test files.
func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindOrdered:
		return "ordered"
	case KindUnordered:
		return "unordered"
	case KindRepeat:
		return "repeat"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Spec is an immutable description of a pattern.
type Spec struct {
	Kind Kind

	// Regex is the expression searched for by a KindLiteral spec.
	Regex string

	// Children are the sub-patterns of a KindOrdered or KindUnordered spec.
	Children []*Spec

	// Child and Count describe a KindRepeat spec.
	Child *Spec
	Count int
}

// Literal returns a spec matching lines that contain regex.
func Literal(regex string) *Spec {
	return &Spec{Kind: KindLiteral, Regex: regex}
}

// Ordered returns a spec matching children in sequence.
func Ordered(children ...*Spec) *Spec {
	return &Spec{Kind: KindOrdered, Children: children}
}

// Unordered returns a spec matching children in any order.
func Unordered(children ...*Spec) *Spec {
	return &Spec{Kind: KindUnordered, Children: children}
}

// Repeat returns a spec matching child count times.
func Repeat(child *Spec, count int) *Spec {
	return &Spec{Kind: KindRepeat, Child: child, Count: count}
}

// String returns a human-readable description of s. It is used as the
// trigger of failure verdicts.
func (s *Spec) String() string {
	if s == nil {
		return "<nil>"
	}
	switch s.Kind {
	case KindLiteral:
		return s.Regex
	case KindOrdered, KindUnordered:
		strs := make([]string, len(s.Children))
		for i, c := range s.Children {
			strs[i] = c.String()
		}
		return fmt.Sprintf("%v[%s]", s.Kind, strings.Join(strs, ", "))
	case KindRepeat:
		return fmt.Sprintf("repeat(%v, %d)", s.Child, s.Count)
	default:
		return s.Kind.String()
	}
}

// Decode converts a value decoded from YAML into a Spec.
//
// A string becomes a literal. A mapping carries a "type" tag: "ordered" and
// "unordered" take their children from "vals", and "repeat" takes "pat" and
// "count". A nil value decodes to a nil Spec, meaning the pattern is absent.
func Decode(v interface{}) (*Spec, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		return Literal(v), nil
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, e := range v {
			ks, ok := k.(string)
			if !ok {
				return nil, errors.Wrapf(ErrInvalidSpec, "non-string key %v", k)
			}
			m[ks] = e
		}
		return decodeMap(m)
	case map[string]interface{}:
		return decodeMap(v)
	case yaml.MapSlice:
		m := make(map[string]interface{}, len(v))
		for _, item := range v {
			ks, ok := item.Key.(string)
			if !ok {
				return nil, errors.Wrapf(ErrInvalidSpec, "non-string key %v", item.Key)
			}
			m[ks] = item.Value
		}
		return decodeMap(m)
	default:
		return nil, errors.Wrapf(ErrInvalidSpec, "pattern %v has unsupported type %T", v, v)
	}
}

func decodeMap(m map[string]interface{}) (*Spec, error) {
	tag, ok := m["type"].(string)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidSpec, "pattern %v has no type", m)
	}
	switch strings.ToLower(tag) {
	case "ordered", "unordered":
		vals, ok := m["vals"].([]interface{})
		if !ok {
			return nil, errors.Wrapf(ErrInvalidSpec, "%s pattern needs a vals list", tag)
		}
		children := make([]*Spec, len(vals))
		for i, val := range vals {
			c, err := Decode(val)
			if err != nil {
				return nil, err
			}
			if c == nil {
				return nil, errors.Wrapf(ErrInvalidSpec, "%s pattern has an empty value at %d", tag, i)
			}
			children[i] = c
		}
		if strings.ToLower(tag) == "ordered" {
			return Ordered(children...), nil
		}
		return Unordered(children...), nil
	case "repeat":
		child, err := Decode(m["pat"])
		if err != nil {
			return nil, err
		}
		if child == nil {
			return nil, errors.Wrap(ErrInvalidSpec, "repeat pattern needs pat")
		}
		count, err := toInt(m["count"])
		if err != nil {
			return nil, err
		}
		return Repeat(child, count), nil
	default:
		return nil, errors.Wrapf(ErrInvalidSpec, "unknown pattern type %q", tag)
	}
}

func toInt(v interface{}) (int, error) {
	switch v := v.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	case string:
		// Counts may come from expanded variables.
		if n, err := strconv.Atoi(v); err == nil {
			return n, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidSpec, "repeat count %v is not an integer", v)
}

// UnmarshalYAML implements yaml.Unmarshaler for gopkg.in/yaml.v2.
func (s *Spec) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v interface{}
	if err := unmarshal(&v); err != nil {
		return err
	}
	d, err := Decode(v)
	if err != nil {
		return err
	}
	if d == nil {
		*s = Spec{}
		return nil
	}
	*s = *d
	return nil
}
