// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testconf

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	envparse "github.com/a8m/envsubst/parse"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v2"

	"github.com/Jrinx/ktest/internal/errors"
)

var (
	// ErrUnsetVariable is wrapped by errors returned when a string refers to
	// a variable that is not set.
	ErrUnsetVariable = errors.New("unset variable")
	// ErrIncludeNotFound is wrapped by errors returned when an included
	// file cannot be found.
	ErrIncludeNotFound = errors.New("include not found")
)

// includeKey is the mapping key naming a file to merge into the mapping.
const includeKey = "include"

// Environ returns extra as NAME=value entries, sorted by name, followed by
// the process environment. Entries of extra shadow the environment.
func Environ(extra map[string]string) []string {
	names := maps.Keys(extra)
	slices.Sort(names)
	env := make([]string, 0, len(extra))
	for _, n := range names {
		env = append(env, n+"="+extra[n])
	}
	return append(env, os.Environ()...)
}

// Expander resolves includes and variables in a decoded test file.
type Expander struct {
	// Env holds NAME=value entries resolving variables. Earlier entries
	// shadow later ones.
	Env []string
	// IncludeDirs are searched recursively, in order, for included files.
	// Directories that do not exist are ignored.
	IncludeDirs []string
}

// Expand returns conf with includes merged and variables expanded.
//
// A mapping with an "include" key is merged with the named file; keys of the
// included file take precedence. The merged mapping is expanded again, so
// included files may include further files. Strings are expanded; lists and
// mappings are expanded recursively; other scalars are kept as-is.
func (e *Expander) Expand(conf yaml.MapSlice) (yaml.MapSlice, error) {
	for i, item := range conf {
		if item.Key != includeKey {
			continue
		}
		name, ok := item.Value.(string)
		if !ok {
			return nil, errors.Errorf("include %v is not a string", item.Value)
		}
		inc, err := e.load(name)
		if err != nil {
			return nil, err
		}
		merged := make(yaml.MapSlice, 0, len(conf)+len(inc))
		merged = append(merged, conf[:i]...)
		merged = append(merged, conf[i+1:]...)
		return e.Expand(merge(merged, inc))
	}

	out := make(yaml.MapSlice, len(conf))
	for i, item := range conf {
		v, err := e.expandValue(item.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "%v", item.Key)
		}
		out[i] = yaml.MapItem{Key: item.Key, Value: v}
	}
	return out, nil
}

func (e *Expander) expandValue(v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case yaml.MapSlice:
		return e.Expand(v)
	case string:
		return ExpandString(v, e.Env)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, c := range v {
			ec, err := e.expandValue(c)
			if err != nil {
				return nil, err
			}
			out[i] = ec
		}
		return out, nil
	default:
		return v, nil
	}
}

// merge returns base with every key of over set to over's value.
func merge(base, over yaml.MapSlice) yaml.MapSlice {
	out := append(yaml.MapSlice(nil), base...)
	for _, item := range over {
		replaced := false
		for i := range out {
			if out[i].Key == item.Key {
				out[i].Value = item.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, item)
		}
	}
	return out
}

// load finds and decodes the included file name.
func (e *Expander) load(name string) (yaml.MapSlice, error) {
	path, err := e.find(name)
	if err != nil {
		return nil, err
	}
	inc, err := ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "include %q", name)
	}
	return inc, nil
}

// find returns the first file under the include dirs whose base name is
// name, name.yml or name.yaml. Within a directory, .yml files are preferred
// over .yaml files.
func (e *Expander) find(name string) (string, error) {
	for _, dir := range e.IncludeDirs {
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			continue
		}
		for _, ext := range []string{".yml", ".yaml"} {
			var found string
			err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() || filepath.Ext(p) != ext {
					return nil
				}
				if base := d.Name(); base == name || base == name+".yml" || base == name+".yaml" {
					found = p
					return fs.SkipAll
				}
				return nil
			})
			if err != nil {
				return "", errors.Wrapf(err, "failed to search %s", dir)
			}
			if found != "" {
				return found, nil
			}
		}
	}
	return "", errors.Wrapf(ErrIncludeNotFound, "%q", name)
}

// ExpandString expands shell-style variable references in s. env holds
// NAME=value entries; the first entry for a name wins.
//
//	$NAME, ${NAME}          value; error if unset
//	${NAME:-word}           word if NAME is unset or empty
//	${NAME-word}            word if NAME is unset
//	${NAME:+word}, ${NAME+word}
//	                        word if NAME is set, else empty
//	\$, $$                  a literal '$'
//
// A '$' not followed by a name or '{' is kept, as is "$1".
func ExpandString(s string, env []string) (string, error) {
	if strings.Contains(s, "${}") {
		return "", errors.Errorf("bad substitution in %q", s)
	}
	p := envparse.New("value", env, &envparse.Restrictions{NoUnset: true, NoDigit: true})
	out, err := p.Parse(strings.ReplaceAll(s, `\$`, "$$"))
	if err != nil {
		if name, ok := unsetName(err); ok {
			return "", errors.Wrapf(ErrUnsetVariable, "%s", name)
		}
		return "", errors.Wrapf(err, "bad substitution in %q", s)
	}
	return out, nil
}

// unsetName extracts the variable name from an envsubst NoUnset failure.
func unsetName(err error) (string, bool) {
	const prefix, suffix = "variable ${", "} not set"
	msg := err.Error()
	if !strings.HasPrefix(msg, prefix) || !strings.HasSuffix(msg, suffix) {
		return "", false
	}
	return msg[len(prefix) : len(msg)-len(suffix)], true
}
