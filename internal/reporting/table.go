// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"
)

// Escape sequences used by the table.
const (
	escBold   = "\033[1m"
	escReset  = "\033[0m"
	escRed    = "\033[31m"
	escGreen  = "\033[32m"
	escYellow = "\033[33m"
)

type rowKey struct{ test, target string }

// Table holds the latest state of each (test, target) pair in the order the
// pairs were first seen.
type Table struct {
	keys   []rowKey
	states map[rowKey]State
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{states: make(map[rowKey]State)}
}

// Set records state for a pair.
func (t *Table) Set(test, target string, state State) {
	k := rowKey{test, target}
	if _, ok := t.states[k]; !ok {
		t.keys = append(t.keys, k)
	}
	t.states[k] = state
}

// Render formats the table under title. If color is true, the title is bold
// and states are colored.
func (t *Table) Render(title string, color bool) string {
	header := []string{"Test", "Target", "Status"}
	widths := make([]int, len(header))
	for j, h := range header {
		widths[j] = utf8.RuneCountInString(h)
	}
	rows := make([][]string, len(t.keys))
	for i, k := range t.keys {
		target := k.target
		if target == "" {
			target = "-"
		}
		rows[i] = []string{k.test, target, t.states[k].String()}
		for j, cell := range rows[i] {
			if n := utf8.RuneCountInString(cell); n > widths[j] {
				widths[j] = n
			}
		}
	}

	var sb strings.Builder
	if color {
		sb.WriteString(escBold + title + escReset + "\n")
	} else {
		sb.WriteString(title + "\n")
	}

	sep := "+"
	for _, w := range widths {
		sep += strings.Repeat("-", w+2) + "+"
	}
	sb.WriteString(sep + "\n")
	writeRow := func(cells []string, status State, colored bool) {
		sb.WriteString("|")
		for j, cell := range cells {
			pad := strings.Repeat(" ", widths[j]-utf8.RuneCountInString(cell))
			if j == len(cells)-1 && colored {
				cell = colorize(cell, status)
			}
			sb.WriteString(" " + cell + pad + " |")
		}
		sb.WriteString("\n")
	}
	writeRow(header, Waiting, false)
	sb.WriteString(sep + "\n")
	for i, k := range t.keys {
		writeRow(rows[i], t.states[k], color)
	}
	sb.WriteString(sep + "\n")
	return sb.String()
}

func colorize(s string, state State) string {
	switch state {
	case Running:
		return escYellow + s + escReset
	case Passed:
		return escGreen + s + escReset
	case Failed:
		return escRed + s + escReset
	default:
		return s
	}
}

// LiveTable is a Sink that keeps a table of all pairs on a terminal and
// redraws it in place on every event.
type LiveTable struct {
	mu    sync.Mutex
	w     io.Writer
	title string
	color bool
	table *Table
	lines int // number of lines drawn last time
}

// NewLiveTable returns a LiveTable drawing to w.
func NewLiveTable(w io.Writer, title string, color bool) *LiveTable {
	return &LiveTable{w: w, title: title, color: color, table: NewTable()}
}

// Report records e and redraws the table.
func (lt *LiveTable) Report(e Event) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.table.Set(e.Test, e.Target, e.State)
	lt.redraw()
}

func (lt *LiveTable) redraw() {
	if lt.lines > 0 {
		// Move up to the first line of the previous table and clear to the
		// end of the screen.
		fmt.Fprintf(lt.w, "\033[%dA\r\033[J", lt.lines)
	}
	out := lt.table.Render(lt.title, lt.color)
	io.WriteString(lt.w, out)
	lt.lines = strings.Count(out, "\n")
}
