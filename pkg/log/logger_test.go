// Copyright 2021 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package log

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestLogWrapperPrefixes(t *testing.T) {
	var buf bytes.Buffer
	l := logWrapper{Logger: log.New(&buf, "", 0)}

	SetDebug(false)
	l.Debugf("hidden %d", 1)
	if buf.Len() != 0 {
		t.Fatalf("debug output while disabled: %q", buf.String())
	}

	SetDebug(true)
	defer SetDebug(false)
	l.Debugf("shown %d", 2)
	l.Warnf("careful")
	l.Errorf("broken")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{
		"[pcatfw][DEBUG] shown 2",
		"[pcatfw][WARN] careful",
		"[pcatfw][ERROR] broken",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}
