// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/linuxboot/pcatfw/pkg/e820"
	"github.com/linuxboot/pcatfw/pkg/memmap"
)

var defaults = options{capacity: 64}

func TestE820Dump(t *testing.T) {
	t.Run("usage error", func(t *testing.T) {
		err := run(io.Discard, defaults, nil)
		if !errors.Is(err, errUsage) {
			t.Errorf("expected %v, got %v", errUsage, err)
		}
		err = run(io.Discard, options{}, []string{"testdata/qemu.json"})
		if !errors.Is(err, errUsage) {
			t.Errorf("expected %v, got %v", errUsage, err)
		}
	})

	t.Run("table", func(t *testing.T) {
		stdout := &bytes.Buffer{}
		if err := run(stdout, defaults, []string{"testdata/qemu.json"}); err != nil {
			t.Fatalf("expected nil got %v", err)
		}
		for _, want := range []string{"Memory Map", "Runtime Services Data", "0x000000007ffe0000", "2.0 GiB"} {
			if !strings.Contains(stdout.String(), want) {
				t.Errorf("output doesn't contain %q:\n%s", want, stdout.String())
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		plain := &bytes.Buffer{}
		if err := run(plain, options{json: true, capacity: 64}, []string{"testdata/qemu.json"}); err != nil {
			t.Fatalf("expected nil got %v", err)
		}
		var entries []map[string]any
		if err := json.Unmarshal(plain.Bytes(), &entries); err != nil {
			t.Fatalf("expected json output, got unmarshal error: %v", err)
		}
		if len(entries) != 7 {
			t.Errorf("expected 7 entries, got %d", len(entries))
		}
		if entries[1]["type"] != "Conventional" || entries[1]["start"] != "0x1000" || entries[1]["end"] != "0x9f000" {
			t.Errorf("unexpected low conventional entry %v", entries[1])
		}

		packed := &bytes.Buffer{}
		if err := run(packed, options{json: true, capacity: 64}, []string{"testdata/qemu.json.xz"}); err != nil {
			t.Fatalf("expected nil got %v", err)
		}
		if packed.String() != plain.String() {
			t.Errorf("compressed scenario gave a different map:\n%s", packed.String())
		}
	})

	t.Run("coalesce", func(t *testing.T) {
		stdout := &bytes.Buffer{}
		if err := run(stdout, options{json: true, capacity: 64, coalesce: true}, []string{"testdata/qemu.json"}); err != nil {
			t.Fatalf("expected nil got %v", err)
		}
		var entries []map[string]any
		if err := json.Unmarshal(stdout.Bytes(), &entries); err != nil {
			t.Fatal(err)
		}
		if len(entries) != 7 {
			t.Errorf("expected 7 entries, got %d", len(entries))
		}
	})

	t.Run("no high memory", func(t *testing.T) {
		err := run(io.Discard, defaults, []string{"testdata/nomem.json"})
		if !errors.Is(err, e820.ErrNoHighMemory) {
			t.Errorf("expected %v, got %v", e820.ErrNoHighMemory, err)
		}
		if err := run(io.Discard, options{capacity: 64, lax: true}, []string{"testdata/nomem.json"}); err != nil {
			t.Errorf("expected nil got %v", err)
		}
	})

	t.Run("capacity", func(t *testing.T) {
		err := run(io.Discard, options{capacity: 4}, []string{"testdata/qemu.json"})
		if !errors.Is(err, memmap.ErrBufferTooSmall) {
			t.Errorf("expected %v, got %v", memmap.ErrBufferTooSmall, err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if err := run(io.Discard, defaults, []string{"testdata/none.json"}); err == nil {
			t.Error("expected an error, got nil")
		}
	})
}
