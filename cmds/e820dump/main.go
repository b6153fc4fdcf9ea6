// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// e820dump builds the initial memory map of a simulated PC/AT machine and
// prints it.
//
// Synopsis:
//
//	e820dump [-j] [-d] [--capacity N] [--lax] [--coalesce] SCENARIO
//
// SCENARIO is a JSON machine description, optionally compressed with xz,
// lzma, lz4, zstd or zlib (picked by file extension).
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/linuxboot/pcatfw/pkg/biosemu"
	"github.com/linuxboot/pcatfw/pkg/log"
	"github.com/linuxboot/pcatfw/pkg/memmap"
)

var (
	debug    = flag.BoolP("debug", "d", false, "enable debug prints")
	asJSON   = flag.BoolP("json", "j", false, "print the map as JSON")
	capacity = flag.IntP("capacity", "c", 64, "number of descriptors the map can hold")
	lax      = flag.Bool("lax", false, "accept a map without usable memory above 1MiB")
	coalesce = flag.Bool("coalesce", false, "merge neighbouring entries of the same type")
)

var errUsage = errors.New("usage: e820dump [-j] [-d] [--capacity N] [--lax] [--coalesce] SCENARIO")

type options struct {
	json     bool
	capacity int
	lax      bool
	coalesce bool
}

func run(stdout io.Writer, opts options, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if opts.capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive", errUsage)
	}

	s, err := biosemu.LoadScenario(args[0])
	if err != nil {
		return err
	}
	m := memmap.NewMap(make([]memmap.Descriptor, 0, opts.capacity))
	if _, err := s.MemoryMap(m, opts.lax); err != nil {
		return fmt.Errorf("%s: %w", s.Name, err)
	}
	if opts.coalesce {
		m.Coalesce()
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%s: inconsistent memory map: %w", s.Name, err)
	}

	if opts.json {
		j, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s\n", j)
		return nil
	}
	fmt.Fprintf(stdout, "%s\n", m.Table())
	return nil
}

func main() {
	flag.Parse()
	log.SetDebug(*debug)

	err := run(os.Stdout, options{
		json:     *asJSON,
		capacity: *capacity,
		lax:      *lax,
		coalesce: *coalesce,
	}, flag.Args())
	if err != nil {
		log.Fatalf("%v", err)
	}
}
