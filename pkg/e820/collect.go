// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package e820 builds the initial memory map of a PC/AT machine from the
// BIOS "Query System Address Map" service (INT 15h, AX=E820h).
package e820

import (
	"errors"
	"fmt"

	"github.com/linuxboot/pcatfw/pkg/log"
	"github.com/linuxboot/pcatfw/pkg/memmap"
	"github.com/linuxboot/pcatfw/pkg/realmode"
)

// ErrNoHighMemory is returned when the finished map has no usable memory
// above the first megabyte, which usually means the BIOS does not implement
// E820. The map is still filled in.
var ErrNoHighMemory = errors.New("no usable memory above 1MiB")

// Layout of the first megabyte, applied on top of whatever the BIOS reports.
const (
	LowMemoryEnd         = 0x100000
	LowConventionalStart = 0x1000
	LowConventionalEnd   = 0x9F000
	maxCalls             = 1024
)

// Collector queries the E820 map through a real mode call bridge.
type Collector struct {
	Arena    *realmode.Arena
	Executor realmode.Executor

	// AllowLowMemoryOnly accepts a map without usable memory above 1MiB
	// instead of failing with ErrNoHighMemory.
	AllowLowMemoryOnly bool
}

// Collect fills m with the BIOS memory map and returns the number of
// descriptors. The first megabyte is always described as unusable except for
// [0x1000, 0x9F000), which is conventional memory regardless of what the
// BIOS says. A BIOS without E820 support is not an error by itself; see
// AllowLowMemoryOnly.
func (c *Collector) Collect(m *memmap.Map) (int, error) {
	reported, err := c.harvest(m)
	if err != nil {
		return 0, err
	}
	log.Debugf("e820: %d entries reported by the BIOS", reported)

	low := []memmap.Descriptor{
		m.Descriptor(memmap.Unusable, 0, LowMemoryEnd, 0),
		m.Descriptor(memmap.Conventional, LowConventionalStart, LowConventionalEnd-LowConventionalStart, 0),
	}
	for _, d := range low {
		if err := m.Add(d, true); err != nil {
			return 0, fmt.Errorf("unable to add low memory descriptor {%v}: %w", d, err)
		}
	}

	n := m.Compact()
	if !hasHighMemory(m) && !c.AllowLowMemoryOnly {
		log.Warnf("e820: no usable memory above 1MiB (%d entries reported)", reported)
		return n, ErrNoHighMemory
	}
	return n, nil
}

// harvest issues E820 calls until the BIOS signals the end of the list and
// returns the number of entries it reported.
func (c *Collector) harvest(m *memmap.Map) (int, error) {
	ctx, err := realmode.NewBiosCallContext(c.Arena, Vector)
	if err != nil {
		return 0, fmt.Errorf("unable to create the E820 call context: %w", err)
	}
	defer ctx.Close()

	var cursor uint32
	reported := 0
	for call := 0; call < maxCalls; call++ {
		ctx.Eax = Function
		ctx.Ebx = cursor
		ctx.Ecx = BufferSize
		ctx.Edx = Signature
		ctx.Es = realmode.Segment(ctx.Data.Address)
		ctx.Edi = uint32(realmode.Offset(ctx.Data.Address))
		ctx.SetCarry(false)
		es, di := ctx.Es, ctx.DI()

		if err := ctx.Run(c.Executor); err != nil {
			return reported, err
		}

		if call == 0 && ctx.Eax != Signature {
			log.Warnf("e820: not supported by the BIOS (eax=%#08x)", ctx.Eax)
			return 0, nil
		}
		if ctx.Carry() {
			log.Debugf("e820: carry set on call %d, stopping", call)
			return reported, nil
		}

		buf, err := ctx.SegmentMemory(es, di, EntrySize)
		if err != nil {
			return reported, err
		}
		var raw RawEntry
		if err := raw.UnmarshalBinary(buf); err != nil {
			return reported, err
		}
		reported++

		if err := add(m, raw); err != nil {
			return reported, err
		}

		cursor = ctx.Ebx
		if cursor == 0 {
			return reported, nil
		}
	}
	log.Warnf("e820: giving up after %d calls", maxCalls)
	return reported, nil
}

func add(m *memmap.Map, raw RawEntry) error {
	if err := raw.Check(); err != nil {
		log.Warnf("e820: ignoring %v: %v", raw, err)
		return nil
	}
	t, ok := TranslateType(raw.Type)
	if !ok {
		log.Debugf("e820: skipping %v", raw)
		return nil
	}
	d := m.Descriptor(t, raw.Base(), raw.Length(), 0)
	if err := m.Add(d, false); err != nil {
		return fmt.Errorf("unable to add {%v}: %w", d, err)
	}
	return nil
}

func hasHighMemory(m *memmap.Map) bool {
	for _, d := range m.Descriptors() {
		if d.Type == memmap.Conventional && !d.IsHole() && m.End(d) > LowMemoryEnd {
			return true
		}
	}
	return false
}

// GetMemoryMap collects the memory map into buf and returns the live
// descriptors. The result aliases buf.
func GetMemoryMap(arena *realmode.Arena, exec realmode.Executor, buf []memmap.Descriptor) ([]memmap.Descriptor, error) {
	m := memmap.NewMap(buf[:0:cap(buf)])
	c := &Collector{Arena: arena, Executor: exec}
	n, err := c.Collect(m)
	return m.Descriptors()[:n], err
}
