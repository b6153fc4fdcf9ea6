// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bda reads the parts of the BIOS data area that describe
// conventional memory.
package bda

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/u-root/u-root/pkg/memio"
)

// Layout of the BIOS data area at segment 0x40.
const (
	Address = 0x400

	EBDASegmentOffset = 0x0E
	BaseMemoryOffset  = 0x13
)

// PhysReader reads one value from physical memory.
type PhysReader func(addr int64, data memio.UintN) error

// Info is what the BIOS data area says about low memory.
type Info struct {
	// EBDASegment is the segment of the extended BIOS data area, or zero.
	EBDASegment uint16
	// BaseMemoryKiB is the conventional memory size reported by INT 12h.
	BaseMemoryKiB uint16
}

// Read decodes the BIOS data area through read.
func Read(read PhysReader) (Info, error) {
	var ebda, base memio.Uint16
	if err := read(Address+EBDASegmentOffset, &ebda); err != nil {
		return Info{}, fmt.Errorf("unable to read the EBDA segment: %w", err)
	}
	if err := read(Address+BaseMemoryOffset, &base); err != nil {
		return Info{}, fmt.Errorf("unable to read the base memory size: %w", err)
	}
	return Info{EBDASegment: uint16(ebda), BaseMemoryKiB: uint16(base)}, nil
}

// EBDA returns the linear address of the extended BIOS data area.
func (i Info) EBDA() uint64 {
	return uint64(i.EBDASegment) << 4
}

// BaseMemoryEnd returns the first address past conventional memory.
func (i Info) BaseMemoryEnd() uint64 {
	return uint64(i.BaseMemoryKiB) * 1024
}

func (i Info) String() string {
	return fmt.Sprintf("EBDA at %#x, %s of base memory", i.EBDA(), humanize.IBytes(i.BaseMemoryEnd()))
}

// Check returns every reason why memory up to end cannot be handed out as
// conventional memory.
func (i Info) Check(end uint64) error {
	var result *multierror.Error
	if i.EBDASegment != 0 && i.EBDA() < end {
		result = multierror.Append(result, fmt.Errorf("EBDA at %#x is below %#x", i.EBDA(), end))
	}
	if i.BaseMemoryEnd() < end {
		result = multierror.Append(result, fmt.Errorf("base memory ends at %#x, below %#x", i.BaseMemoryEnd(), end))
	}
	return result.ErrorOrNil()
}
