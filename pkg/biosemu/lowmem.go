// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package biosemu

import (
	"encoding/binary"
	"fmt"

	"github.com/u-root/u-root/pkg/memio"

	"github.com/linuxboot/pcatfw/pkg/bda"
)

// Values used for scenarios without a "bda" section, as set up by SeaBIOS
// on a machine with 640KiB of base memory and a 1KiB EBDA.
const (
	DefaultEBDASegment   = 0x9FC0
	DefaultBaseMemoryKiB = 639
)

const lowMemorySize = 0x500

// LowMemory returns the interrupt vector table and BIOS data area of the
// scenario machine.
func (s *Scenario) LowMemory() ([]byte, error) {
	spec := BDASpec{EBDASegment: DefaultEBDASegment, BaseMemoryKiB: DefaultBaseMemoryKiB}
	if s.BDA != nil {
		spec = *s.BDA
	}
	if spec.EBDASegment > 0xffff || spec.BaseMemoryKiB > 0xffff {
		return nil, fmt.Errorf("bda: value out of range in %+v", spec)
	}
	img := make([]byte, lowMemorySize)
	binary.LittleEndian.PutUint16(img[bda.Address+bda.EBDASegmentOffset:], uint16(spec.EBDASegment))
	binary.LittleEndian.PutUint16(img[bda.Address+bda.BaseMemoryOffset:], uint16(spec.BaseMemoryKiB))
	return img, nil
}

// ReadPhys reads from the scenario's low memory. It has the signature of
// memio.Read so it can stand in for /dev/mem.
func (s *Scenario) ReadPhys(addr int64, data memio.UintN) error {
	img, err := s.LowMemory()
	if err != nil {
		return err
	}
	size := int64(data.Size())
	if addr < 0 || addr+size > int64(len(img)) {
		return fmt.Errorf("physical address %#x+%d outside of low memory", addr, size)
	}
	b := img[addr : addr+size]
	switch v := data.(type) {
	case *memio.Uint8:
		*v = memio.Uint8(b[0])
	case *memio.Uint16:
		*v = memio.Uint16(binary.LittleEndian.Uint16(b))
	case *memio.Uint32:
		*v = memio.Uint32(binary.LittleEndian.Uint32(b))
	case *memio.Uint64:
		*v = memio.Uint64(binary.LittleEndian.Uint64(b))
	default:
		return fmt.Errorf("unsupported access of %d bytes", size)
	}
	return nil
}
