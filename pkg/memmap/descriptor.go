// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memmap

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dustin/go-humanize"

	pbytes "github.com/linuxboot/pcatfw/pkg/bytes"
)

// PageSize is the EFI page size.
const PageSize = 0x1000

// DescriptorSize is the size of an EFI_MEMORY_DESCRIPTOR as produced by
// MarshalBinary.
const DescriptorSize = 40

// Descriptor describes one contiguous physical memory range. A descriptor
// with NumberOfPages == 0 is a hole and never considered live.
type Descriptor struct {
	Type          Type
	PhysicalStart uint64
	NumberOfPages uint64
	Attribute     Attribute
}

// efiDescriptor is the binary layout handed to the firmware core.
type efiDescriptor struct {
	Type          uint32
	_             uint32
	PhysicalStart uint64
	VirtualStart  uint64
	NumberOfPages uint64
	Attribute     uint64
}

// NewDescriptor returns a descriptor covering length bytes at start,
// rounded up to whole EFI pages.
func NewDescriptor(t Type, start, length uint64, attr Attribute) Descriptor {
	return Descriptor{
		Type:          t,
		PhysicalStart: start,
		NumberOfPages: pagesUp(length, PageSize),
		Attribute:     attr,
	}
}

func pagesUp(length, pageSize uint64) uint64 {
	pages := length / pageSize
	if length%pageSize != 0 {
		pages++
	}
	return pages
}

// IsHole reports whether the descriptor has been tombstoned.
func (d Descriptor) IsHole() bool {
	return d.NumberOfPages == 0
}

// Size returns the length of the range in bytes, assuming EFI pages.
func (d Descriptor) Size() uint64 {
	return d.NumberOfPages * PageSize
}

// End returns the first address past the range, assuming EFI pages.
func (d Descriptor) End() uint64 {
	return d.PhysicalStart + d.Size()
}

// Range returns the descriptor as a byte range, assuming EFI pages.
func (d Descriptor) Range() pbytes.Range {
	return pbytes.Range{Offset: d.PhysicalStart, Length: d.Size()}
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s [%#x, %#x) %s %s",
		d.Type, d.PhysicalStart, d.End(), humanize.IBytes(d.Size()), d.Attribute)
}

// MarshalBinary encodes the descriptor as an EFI_MEMORY_DESCRIPTOR.
func (d Descriptor) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	err := binary.Write(&buf, binary.LittleEndian, efiDescriptor{
		Type:          uint32(d.Type),
		PhysicalStart: d.PhysicalStart,
		NumberOfPages: d.NumberOfPages,
		Attribute:     uint64(d.Attribute),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes an EFI_MEMORY_DESCRIPTOR.
func (d *Descriptor) UnmarshalBinary(data []byte) error {
	if len(data) < DescriptorSize {
		return fmt.Errorf("descriptor too short: %d bytes, want %d", len(data), DescriptorSize)
	}
	var raw efiDescriptor
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &raw); err != nil {
		return err
	}
	*d = Descriptor{
		Type:          Type(raw.Type),
		PhysicalStart: raw.PhysicalStart,
		NumberOfPages: raw.NumberOfPages,
		Attribute:     Attribute(raw.Attribute),
	}
	return nil
}
