// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package e820

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"

	"github.com/linuxboot/pcatfw/pkg/memmap"
)

// INT 15h AX=E820h "Query System Address Map" constants.
const (
	Vector    = 0x15
	Function  = 0xE820
	Signature = 0x534D4150 // 'SMAP'

	// BufferSize is the size of the buffer offered to the BIOS. ACPI 3.0
	// BIOSes append 4 bytes of extended attributes; only EntrySize bytes
	// are used.
	BufferSize = 24
	EntrySize  = 20
)

// BIOS address range types.
const (
	TypeUsable          uint32 = 1
	TypeReserved        uint32 = 2
	TypeACPIReclaimable uint32 = 3
	TypeACPINVS         uint32 = 4
	TypeBad             uint32 = 5
)

// RawEntry is one address range descriptor as written by the BIOS.
type RawEntry struct {
	BaseLow    uint32
	BaseHigh   uint32
	LengthLow  uint32
	LengthHigh uint32
	Type       uint32
}

// NewRawEntry builds a raw entry from 64-bit base and length.
func NewRawEntry(base, length uint64, typ uint32) RawEntry {
	return RawEntry{
		BaseLow:    uint32(base),
		BaseHigh:   uint32(base >> 32),
		LengthLow:  uint32(length),
		LengthHigh: uint32(length >> 32),
		Type:       typ,
	}
}

// Base returns the 64-bit base address.
func (e RawEntry) Base() uint64 {
	return uint64(e.BaseHigh)<<32 | uint64(e.BaseLow)
}

// Length returns the 64-bit length.
func (e RawEntry) Length() uint64 {
	return uint64(e.LengthHigh)<<32 | uint64(e.LengthLow)
}

func (e RawEntry) String() string {
	return fmt.Sprintf("[%#016x, %#016x) type %d (%s)", e.Base(), e.Base()+e.Length(), e.Type, typeName(e.Type))
}

// MarshalBinary encodes the entry in the 20 byte BIOS layout.
func (e RawEntry) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes the 20 byte BIOS layout.
func (e *RawEntry) UnmarshalBinary(data []byte) error {
	if len(data) < EntrySize {
		return fmt.Errorf("e820 entry too short: %d bytes, want %d", len(data), EntrySize)
	}
	return binary.Read(bytes.NewReader(data[:EntrySize]), binary.LittleEndian, e)
}

// Check returns every structural problem of the entry.
func (e RawEntry) Check() error {
	var result *multierror.Error
	if e.Length() == 0 {
		result = multierror.Append(result, fmt.Errorf("zero length"))
	}
	switch {
	case e.Base()+e.Length() < e.Base():
		result = multierror.Append(result, fmt.Errorf("range wraps around the address space"))
	case e.Length() != 0 && pagesToEnd(e.Base()) < memmap.NewDescriptor(0, 0, e.Length(), 0).NumberOfPages:
		result = multierror.Append(result, fmt.Errorf("range wraps around the address space once rounded up to pages"))
	}
	return result.ErrorOrNil()
}

// pagesToEnd returns how many whole pages fit between base and the top of
// the address space.
func pagesToEnd(base uint64) uint64 {
	return (math.MaxUint64 - base) / memmap.PageSize
}

func typeName(typ uint32) string {
	switch typ {
	case TypeUsable:
		return "usable"
	case TypeReserved:
		return "reserved"
	case TypeACPIReclaimable:
		return "ACPI reclaimable"
	case TypeACPINVS:
		return "ACPI NVS"
	case TypeBad:
		return "bad"
	}
	return "unknown"
}

// TranslateType maps a BIOS range type onto a memory type. Unknown types
// report false and are meant to be skipped.
func TranslateType(typ uint32) (memmap.Type, bool) {
	switch typ {
	case TypeUsable:
		return memmap.Conventional, true
	case TypeReserved:
		return memmap.RuntimeServicesData, true
	case TypeACPIReclaimable:
		return memmap.ACPIReclaim, true
	case TypeACPINVS:
		return memmap.ACPINVS, true
	case TypeBad:
		return memmap.Unusable, true
	}
	return 0, false
}

// Descriptor translates the entry into a memory descriptor.
func (e RawEntry) Descriptor() (memmap.Descriptor, bool) {
	t, ok := TranslateType(e.Type)
	if !ok {
		return memmap.Descriptor{}, false
	}
	return memmap.NewDescriptor(t, e.Base(), e.Length(), 0), true
}
