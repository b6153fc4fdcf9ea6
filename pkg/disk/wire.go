// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package disk

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/xaionaro-go/bytesextra"
)

// INT 13h extension constants.
const (
	Vector = 0x13

	FunctionCheckExtensions uint8 = 0x41
	FunctionExtendedRead    uint8 = 0x42
	FunctionGetParameters   uint8 = 0x48

	// ExtensionsSignature goes in BX; a BIOS with extensions swaps it.
	ExtensionsSignature uint16 = 0x55AA
	ExtensionsPresent   uint16 = 0xAA55

	// ExtensionFixedDisk is the CX bit for the packet based access
	// functions (42h-44h, 47h, 48h).
	ExtensionFixedDisk uint16 = 1 << 0

	DriveParametersSize = 0x1A
	AddressPacketSize   = 0x10
)

// DriveParameters is the result buffer of AH=48h.
type DriveParameters struct {
	Size            uint16
	Flags           uint16
	Cylinders       uint32
	Heads           uint32
	SectorsPerTrack uint32
	TotalSectors    uint64
	SectorSize      uint16
}

// AddressPacket is the disk address packet of AH=42h.
type AddressPacket struct {
	Size          uint8
	Reserved      uint8
	Count         uint16
	BufferOffset  uint16
	BufferSegment uint16
	LBA           uint64
}

func (p AddressPacket) String() string {
	return fmt.Sprintf("lba %d count %d -> %04x:%04x", p.LBA, p.Count, p.BufferSegment, p.BufferOffset)
}

// Put writes v into b in little endian order.
func Put(b []byte, v any) error {
	return binary.Write(bytesextra.NewReadWriteSeeker(b), binary.LittleEndian, v)
}

// Get reads v from b in little endian order.
func Get(b []byte, v any) error {
	err := binary.Read(bytesextra.NewReadWriteSeeker(b), binary.LittleEndian, v)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return fmt.Errorf("buffer of %d bytes too short for %T", len(b), v)
	}
	return err
}
