// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package biosemu

import (
	"encoding/binary"
	"io"

	"github.com/linuxboot/pcatfw/pkg/disk"
	"github.com/linuxboot/pcatfw/pkg/log"
	"github.com/linuxboot/pcatfw/pkg/realmode"
)

// extensionsVersion is reported in AH by the extension check (EDD 3.0).
const extensionsVersion = 0x30

// Disk is a drive attached to a DiskService.
type Disk struct {
	Number     uint8
	Sectors    uint64
	SectorSize uint32
	Image      io.ReaderAt
}

// DiskService serves the INT 13h extensions for a set of disks.
type DiskService struct {
	Disks []*Disk

	// NoExtensions makes the extension check fail for every drive.
	NoExtensions bool
}

func (s *DiskService) find(number uint8) *Disk {
	for _, d := range s.Disks {
		if d.Number == number {
			return d
		}
	}
	return nil
}

// ServeBIOS implements Handler.
func (s *DiskService) ServeBIOS(ctx *realmode.CallContext) {
	d := s.find(ctx.DL())
	if d == nil {
		Fail(ctx, StatusInvalidFunction)
		return
	}
	switch ctx.AH() {
	case disk.FunctionCheckExtensions:
		if s.NoExtensions || ctx.BX() != disk.ExtensionsSignature {
			Fail(ctx, StatusInvalidFunction)
			return
		}
		ctx.SetBX(disk.ExtensionsPresent)
		ctx.Ecx = uint32(disk.ExtensionFixedDisk)
		ctx.SetAH(extensionsVersion)
		ctx.SetCarry(false)
	case disk.FunctionGetParameters:
		s.parameters(ctx, d)
	case disk.FunctionExtendedRead:
		s.read(ctx, d)
	default:
		Fail(ctx, StatusInvalidFunction)
	}
}

func (s *DiskService) parameters(ctx *realmode.CallContext, d *Disk) {
	buf, err := ctx.SegmentMemory(ctx.Ds, ctx.SI(), disk.DriveParametersSize)
	if err != nil || binary.LittleEndian.Uint16(buf) < disk.DriveParametersSize {
		Fail(ctx, StatusInvalidFunction)
		return
	}
	params := disk.DriveParameters{
		Size:            disk.DriveParametersSize,
		TotalSectors:    d.Sectors,
		SectorSize:      uint16(d.SectorSize),
		Heads:           255,
		SectorsPerTrack: 63,
		Cylinders:       uint32(d.Sectors / (255 * 63)),
	}
	if err := disk.Put(buf, params); err != nil {
		Fail(ctx, StatusInvalidFunction)
		return
	}
	Succeed(ctx)
}

func (s *DiskService) read(ctx *realmode.CallContext, d *Disk) {
	raw, err := ctx.SegmentMemory(ctx.Ds, ctx.SI(), disk.AddressPacketSize)
	if err != nil {
		Fail(ctx, StatusInvalidFunction)
		return
	}
	var p disk.AddressPacket
	if err := disk.Get(raw, &p); err != nil || p.Size < disk.AddressPacketSize {
		Fail(ctx, StatusInvalidFunction)
		return
	}
	log.Debugf("biosemu: drive %#02x read %v", d.Number, p)

	if p.Count == 0 || p.LBA >= d.Sectors || uint64(p.Count) > d.Sectors-p.LBA {
		binary.LittleEndian.PutUint16(raw[2:], 0)
		Fail(ctx, StatusSectorNotFound)
		return
	}
	size := int(p.Count) * int(d.SectorSize)
	dst, err := ctx.SegmentMemory(p.BufferSegment, p.BufferOffset, size)
	if err != nil {
		binary.LittleEndian.PutUint16(raw[2:], 0)
		Fail(ctx, StatusInvalidFunction)
		return
	}
	if _, err := d.Image.ReadAt(dst, int64(p.LBA)*int64(d.SectorSize)); err != nil && err != io.EOF {
		binary.LittleEndian.PutUint16(raw[2:], 0)
		Fail(ctx, StatusSectorNotFound)
		return
	}
	Succeed(ctx)
}

// PatternImage is a disk image whose every sector starts with its own LBA
// as a little endian 64-bit value, followed by the low byte of the LBA
// repeated.
type PatternImage struct {
	SectorSize uint32
}

// PatternSector returns the contents of sector lba of a PatternImage.
func PatternSector(lba uint64, sectorSize uint32) []byte {
	b := make([]byte, sectorSize)
	for i := range b {
		b[i] = byte(lba)
	}
	if len(b) >= 8 {
		binary.LittleEndian.PutUint64(b, lba)
	}
	return b
}

// ReadAt implements io.ReaderAt.
func (p PatternImage) ReadAt(b []byte, off int64) (int, error) {
	ss := int64(p.SectorSize)
	for i := range b {
		pos := off + int64(i)
		lba := pos / ss
		within := pos % ss
		if within < 8 && ss >= 8 {
			b[i] = byte(uint64(lba) >> (8 * within))
		} else {
			b[i] = byte(lba)
		}
	}
	return len(b), nil
}
