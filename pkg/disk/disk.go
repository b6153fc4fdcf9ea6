// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disk reads BIOS drives through the INT 13h extensions.
package disk

import (
	"fmt"

	"github.com/linuxboot/pcatfw/pkg/log"
	"github.com/linuxboot/pcatfw/pkg/realmode"
)

// CheckExtensions verifies that the BIOS supports the packet interface for
// drive.
func CheckExtensions(exec realmode.Executor, arena *realmode.Arena, drive uint8) error {
	ctx, err := realmode.NewBiosCallContext(arena, Vector)
	if err != nil {
		return err
	}
	defer ctx.Close()

	ctx.SetAH(FunctionCheckExtensions)
	ctx.SetBX(ExtensionsSignature)
	ctx.Edx = uint32(drive)
	// AH returns the extension version, so the status convention does not
	// apply here.
	if err := ctx.Run(exec); err != nil {
		return err
	}
	if ctx.Carry() || ctx.BX() != ExtensionsPresent {
		return fmt.Errorf("drive %#02x: INT 13h extensions: %w", drive, realmode.ErrUnsupported)
	}
	if uint16(ctx.Ecx)&ExtensionFixedDisk == 0 {
		return fmt.Errorf("drive %#02x: packet access: %w", drive, realmode.ErrUnsupported)
	}
	log.Debugf("disk: drive %#02x extensions version %#02x", drive, ctx.AH())
	return nil
}

// GetDriveParameters returns the sector count and sector size of drive.
// A drive the BIOS does not know is reported as realmode.ErrNotFound.
func GetDriveParameters(exec realmode.Executor, arena *realmode.Arena, drive uint8) (uint64, uint32, error) {
	ctx, err := realmode.NewBiosCallContext(arena, Vector)
	if err != nil {
		return 0, 0, err
	}
	defer ctx.Close()

	buf := ctx.Data.Data[:DriveParametersSize]
	if err := Put(buf, DriveParameters{Size: DriveParametersSize}); err != nil {
		return 0, 0, err
	}
	ctx.SetAH(FunctionGetParameters)
	ctx.Edx = uint32(drive)
	ctx.Ds = realmode.Segment(ctx.Data.Address)
	ctx.Esi = uint32(realmode.Offset(ctx.Data.Address))
	if err := ctx.Execute(exec); err != nil {
		return 0, 0, fmt.Errorf("drive %#02x: %w: %v", drive, realmode.ErrNotFound, err)
	}

	var params DriveParameters
	if err := Get(buf, &params); err != nil {
		return 0, 0, err
	}
	return params.TotalSectors, uint32(params.SectorSize), nil
}

// MaxTransfer returns how many sectors of sectorSize bytes fit in one
// transfer through the bounce page.
func MaxTransfer(sectorSize uint32) int {
	if sectorSize == 0 {
		return 0
	}
	return realmode.PageSize / int(sectorSize)
}

// ReadSectors reads count sectors starting at lba into buf, which must hold
// exactly count sectors. The transfer is bounced through the data page, so
// at most one page worth of sectors can be read per call. BIOS failures are
// reported as realmode.ErrDeviceError.
func ReadSectors(exec realmode.Executor, arena *realmode.Arena, drive uint8, lba uint64, count int, buf []byte) error {
	if count <= 0 || len(buf)%count != 0 {
		return fmt.Errorf("buffer of %d bytes does not hold %d whole sectors", len(buf), count)
	}
	if len(buf) > realmode.PageSize || count > 0x7f {
		return fmt.Errorf("transfer of %d sectors (%d bytes) is larger than the bounce page", count, len(buf))
	}

	ctx, err := realmode.NewBiosCallContext(arena, Vector)
	if err != nil {
		return err
	}
	defer ctx.Close()

	// The packet lives on the stack, right below the initial stack pointer.
	ctx.Esp -= AddressPacketSize
	packetAddr := ctx.Esp
	packet, err := ctx.Memory(packetAddr, AddressPacketSize)
	if err != nil {
		return err
	}
	if err := Put(packet, AddressPacket{
		Size:          AddressPacketSize,
		Count:         uint16(count),
		BufferOffset:  realmode.Offset(ctx.Data.Address),
		BufferSegment: realmode.Segment(ctx.Data.Address),
		LBA:           lba,
	}); err != nil {
		return err
	}

	ctx.SetAH(FunctionExtendedRead)
	ctx.Edx = uint32(drive)
	ctx.Ds = realmode.Segment(packetAddr)
	ctx.Esi = uint32(realmode.Offset(packetAddr))
	if err := ctx.Execute(exec); err != nil {
		return fmt.Errorf("drive %#02x lba %d: %w: %v", drive, lba, realmode.ErrDeviceError, err)
	}

	copy(buf, ctx.Data.Data[:len(buf)])
	return nil
}
