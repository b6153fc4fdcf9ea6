// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package disk

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/linuxboot/pcatfw/pkg/realmode"
)

// Drive is a BIOS drive read through the INT 13h extensions.
type Drive struct {
	Executor realmode.Executor
	Arena    *realmode.Arena

	Number     uint8
	Sectors    uint64
	SectorSize uint32
}

var _ io.ReaderAt = (*Drive)(nil)

// OpenDrive checks for extension support and queries the geometry of drive.
func OpenDrive(exec realmode.Executor, arena *realmode.Arena, number uint8) (*Drive, error) {
	if err := CheckExtensions(exec, arena, number); err != nil {
		return nil, err
	}
	sectors, sectorSize, err := GetDriveParameters(exec, arena, number)
	if err != nil {
		return nil, err
	}
	if sectorSize == 0 || sectorSize > realmode.PageSize {
		return nil, fmt.Errorf("drive %#02x: unsupported sector size %d", number, sectorSize)
	}
	return &Drive{
		Executor:   exec,
		Arena:      arena,
		Number:     number,
		Sectors:    sectors,
		SectorSize: sectorSize,
	}, nil
}

// Size returns the capacity of the drive in bytes.
func (d *Drive) Size() int64 {
	return int64(d.Sectors * uint64(d.SectorSize))
}

func (d *Drive) String() string {
	return fmt.Sprintf("drive %#02x: %d sectors of %d bytes (%s)",
		d.Number, d.Sectors, d.SectorSize, humanize.IBytes(uint64(d.Size())))
}

// ReadAt implements io.ReaderAt. Reads need not be sector aligned.
func (d *Drive) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	size := d.Size()
	if off >= size {
		return 0, io.EOF
	}

	ss := int64(d.SectorSize)
	bounce := make([]byte, MaxTransfer(d.SectorSize)*int(ss))
	n := 0
	for n < len(p) && off < size {
		lba := off / ss
		skip := off % ss
		count := int64(len(bounce)) / ss
		if left := (size - lba*ss) / ss; count > left {
			count = left
		}
		if want := (skip + int64(len(p)-n) + ss - 1) / ss; count > want {
			count = want
		}
		chunk := bounce[:count*ss]
		if err := ReadSectors(d.Executor, d.Arena, d.Number, uint64(lba), int(count), chunk); err != nil {
			return n, err
		}
		copied := copy(p[n:], chunk[skip:])
		n += copied
		off += int64(copied)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
