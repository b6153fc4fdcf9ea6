// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package integration

import (
	"encoding/json"
	"io"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/linuxboot/pcatfw/pkg/biosemu"
	pbytes "github.com/linuxboot/pcatfw/pkg/bytes"
	"github.com/linuxboot/pcatfw/pkg/disk"
	"github.com/linuxboot/pcatfw/pkg/e820"
	"github.com/linuxboot/pcatfw/pkg/memmap"
	"github.com/linuxboot/pcatfw/pkg/realmode"
)

const (
	pageSize = memmap.PageSize
	stride   = 0x10000
)

func scenarioNames(t *testing.T) ([]string, map[string]Scenario) {
	t.Helper()
	all, err := Scenarios()
	require.NoError(t, err)
	require.NotEmpty(t, all)
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, all
}

// biosRanges splits the reported entries into usable and firmware ranges.
func biosRanges(s *biosemu.Scenario) (usable, firmware pbytes.Ranges) {
	for _, e := range s.RawEntries() {
		if e.Check() != nil {
			continue
		}
		r := pbytes.Range{Offset: e.Base(), Length: e.Length()}
		switch e.Type {
		case e820.TypeUsable:
			usable = append(usable, r)
		case e820.TypeReserved, e820.TypeACPIReclaimable, e820.TypeACPINVS, e820.TypeBad:
			firmware = append(firmware, r)
		}
	}
	return usable, firmware
}

func TestMemoryMap(t *testing.T) {
	names, all := scenarioNames(t)
	for _, name := range names {
		s := all[name]
		t.Run(name, func(t *testing.T) {
			m := memmap.NewMap(make([]memmap.Descriptor, 0, 64))
			_, err := s.MemoryMap(m, false)
			if s.E820Unsupported {
				require.ErrorIs(t, err, e820.ErrNoHighMemory)
				return
			}
			require.NoError(t, err)
			require.NoError(t, m.Validate())

			if s.ExpectedMap != nil {
				got, err := json.Marshal(m)
				require.NoError(t, err)
				require.JSONEq(t, string(s.ExpectedMap), string(got))
			}

			// The first megabyte always has the same shape.
			for _, tt := range []struct {
				addr uint64
				want memmap.Type
			}{
				{0, memmap.Unusable},
				{e820.LowConventionalStart, memmap.Conventional},
				{e820.LowConventionalEnd - pageSize, memmap.Conventional},
				{e820.LowConventionalEnd, memmap.Unusable},
				{e820.LowMemoryEnd - 1, memmap.Unusable},
			} {
				d, ok := m.Lookup(tt.addr)
				require.True(t, ok, "%#x", tt.addr)
				require.Equal(t, tt.want, d.Type, "%#x", tt.addr)
			}

			usable, firmware := biosRanges(s.Scenario)

			// Firmware ranges are never handed out as free memory.
			for _, r := range firmware {
				for addr := alignUp(max(r.Offset, e820.LowMemoryEnd)); addr < r.End(); addr += pageSize {
					if d, ok := m.Lookup(addr); ok {
						require.NotEqual(t, memmap.Conventional, d.Type, "%#x in firmware range %v", addr, r)
					}
				}
			}

			// Usable memory well clear of any firmware range stays usable.
			for _, r := range usable {
				for addr := alignUp(max(r.Offset, e820.LowMemoryEnd) + pageSize); addr+2*pageSize <= r.End(); addr += stride {
					probe := pbytes.Range{Offset: addr - pageSize, Length: 3 * pageSize}
					if overlapsAny(probe, firmware) {
						continue
					}
					d, ok := m.Lookup(addr)
					require.True(t, ok, "%#x", addr)
					require.Equal(t, memmap.Conventional, d.Type, "%#x", addr)
				}
			}
		})
	}
}

func alignUp(addr uint64) uint64 {
	return (addr + pageSize - 1) &^ (pageSize - 1)
}

func overlapsAny(r pbytes.Range, set pbytes.Ranges) bool {
	for _, s := range set {
		if r.Intersect(s) {
			return true
		}
	}
	return false
}

func TestEarlyBoot(t *testing.T) {
	names, all := scenarioNames(t)
	for _, name := range names {
		s := all[name]
		if len(s.Disks) == 0 {
			continue
		}
		t.Run(name, func(t *testing.T) {
			machine, err := s.Machine()
			require.NoError(t, err)
			arena := realmode.NewArena()

			// The firmware core gets its memory map first and then looks
			// for boot drives, sharing one arena.
			buf := make([]memmap.Descriptor, 0, 64)
			descriptors, err := e820.GetMemoryMap(arena, machine, buf)
			require.NoError(t, err)
			require.NotEmpty(t, descriptors)

			for _, spec := range s.Disks {
				d, err := disk.OpenDrive(machine, arena, uint8(spec.Drive))
				require.NoError(t, err)
				require.Equal(t, uint64(spec.Sectors), d.Sectors)

				last := int64(d.Sectors) - 1
				for _, lba := range []int64{0, 1, last} {
					sector := make([]byte, d.SectorSize)
					_, err := d.ReadAt(sector, lba*int64(d.SectorSize))
					require.NoError(t, err)
					require.Equal(t, biosemu.PatternSector(uint64(lba), d.SectorSize), sector, "lba %d", lba)
				}

				_, err = d.ReadAt(make([]byte, 1), d.Size())
				require.ErrorIs(t, err, io.EOF)
			}
			require.False(t, arena.Busy())
		})
	}
}
