// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package biosemu

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/linuxboot/pcatfw/pkg/compression"
	"github.com/linuxboot/pcatfw/pkg/disk"
	"github.com/linuxboot/pcatfw/pkg/e820"
	"github.com/linuxboot/pcatfw/pkg/memmap"
	"github.com/linuxboot/pcatfw/pkg/realmode"
)

// DefaultSectorSize is used for scenario disks that do not set one.
const DefaultSectorSize = 512

// Hex is an integer that may be written in JSON either as a number or as a
// string in any base strconv understands, such as "0x9fc00".
type Hex uint64

// UnmarshalJSON implements json.Unmarshaler.
func (h *Hex) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n uint64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("%s is neither a number nor a numeric string", b)
		}
		*h = Hex(n)
		return nil
	}
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return err
	}
	*h = Hex(n)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (h Hex) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("%#x", uint64(h)))
}

// Range is one E820 entry of a scenario.
type Range struct {
	Base   Hex    `json:"base"`
	Length Hex    `json:"length"`
	Type   uint32 `json:"type"`
}

// DiskSpec describes a scenario disk. Without an image the disk holds a
// PatternImage.
type DiskSpec struct {
	Drive      Hex    `json:"drive"`
	Sectors    Hex    `json:"sectors,omitempty"`
	SectorSize uint32 `json:"sector_size,omitempty"`
	Image      []byte `json:"image,omitempty"`
}

// Scenario describes a simulated machine.
type Scenario struct {
	Name            string     `json:"name,omitempty"`
	E820            []Range    `json:"e820"`
	E820Unsupported bool       `json:"e820_unsupported,omitempty"`
	E820FailAfter   int        `json:"e820_fail_after,omitempty"`
	Disks           []DiskSpec `json:"disks,omitempty"`
	BDA             *BDASpec   `json:"bda,omitempty"`
}

// BDASpec describes the low memory words of the BIOS data area.
type BDASpec struct {
	EBDASegment   Hex `json:"ebda_segment"`
	BaseMemoryKiB Hex `json:"base_memory_kib"`
}

// ParseScenario decodes a JSON scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("unable to parse scenario: %w", err)
	}
	return &s, nil
}

// LoadScenario reads a scenario file, decompressing it first if its
// extension names a compression scheme.
func LoadScenario(path string) (*Scenario, error) {
	data, err := compression.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = compression.TrimExtension(path)
	}
	return s, nil
}

// RawEntries returns the E820 entries of the scenario.
func (s *Scenario) RawEntries() []e820.RawEntry {
	entries := make([]e820.RawEntry, 0, len(s.E820))
	for _, r := range s.E820 {
		entries = append(entries, e820.NewRawEntry(uint64(r.Base), uint64(r.Length), r.Type))
	}
	return entries
}

// Machine builds a machine serving the scenario's memory map on INT 15h and
// its disks on INT 13h.
func (s *Scenario) Machine() (*Machine, error) {
	m := NewMachine()
	m.Handle(e820.Vector, &E820Service{
		Entries:     s.RawEntries(),
		Unsupported: s.E820Unsupported,
		FailAfter:   s.E820FailAfter,
	})

	disks := &DiskService{}
	for _, spec := range s.Disks {
		d, err := spec.disk()
		if err != nil {
			return nil, err
		}
		disks.Disks = append(disks.Disks, d)
	}
	m.Handle(disk.Vector, disks)
	return m, nil
}

func (spec DiskSpec) disk() (*Disk, error) {
	if spec.Drive > 0xff {
		return nil, fmt.Errorf("drive number %#x out of range", uint64(spec.Drive))
	}
	ss := spec.SectorSize
	if ss == 0 {
		ss = DefaultSectorSize
	}
	if ss&(ss-1) != 0 || ss > 0x1000 {
		return nil, fmt.Errorf("drive %#x: invalid sector size %d", uint64(spec.Drive), ss)
	}
	d := &Disk{
		Number:     uint8(spec.Drive),
		Sectors:    uint64(spec.Sectors),
		SectorSize: ss,
		Image:      PatternImage{SectorSize: ss},
	}
	if len(spec.Image) > 0 {
		d.Image = bytes.NewReader(spec.Image)
		if d.Sectors == 0 {
			d.Sectors = (uint64(len(spec.Image)) + uint64(ss) - 1) / uint64(ss)
		}
	}
	if d.Sectors == 0 {
		return nil, fmt.Errorf("drive %#x: no sectors", uint64(spec.Drive))
	}
	return d, nil
}

// MemoryMap boots the scenario's machine far enough to collect its memory
// map into m.
func (s *Scenario) MemoryMap(m *memmap.Map, allowLowMemoryOnly bool) (int, error) {
	machine, err := s.Machine()
	if err != nil {
		return 0, err
	}
	c := &e820.Collector{
		Arena:              realmode.NewArena(),
		Executor:           machine,
		AllowLowMemoryOnly: allowLowMemoryOnly,
	}
	return c.Collect(m)
}
