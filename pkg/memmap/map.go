// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memmap maintains a physical memory map as a sorted array of
// non-overlapping descriptors.
//
// Descriptors are added one at a time. When a new descriptor overlaps an
// existing one, a winner is chosen and the loser is trimmed, possibly split
// in two:
//
//   - a forced add always wins;
//   - otherwise an existing Conventional range always yields;
//   - otherwise a new firmware owned range (see Type.FirmwareOwned) wins;
//   - otherwise the existing range wins.
//
// Trimming can leave holes (descriptors with no pages) in the array; Compact
// removes them.
package memmap

import (
	"errors"
	"fmt"
	"math/bits"

	pbytes "github.com/linuxboot/pcatfw/pkg/bytes"
)

// ErrBufferTooSmall is returned when a descriptor does not fit into the
// map's fixed capacity.
var ErrBufferTooSmall = errors.New("memory map buffer too small")

// Map is a memory map stored in a caller owned, fixed capacity array.
type Map struct {
	entries  []Descriptor
	pageSize uint64
}

// Option configures a Map.
type Option func(*Map)

// WithPageSize sets the size of one page of NumberOfPages. It must be a
// power of two; the default is PageSize.
func WithPageSize(size uint64) Option {
	return func(m *Map) {
		if size == 0 || bits.OnesCount64(size) != 1 {
			panic(fmt.Sprintf("memmap: page size %#x is not a power of two", size))
		}
		m.pageSize = size
	}
}

// NewMap returns an empty map storing its descriptors in buf. The capacity of
// the map is cap(buf); the map never grows beyond it.
func NewMap(buf []Descriptor, opts ...Option) *Map {
	m := &Map{
		entries:  buf[:0],
		pageSize: PageSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PageSize returns the size of one page in bytes.
func (m *Map) PageSize() uint64 {
	return m.pageSize
}

// Len returns the number of entries, holes included.
func (m *Map) Len() int {
	return len(m.entries)
}

// Cap returns the capacity of the map.
func (m *Map) Cap() int {
	return cap(m.entries)
}

// Descriptors returns the entries of the map, holes included. The slice
// aliases the caller's buffer.
func (m *Map) Descriptors() []Descriptor {
	return m.entries
}

// Reset empties the map.
func (m *Map) Reset() {
	m.entries = m.entries[:0]
}

// Descriptor builds a descriptor of length bytes using the map's page size.
func (m *Map) Descriptor(t Type, start, length uint64, attr Attribute) Descriptor {
	return Descriptor{
		Type:          t,
		PhysicalStart: start,
		NumberOfPages: pagesUp(length, m.pageSize),
		Attribute:     attr,
	}
}

// Start returns the first address of d.
func (m *Map) Start(d Descriptor) uint64 {
	return d.PhysicalStart
}

// End returns the first address past d, using the map's page size.
func (m *Map) End(d Descriptor) uint64 {
	return d.PhysicalStart + d.NumberOfPages*m.pageSize
}

// Range returns d as a byte range using the map's page size.
func (m *Map) Range(d Descriptor) pbytes.Range {
	return pbytes.Range{Offset: d.PhysicalStart, Length: d.NumberOfPages * m.pageSize}
}

// pagesIn returns how many whole pages fit in length bytes. Trimmed
// remainders are rounded down so that they never reach into the winner.
func (m *Map) pagesIn(length uint64) uint64 {
	return length / m.pageSize
}

// InsertAt inserts d at index, shifting the entries at and after index up by
// one slot.
func (m *Map) InsertAt(index int, d Descriptor) error {
	if index < 0 || index > len(m.entries) {
		return fmt.Errorf("insert index %d out of range [0, %d]", index, len(m.entries))
	}
	if len(m.entries) == cap(m.entries) {
		return fmt.Errorf("%w: capacity %d", ErrBufferTooSmall, cap(m.entries))
	}
	m.entries = m.entries[:len(m.entries)+1]
	copy(m.entries[index+1:], m.entries[index:])
	m.entries[index] = d
	return nil
}

// newWins decides an overlap between an existing entry and a new descriptor.
func newWins(existing, d Descriptor, force bool) bool {
	return force || existing.Type == Conventional || d.Type.FirmwareOwned()
}

// Add merges d into the map. If force is set d takes precedence over
// everything it overlaps; see the package documentation for the rules used
// otherwise. Adding a hole is a no-op. The only failure is running out of
// capacity, in which case the map may already hold part of d.
func (m *Map) Add(d Descriptor, force bool) error {
	if d.IsHole() {
		return nil
	}

	for i := 0; i < len(m.entries); i++ {
		e := &m.entries[i]
		if e.IsHole() {
			continue
		}

		eStart, eEnd := m.Start(*e), m.End(*e)
		nStart, nEnd := m.Start(d), m.End(d)
		if eEnd <= nStart {
			continue
		}
		if eStart >= nEnd {
			return m.InsertAt(i, d)
		}

		if newWins(*e, d, force) {
			switch {
			case eStart == nStart && eEnd == nEnd:
				*e = d
				return nil

			case eStart < nStart && nEnd < eEnd:
				// d sits strictly inside e: keep the leading part in
				// place and insert the trailing part behind it.
				trailing := *e
				trailing.PhysicalStart = nEnd
				trailing.NumberOfPages = m.pagesIn(eEnd - nEnd)
				if trailing.NumberOfPages != 0 {
					if err := m.InsertAt(i+1, trailing); err != nil {
						return err
					}
				}
				e.NumberOfPages = m.pagesIn(nStart - eStart)

			case nStart <= eStart && eEnd <= nEnd:
				e.NumberOfPages = 0

			case eStart < nStart:
				e.NumberOfPages = m.pagesIn(nStart - eStart)

			default:
				e.PhysicalStart = nEnd
				e.NumberOfPages = m.pagesIn(eEnd - nEnd)
			}
		} else {
			switch {
			case nStart < eStart && eEnd < nEnd:
				// e sits strictly inside d: place the leading part of
				// d now and carry on with the trailing part.
				leading := d
				leading.NumberOfPages = m.pagesIn(eStart - nStart)
				if leading.NumberOfPages != 0 {
					if err := m.InsertAt(i, leading); err != nil {
						return err
					}
					i++
				}
				d.PhysicalStart = eEnd
				d.NumberOfPages = m.pagesIn(nEnd - eEnd)
				if d.IsHole() {
					return nil
				}
				continue

			case eStart <= nStart && nEnd <= eEnd:
				return nil

			case nStart < eStart:
				d.NumberOfPages = m.pagesIn(eStart - nStart)

			default:
				d.PhysicalStart = eEnd
				d.NumberOfPages = m.pagesIn(nEnd - eEnd)
			}
			if d.IsHole() {
				return nil
			}
		}

		if !e.IsHole() && e.PhysicalStart >= d.PhysicalStart {
			return m.InsertAt(i, d)
		}
	}

	return m.InsertAt(len(m.entries), d)
}

// Compact removes all holes and returns the number of live entries.
func (m *Map) Compact() int {
	live := m.entries[:0]
	for _, d := range m.entries {
		if !d.IsHole() {
			live = append(live, d)
		}
	}
	for i := len(live); i < len(m.entries); i++ {
		m.entries[i] = Descriptor{}
	}
	m.entries = live
	return len(m.entries)
}

// Coalesce compacts the map and merges neighbouring entries of the same type
// and attributes. It returns the number of entries left.
func (m *Map) Coalesce() int {
	m.Compact()
	if len(m.entries) < 2 {
		return len(m.entries)
	}
	merged := m.entries[:1]
	for _, d := range m.entries[1:] {
		last := &merged[len(merged)-1]
		if last.Type == d.Type && last.Attribute == d.Attribute && m.End(*last) == d.PhysicalStart {
			last.NumberOfPages += d.NumberOfPages
			continue
		}
		merged = append(merged, d)
	}
	for i := len(merged); i < len(m.entries); i++ {
		m.entries[i] = Descriptor{}
	}
	m.entries = merged
	return len(m.entries)
}

// Lookup returns the live descriptor covering addr.
func (m *Map) Lookup(addr uint64) (Descriptor, bool) {
	for _, d := range m.entries {
		if !d.IsHole() && m.Range(d).Contains(addr) {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Coverage returns the merged set of address ranges covered by live entries.
func (m *Map) Coverage() pbytes.Ranges {
	var r pbytes.Ranges
	for _, d := range m.entries {
		if !d.IsHole() {
			r = append(r, m.Range(d))
		}
	}
	r.SortAndMerge()
	return r
}

// TotalPages returns the number of pages of type t.
func (m *Map) TotalPages(t Type) uint64 {
	var total uint64
	for _, d := range m.entries {
		if d.Type == t {
			total += d.NumberOfPages
		}
	}
	return total
}

// MarshalBinary encodes the live entries as consecutive
// EFI_MEMORY_DESCRIPTORs.
func (m *Map) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, len(m.entries)*DescriptorSize)
	for _, d := range m.entries {
		if d.IsHole() {
			continue
		}
		b, err := d.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}
