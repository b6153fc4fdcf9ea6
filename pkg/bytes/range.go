// Copyright 2019 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bytes implements half-open address ranges used to reason about
// physical memory layout.
package bytes

import (
	"fmt"
	"sort"
	"strings"
)

// Range is a half-open range [Offset, Offset+Length) of addresses.
type Range struct {
	Offset uint64
	Length uint64
}

func (r Range) String() string {
	return fmt.Sprintf(`{"Offset":"0x%x", "Length":"0x%x"}`, r.Offset, r.Length)
}

// End returns the first address after the range.
func (r Range) End() uint64 {
	return r.Offset + r.Length
}

// Contains returns true if the address is covered by the range.
func (r Range) Contains(addr uint64) bool {
	return r.Offset <= addr && addr < r.End()
}

// Intersect returns True if ranges "r" and "cmp" has at least
// one byte with the same offset.
func (r Range) Intersect(cmp Range) bool {
	if r.Length == 0 || cmp.Length == 0 {
		return false
	}
	if r.End() <= cmp.Offset {
		return false
	}
	if r.Offset >= cmp.End() {
		return false
	}
	return true
}

// Exclude returns the parts of "r" which are not covered by any of "excludes".
// The result is sorted by Offset; nil is returned if nothing is left.
func (r Range) Exclude(excludes ...Range) Ranges {
	result := Ranges{r}
	for _, ex := range excludes {
		var next Ranges
		for _, cur := range result {
			if !cur.Intersect(ex) {
				next = append(next, cur)
				continue
			}
			if cur.Offset < ex.Offset {
				next = append(next, Range{
					Offset: cur.Offset,
					Length: ex.Offset - cur.Offset,
				})
			}
			if ex.End() < cur.End() {
				next = append(next, Range{
					Offset: ex.End(),
					Length: cur.End() - ex.End(),
				})
			}
		}
		result = next
	}
	return result
}

// Ranges is a helper to manipulate multiple `Range`-s at once
type Ranges []Range

func (s Ranges) String() string {
	r := make([]string, 0, len(s))
	for _, oneRange := range s {
		r = append(r, oneRange.String())
	}
	return `[` + strings.Join(r, `, `) + `]`
}

// Sort sorts the slice by field Offset
func (s Ranges) Sort() {
	sort.Slice(s, func(i, j int) bool {
		return s[i].Offset < s[j].Offset
	})
}

// MergeRanges merges ranges which overlap or touch each other.
//
// Warning: should be called only on sorted ranges!
func MergeRanges(in Ranges) Ranges {
	if len(in) < 2 {
		return in
	}

	var result Ranges
	entry := in[0]
	for _, nextEntry := range in[1:] {
		if entry.End() >= nextEntry.Offset {
			if nextEntry.End() > entry.End() {
				entry.Length = nextEntry.End() - entry.Offset
			}
			continue
		}

		result = append(result, entry)
		entry = nextEntry
	}
	result = append(result, entry)

	return result
}

// SortAndMerge sorts the slice (by field Offset) and the merges ranges
// which could be merged. Empty ranges are dropped.
func (s *Ranges) SortAndMerge() {
	nonEmpty := (*s)[:0]
	for _, r := range *s {
		if r.Length != 0 {
			nonEmpty = append(nonEmpty, r)
		}
	}
	*s = nonEmpty
	if len(*s) < 2 {
		return
	}
	s.Sort()

	*s = MergeRanges(*s)
}

// Total returns the sum of all range lengths.
func (s Ranges) Total() uint64 {
	var total uint64
	for _, r := range s {
		total += r.Length
	}
	return total
}

// IsIn returns if the address is covered by this ranges
func (s Ranges) IsIn(addr uint64) bool {
	for _, r := range s {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}
