// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memmap

import (
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"
)

// HoleError reports a hole left in a map that was expected to be compacted.
type HoleError struct {
	Index int
}

func (e *HoleError) Error() string {
	return fmt.Sprintf("descriptor %d is a hole", e.Index)
}

// OrderError reports a descriptor starting before its predecessor.
type OrderError struct {
	Index int
	Prev  Descriptor
	Next  Descriptor
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("descriptor %d (%#x) starts before descriptor %d (%#x)",
		e.Index, e.Next.PhysicalStart, e.Index-1, e.Prev.PhysicalStart)
}

// OverlapError reports two live descriptors sharing addresses.
type OverlapError struct {
	Index int
	Prev  Descriptor
	Next  Descriptor
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("descriptor %d {%v} overlaps descriptor %d {%v}",
		e.Index-1, e.Prev, e.Index, e.Next)
}

// TypeError reports a descriptor with an undefined memory type.
type TypeError struct {
	Index int
	Type  Type
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("descriptor %d has unknown type %s", e.Index, e.Type)
}

// WrapError reports a descriptor whose end lies past the top of the
// address space.
type WrapError struct {
	Index      int
	Descriptor Descriptor
}

func (e *WrapError) Error() string {
	return fmt.Sprintf("descriptor %d at %#x wraps around the address space", e.Index, e.Descriptor.PhysicalStart)
}

// Validate checks that the map is sorted and free of holes, overlaps and
// descriptors running past the top of the address space, and that it only
// uses defined types. All problems found are returned together.
func (m *Map) Validate() error {
	var result *multierror.Error
	var prev *Descriptor
	for i := range m.entries {
		d := &m.entries[i]
		if d.IsHole() {
			result = multierror.Append(result, &HoleError{Index: i})
			continue
		}
		if !d.Type.Valid() {
			result = multierror.Append(result, &TypeError{Index: i, Type: d.Type})
		}
		if d.NumberOfPages > (math.MaxUint64-d.PhysicalStart)/m.pageSize {
			result = multierror.Append(result, &WrapError{Index: i, Descriptor: *d})
		}
		if prev != nil {
			switch {
			case d.PhysicalStart < prev.PhysicalStart:
				result = multierror.Append(result, &OrderError{Index: i, Prev: *prev, Next: *d})
			case m.Range(*prev).Intersect(m.Range(*d)):
				result = multierror.Append(result, &OverlapError{Index: i, Prev: *prev, Next: *d})
			}
		}
		prev = d
	}
	return result.ErrorOrNil()
}
