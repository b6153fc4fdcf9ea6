// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package realmode

import (
	"fmt"
	"sync/atomic"
)

// Fixed low-memory reservations used by the call bridge. All three pages sit
// below 64 KiB so that segment 0 reaches every byte of them.
const (
	PageSize = 0x1000

	CodePageAddress  uint32 = 0x1000
	DataPageAddress  uint32 = 0x2000
	StackPageAddress uint32 = 0x3000

	// StackMargin is left unused at the top of the stack page.
	StackMargin = 0x10
)

// Page is one scratch page of the arena.
type Page struct {
	// Address is the physical (and real mode linear) address of the page.
	Address uint32
	// Data aliases the page contents.
	Data []byte
}

// Contains returns true if [linear, linear+n) lies inside the page.
func (p Page) Contains(linear uint32, n int) bool {
	if n < 0 || linear < p.Address {
		return false
	}
	return uint64(linear-p.Address)+uint64(n) <= uint64(len(p.Data))
}

// Arena owns the three scratch pages of the real mode call bridge. Only one
// Lease may exist at a time, which is what makes the bridge non-reentrant.
type Arena struct {
	busy  atomic.Bool
	code  [PageSize]byte
	data  [PageSize]byte
	stack [PageSize]byte
}

// NewArena returns an arena backing the fixed code, data and stack pages.
func NewArena() *Arena {
	return &Arena{}
}

// Lease is the exclusive right to use an Arena's pages.
type Lease struct {
	arena    *Arena
	released atomic.Bool
}

// Acquire takes the arena. It fails with ErrArenaBusy while another lease is
// outstanding. The data and stack pages are cleared.
func (a *Arena) Acquire() (*Lease, error) {
	if !a.busy.CompareAndSwap(false, true) {
		return nil, ErrArenaBusy
	}
	a.data = [PageSize]byte{}
	a.stack = [PageSize]byte{}
	return &Lease{arena: a}, nil
}

// Busy reports whether a lease is outstanding.
func (a *Arena) Busy() bool {
	return a.busy.Load()
}

// Release gives the arena back. Releasing twice is harmless.
func (l *Lease) Release() {
	if l == nil || !l.released.CompareAndSwap(false, true) {
		return
	}
	l.arena.busy.Store(false)
}

// Released reports whether Release has been called.
func (l *Lease) Released() bool {
	return l.released.Load()
}

func (l *Lease) pages() (code, data, stack Page, err error) {
	if l.Released() {
		return Page{}, Page{}, Page{}, fmt.Errorf("lease: %w", ErrClosed)
	}
	a := l.arena
	return Page{Address: CodePageAddress, Data: a.code[:]},
		Page{Address: DataPageAddress, Data: a.data[:]},
		Page{Address: StackPageAddress, Data: a.stack[:]},
		nil
}
