// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package biosemu

import (
	"encoding/binary"

	"github.com/xaionaro-go/bytesextra"

	"github.com/linuxboot/pcatfw/pkg/e820"
	"github.com/linuxboot/pcatfw/pkg/realmode"
)

// E820Service serves INT 15h, AX=E820h from a fixed list of entries. The
// continuation value in EBX is the index of the next entry.
type E820Service struct {
	Entries []e820.RawEntry

	// Unsupported makes every call fail with CF set and EAX untouched.
	Unsupported bool
	// FailAfter makes the n-th call, counting from 1, fail with CF set.
	FailAfter int
	// BadSignature returns a wrong value in EAX.
	BadSignature bool
	// CarryAtEnd keeps EBX nonzero after the last entry and reports the end
	// of the list with CF on the next call instead.
	CarryAtEnd bool

	calls int
}

// Calls returns how many E820 calls were served.
func (s *E820Service) Calls() int {
	return s.calls
}

// ServeBIOS implements Handler.
func (s *E820Service) ServeBIOS(ctx *realmode.CallContext) {
	if ctx.Eax != e820.Function {
		Fail(ctx, StatusUnsupported)
		return
	}
	s.calls++
	if s.Unsupported || ctx.Edx != e820.Signature {
		ctx.SetCarry(true)
		return
	}

	ctx.Eax = e820.Signature
	if s.BadSignature {
		ctx.Eax = ^uint32(e820.Signature)
	}
	if s.FailAfter > 0 && s.calls >= s.FailAfter {
		ctx.SetCarry(true)
		return
	}

	idx := int(ctx.Ebx)
	if idx >= len(s.Entries) || ctx.Ecx < e820.EntrySize {
		ctx.SetCarry(true)
		return
	}
	buf, err := ctx.SegmentMemory(ctx.Es, ctx.DI(), e820.EntrySize)
	if err != nil {
		ctx.SetCarry(true)
		return
	}
	if err := binary.Write(bytesextra.NewReadWriteSeeker(buf), binary.LittleEndian, s.Entries[idx]); err != nil {
		ctx.SetCarry(true)
		return
	}

	next := idx + 1
	if next == len(s.Entries) && !s.CarryAtEnd {
		next = 0
	}
	ctx.Ebx = uint32(next)
	ctx.Ecx = e820.EntrySize
	ctx.SetCarry(false)
}
