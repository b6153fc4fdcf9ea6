// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package realmode implements the bridge used to call legacy BIOS services
// from protected mode firmware.
//
// A CallContext owns the three fixed scratch pages of an Arena for as long as
// it is open. The code page holds a relocated trampoline issuing one software
// interrupt; the data page is the usual target of ES:DI or DS:SI buffers and
// the stack page backs SS:SP. An Executor performs the mode switch, runs the
// interrupt and writes the resulting register file back into the context.
//
// Typical use:
//
//	ctx, err := realmode.NewBiosCallContext(arena, 0x13)
//	if err != nil {
//		return err
//	}
//	defer ctx.Close()
//	ctx.Eax = 0x4800
//	if err := ctx.Execute(executor); err != nil {
//		return err
//	}
package realmode

import (
	"fmt"
)

// Executor performs one real mode BIOS call described by a CallContext.
//
// Implementations save the current machine state, walk down to real mode,
// load the context registers, execute the context's interrupt vector, walk
// back up and store every register, including EFLAGS, into the context. They
// are not reentrant and run with interrupts masked.
type Executor interface {
	Execute(ctx *CallContext)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx *CallContext)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx *CallContext) {
	f(ctx)
}

// CallContext is a prepared BIOS call: register file plus scratch pages.
type CallContext struct {
	Registers

	Vector uint8
	Code   Page
	Data   Page
	Stack  Page

	lease *Lease
}

// NewBiosCallContext acquires the arena and prepares a context issuing the
// given interrupt vector. The caller must Close the context.
//
// A failure to relocate the trampoline means the template is malformed; it
// is reported wrapped in ErrNotFound.
func NewBiosCallContext(arena *Arena, vector uint8) (*CallContext, error) {
	lease, err := arena.Acquire()
	if err != nil {
		return nil, err
	}
	code, data, stack, err := lease.pages()
	if err != nil {
		lease.Release()
		return nil, err
	}

	patched, err := Relocate(DefaultTemplate(), code.Address, vector)
	if err != nil {
		lease.Release()
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	copy(code.Data, patched)

	ctx := &CallContext{
		Vector: vector,
		Code:   code,
		Data:   data,
		Stack:  stack,
		lease:  lease,
	}
	ctx.Eflags = DefaultEflags
	ctx.Eip = code.Address
	ctx.Esp = stack.Address + PageSize - StackMargin
	return ctx, nil
}

// Close releases the arena. The pages themselves are static reservations and
// stay where they are.
func (ctx *CallContext) Close() {
	ctx.lease.Release()
}

// Closed reports whether Close has been called.
func (ctx *CallContext) Closed() bool {
	return ctx.lease == nil || ctx.lease.Released()
}

// Run performs the call on e without interpreting the result. Services
// which return data in AH, like E820, check the registers themselves.
func (ctx *CallContext) Run(e Executor) error {
	if ctx.Closed() {
		return ErrClosed
	}
	e.Execute(ctx)
	return nil
}

// Execute runs the call on e. It returns a *BiosError if the BIOS reported a
// failure through CF or AH; the registers are updated either way.
func (ctx *CallContext) Execute(e Executor) error {
	function := ctx.AX()
	if err := ctx.Run(e); err != nil {
		return err
	}
	if ctx.Failed() {
		return &BiosError{
			Vector:   ctx.Vector,
			Function: function,
			Status:   ctx.AH(),
			Carry:    ctx.Carry(),
		}
	}
	return nil
}

// Memory returns the n bytes at linear address addr. The range must lie
// within one of the context's pages.
func (ctx *CallContext) Memory(addr uint32, n int) ([]byte, error) {
	for _, p := range []Page{ctx.Data, ctx.Stack, ctx.Code} {
		if p.Contains(addr, n) {
			off := addr - p.Address
			return p.Data[off : off+uint32(n)], nil
		}
	}
	return nil, fmt.Errorf("range [%#x, %#x) is outside of the call arena", addr, uint64(addr)+uint64(n))
}

// SegmentMemory is Memory for a segment:offset address.
func (ctx *CallContext) SegmentMemory(segment, offset uint16, n int) ([]byte, error) {
	return ctx.Memory(Linear(segment, offset), n)
}

// InterruptVector returns the vector patched into the code page. Executors
// use it to check that the code page still holds this context's trampoline.
func (ctx *CallContext) InterruptVector() (uint8, error) {
	op := DefaultTemplate().InterruptOperand
	if op >= len(ctx.Code.Data) {
		return 0, &TemplateError{Offset: op, Reason: "code page too small"}
	}
	return ctx.Code.Data[op], nil
}
