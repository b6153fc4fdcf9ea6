// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package biosemu is a simulated PC/AT BIOS. A Machine executes real mode
// call contexts by dispatching on their interrupt vector to Go handlers
// which read and write the context registers and scratch pages the way
// firmware would.
package biosemu

import (
	"fmt"

	"github.com/linuxboot/pcatfw/pkg/log"
	"github.com/linuxboot/pcatfw/pkg/realmode"
)

// Status codes returned in AH.
const (
	StatusInvalidFunction uint8 = 0x01
	StatusSectorNotFound  uint8 = 0x04
	StatusUnsupported     uint8 = 0x86
)

// Handler serves the calls made to one interrupt vector.
type Handler interface {
	ServeBIOS(ctx *realmode.CallContext)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx *realmode.CallContext)

// ServeBIOS implements Handler.
func (f HandlerFunc) ServeBIOS(ctx *realmode.CallContext) {
	f(ctx)
}

// Call is one entry of a Machine trace.
type Call struct {
	Vector uint8
	In     realmode.Registers
	Out    realmode.Registers
}

func (c Call) String() string {
	return fmt.Sprintf("int %02xh ax=%04x -> ax=%04x cf=%t", c.Vector, c.In.AX(), c.Out.AX(), c.Out.Carry())
}

// Machine implements realmode.Executor.
type Machine struct {
	handlers map[uint8]Handler
	running  bool

	// Trace records every call executed, in order.
	Trace []Call
}

var _ realmode.Executor = (*Machine)(nil)

// NewMachine returns a machine with no services installed. Every vector
// fails with StatusUnsupported until a handler is installed for it.
func NewMachine() *Machine {
	return &Machine{handlers: map[uint8]Handler{}}
}

// Handle installs h for vector, replacing any previous handler.
func (m *Machine) Handle(vector uint8, h Handler) {
	m.handlers[vector] = h
}

// HandleFunc installs f for vector.
func (m *Machine) HandleFunc(vector uint8, f func(ctx *realmode.CallContext)) {
	m.Handle(vector, HandlerFunc(f))
}

// Execute implements realmode.Executor. Calling it while another call is in
// progress, or with a context whose code page does not issue its vector,
// panics: both are bugs in the caller.
func (m *Machine) Execute(ctx *realmode.CallContext) {
	if m.running {
		panic("biosemu: nested BIOS call")
	}
	m.running = true
	defer func() { m.running = false }()

	vector, err := ctx.InterruptVector()
	if err != nil {
		panic(fmt.Sprintf("biosemu: %v", err))
	}
	if vector != ctx.Vector {
		panic(fmt.Sprintf("biosemu: code page issues int %02xh, context expects int %02xh", vector, ctx.Vector))
	}

	in := ctx.Registers
	if h, ok := m.handlers[vector]; ok {
		h.ServeBIOS(ctx)
	} else {
		Fail(ctx, StatusUnsupported)
	}
	call := Call{Vector: vector, In: in, Out: ctx.Registers}
	m.Trace = append(m.Trace, call)
	log.Debugf("biosemu: %v", call)
}

// Fail reports status in AH with CF set.
func Fail(ctx *realmode.CallContext, status uint8) {
	ctx.SetAH(status)
	ctx.SetCarry(true)
}

// Succeed clears AH and CF.
func Succeed(ctx *realmode.CallContext) {
	ctx.SetAH(0)
	ctx.SetCarry(false)
}
