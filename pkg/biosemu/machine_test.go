// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package biosemu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/linuxboot/pcatfw/pkg/realmode"
)

func newContext(t *testing.T, vector uint8) *realmode.CallContext {
	t.Helper()
	ctx, err := realmode.NewBiosCallContext(realmode.NewArena(), vector)
	require.NoError(t, err)
	t.Cleanup(ctx.Close)
	return ctx
}

func TestUnhandledVector(t *testing.T) {
	m := NewMachine()
	ctx := newContext(t, 0x1a)
	ctx.Eax = 0xb101

	err := ctx.Execute(m)
	var biosErr *realmode.BiosError
	require.ErrorAs(t, err, &biosErr)
	require.Equal(t, StatusUnsupported, biosErr.Status)
	require.True(t, biosErr.Carry)
	require.Equal(t, uint16(0xb101), biosErr.Function)
	require.ErrorIs(t, err, realmode.ErrFirmware)
}

func TestHandlerAndTrace(t *testing.T) {
	m := NewMachine()
	m.HandleFunc(0x12, func(ctx *realmode.CallContext) {
		ctx.Eax = 639
		ctx.SetCarry(false)
	})
	ctx := newContext(t, 0x12)
	require.NoError(t, ctx.Run(m))
	require.Equal(t, uint16(639), ctx.AX())

	require.Len(t, m.Trace, 1)
	require.Equal(t, uint8(0x12), m.Trace[0].Vector)
	require.Equal(t, uint16(0), m.Trace[0].In.AX())
	require.Equal(t, uint16(639), m.Trace[0].Out.AX())
	require.Equal(t, "int 12h ax=0000 -> ax=027f cf=false", m.Trace[0].String())
}

func TestNestedCallPanics(t *testing.T) {
	m := NewMachine()
	m.HandleFunc(0x15, func(ctx *realmode.CallContext) {
		m.Execute(ctx)
	})
	ctx := newContext(t, 0x15)
	require.PanicsWithValue(t, "biosemu: nested BIOS call", func() { m.Execute(ctx) })

	// The machine is usable again once the outer call unwound.
	m.HandleFunc(0x15, func(ctx *realmode.CallContext) { Succeed(ctx) })
	require.NoError(t, ctx.Execute(m))
}

func TestVectorMismatchPanics(t *testing.T) {
	m := NewMachine()
	ctx := newContext(t, 0x15)
	ctx.Code.Data[realmode.DefaultTemplate().InterruptOperand] = 0x10
	require.Panics(t, func() { m.Execute(ctx) })
	require.Empty(t, m.Trace)
}
