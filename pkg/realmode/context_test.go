// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package realmode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewBiosCallContext(t *testing.T) {
	arena := NewArena()
	ctx, err := NewBiosCallContext(arena, 0x13)
	require.NoError(t, err)
	defer ctx.Close()

	require.Equal(t, uint8(0x13), ctx.Vector)
	require.Equal(t, CodePageAddress, ctx.Code.Address)
	require.Equal(t, DataPageAddress, ctx.Data.Address)
	require.Equal(t, StackPageAddress, ctx.Stack.Address)
	require.Equal(t, CodePageAddress, ctx.Eip)
	require.Equal(t, StackPageAddress+PageSize-StackMargin, ctx.Esp)
	require.Equal(t, uint32(0x202), ctx.Eflags)
	for _, seg := range []uint16{ctx.Cs, ctx.Ds, ctx.Es, ctx.Fs, ctx.Gs, ctx.Ss} {
		require.Zero(t, seg)
	}

	vector, err := ctx.InterruptVector()
	require.NoError(t, err)
	require.Equal(t, uint8(0x13), vector)
}

func TestArenaIsExclusive(t *testing.T) {
	arena := NewArena()
	ctx, err := NewBiosCallContext(arena, 0x15)
	require.NoError(t, err)
	require.True(t, arena.Busy())

	_, err = NewBiosCallContext(arena, 0x10)
	require.ErrorIs(t, err, ErrArenaBusy)

	ctx.Close()
	ctx.Close()
	require.False(t, arena.Busy())
	require.True(t, ctx.Closed())
	require.ErrorIs(t, ctx.Run(ExecutorFunc(func(*CallContext) {})), ErrClosed)

	ctx2, err := NewBiosCallContext(arena, 0x10)
	require.NoError(t, err)
	defer ctx2.Close()

	// Closing the stale context must not release the new lease.
	ctx.Close()
	require.True(t, arena.Busy())
}

func TestExecuteStatus(t *testing.T) {
	for _, tt := range []struct {
		name    string
		bios    func(*CallContext)
		wantErr bool
		status  uint8
	}{
		{
			name: "success",
			bios: func(ctx *CallContext) { ctx.SetAH(0); ctx.SetCarry(false) },
		},
		{
			name:    "carry",
			bios:    func(ctx *CallContext) { ctx.SetAH(0); ctx.SetCarry(true) },
			wantErr: true,
		},
		{
			name:    "status_in_ah",
			bios:    func(ctx *CallContext) { ctx.SetAH(0x01) },
			wantErr: true,
			status:  0x01,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			ctx, err := NewBiosCallContext(NewArena(), 0x13)
			require.NoError(t, err)
			defer ctx.Close()

			ctx.Eax = 0x4800
			err = ctx.Execute(ExecutorFunc(tt.bios))
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrFirmware)
			var biosErr *BiosError
			require.True(t, errors.As(err, &biosErr))
			require.Equal(t, uint8(0x13), biosErr.Vector)
			require.Equal(t, uint16(0x4800), biosErr.Function)
			require.Equal(t, tt.status, biosErr.Status)
		})
	}
}

func TestContextMemory(t *testing.T) {
	ctx, err := NewBiosCallContext(NewArena(), 0x15)
	require.NoError(t, err)
	defer ctx.Close()

	b, err := ctx.SegmentMemory(Segment(DataPageAddress), Offset(DataPageAddress), 20)
	require.NoError(t, err)
	b[0] = 0xAA
	require.Equal(t, byte(0xAA), ctx.Data.Data[0])

	b, err = ctx.Memory(ctx.Esp-16, 16)
	require.NoError(t, err)
	require.Len(t, b, 16)

	_, err = ctx.Memory(DataPageAddress+PageSize-4, 8)
	require.Error(t, err)
	_, err = ctx.Memory(0x7c00, 1)
	require.Error(t, err)
}

func TestRegisterHelpers(t *testing.T) {
	var r Registers
	r.Eax = 0x12345678
	r.SetAX(0xE820)
	require.Equal(t, uint32(0x1234E820), r.Eax)
	r.SetAH(0x86)
	require.Equal(t, uint8(0x86), r.AH())
	require.Equal(t, uint8(0x20), r.AL())
	require.True(t, r.Failed())

	r.SetAH(0)
	require.False(t, r.Failed())
	r.SetCarry(true)
	require.True(t, r.Failed())

	require.Equal(t, uint32(0x2000), Linear(Segment(0x2000), Offset(0x2000)))
	require.Equal(t, uint32(0x12345), Linear(Segment(0x12345), Offset(0x12345)))
}
