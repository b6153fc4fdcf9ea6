// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package biosemu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/linuxboot/pcatfw/pkg/disk"
	"github.com/linuxboot/pcatfw/pkg/e820"
	"github.com/linuxboot/pcatfw/pkg/realmode"
)

func e820Call(ctx *realmode.CallContext, cursor uint32) {
	ctx.Eax = e820.Function
	ctx.Ebx = cursor
	ctx.Ecx = e820.BufferSize
	ctx.Edx = e820.Signature
	ctx.Es = realmode.Segment(ctx.Data.Address)
	ctx.Edi = uint32(realmode.Offset(ctx.Data.Address))
}

func readEntry(t *testing.T, ctx *realmode.CallContext) e820.RawEntry {
	t.Helper()
	var e e820.RawEntry
	require.NoError(t, e.UnmarshalBinary(ctx.Data.Data))
	return e
}

func TestE820Service(t *testing.T) {
	entries := []e820.RawEntry{
		e820.NewRawEntry(0, 0x9fc00, e820.TypeUsable),
		e820.NewRawEntry(0x100000, 0x7ff00000, e820.TypeUsable),
	}
	svc := &E820Service{Entries: entries}
	m := NewMachine()
	m.Handle(e820.Vector, svc)
	ctx := newContext(t, e820.Vector)

	e820Call(ctx, 0)
	require.NoError(t, ctx.Run(m))
	require.False(t, ctx.Carry())
	require.Equal(t, uint32(e820.Signature), ctx.Eax)
	require.Equal(t, uint32(e820.EntrySize), ctx.Ecx)
	require.Equal(t, uint32(1), ctx.Ebx)
	require.Equal(t, entries[0], readEntry(t, ctx))

	e820Call(ctx, ctx.Ebx)
	require.NoError(t, ctx.Run(m))
	require.False(t, ctx.Carry())
	require.Zero(t, ctx.Ebx)
	require.Equal(t, entries[1], readEntry(t, ctx))
	require.Equal(t, 2, svc.Calls())
}

func TestE820ServiceKnobs(t *testing.T) {
	entries := []e820.RawEntry{e820.NewRawEntry(0x100000, 0x100000, e820.TypeUsable)}

	t.Run("unsupported", func(t *testing.T) {
		m := NewMachine()
		m.Handle(e820.Vector, &E820Service{Entries: entries, Unsupported: true})
		ctx := newContext(t, e820.Vector)
		e820Call(ctx, 0)
		require.NoError(t, ctx.Run(m))
		require.True(t, ctx.Carry())
		require.Equal(t, uint32(e820.Function), ctx.Eax)
	})
	t.Run("bad_signature", func(t *testing.T) {
		m := NewMachine()
		m.Handle(e820.Vector, &E820Service{Entries: entries, BadSignature: true})
		ctx := newContext(t, e820.Vector)
		e820Call(ctx, 0)
		require.NoError(t, ctx.Run(m))
		require.NotEqual(t, uint32(e820.Signature), ctx.Eax)
	})
	t.Run("fail_after", func(t *testing.T) {
		m := NewMachine()
		m.Handle(e820.Vector, &E820Service{Entries: entries, FailAfter: 1})
		ctx := newContext(t, e820.Vector)
		e820Call(ctx, 0)
		require.NoError(t, ctx.Run(m))
		require.True(t, ctx.Carry())
		require.Equal(t, uint32(e820.Signature), ctx.Eax)
	})
	t.Run("carry_at_end", func(t *testing.T) {
		m := NewMachine()
		m.Handle(e820.Vector, &E820Service{Entries: entries, CarryAtEnd: true})
		ctx := newContext(t, e820.Vector)
		e820Call(ctx, 0)
		require.NoError(t, ctx.Run(m))
		require.False(t, ctx.Carry())
		require.Equal(t, uint32(1), ctx.Ebx)
		e820Call(ctx, ctx.Ebx)
		require.NoError(t, ctx.Run(m))
		require.True(t, ctx.Carry())
	})
	t.Run("other_function", func(t *testing.T) {
		m := NewMachine()
		m.Handle(e820.Vector, &E820Service{Entries: entries})
		ctx := newContext(t, e820.Vector)
		ctx.Eax = 0xe801
		err := ctx.Execute(m)
		require.ErrorIs(t, err, realmode.ErrFirmware)
	})
}

func TestDiskService(t *testing.T) {
	svc := &DiskService{Disks: []*Disk{{
		Number:     0x80,
		Sectors:    2048,
		SectorSize: 512,
		Image:      PatternImage{SectorSize: 512},
	}}}
	m := NewMachine()
	m.Handle(disk.Vector, svc)

	t.Run("extensions", func(t *testing.T) {
		ctx := newContext(t, disk.Vector)
		ctx.SetAH(disk.FunctionCheckExtensions)
		ctx.SetBX(disk.ExtensionsSignature)
		ctx.Edx = 0x80
		require.NoError(t, ctx.Run(m))
		require.False(t, ctx.Carry())
		require.Equal(t, disk.ExtensionsPresent, ctx.BX())
	})
	t.Run("unknown_drive", func(t *testing.T) {
		ctx := newContext(t, disk.Vector)
		ctx.SetAH(disk.FunctionGetParameters)
		ctx.Edx = 0x81
		err := ctx.Execute(m)
		var biosErr *realmode.BiosError
		require.ErrorAs(t, err, &biosErr)
		require.Equal(t, StatusInvalidFunction, biosErr.Status)
	})
	t.Run("read_out_of_range", func(t *testing.T) {
		ctx := newContext(t, disk.Vector)
		packet := ctx.Data.Data[0x800:]
		require.NoError(t, disk.Put(packet, disk.AddressPacket{
			Size:          disk.AddressPacketSize,
			Count:         2,
			BufferSegment: realmode.Segment(ctx.Data.Address),
			LBA:           2047,
		}))
		ctx.SetAH(disk.FunctionExtendedRead)
		ctx.Edx = 0x80
		ctx.Ds = realmode.Segment(ctx.Data.Address + 0x800)
		ctx.Esi = 0
		err := ctx.Execute(m)
		var biosErr *realmode.BiosError
		require.ErrorAs(t, err, &biosErr)
		require.Equal(t, StatusSectorNotFound, biosErr.Status)
	})
}

func TestPatternImage(t *testing.T) {
	img := PatternImage{SectorSize: 512}
	buf := make([]byte, 1024)
	n, err := img.ReadAt(buf, 512*7)
	require.NoError(t, err)
	require.Equal(t, 1024, n)
	require.Equal(t, PatternSector(7, 512), buf[:512])
	require.Equal(t, PatternSector(8, 512), buf[512:])

	// Unaligned reads see the same bytes.
	part := make([]byte, 10)
	_, err = img.ReadAt(part, 512*7+4)
	require.NoError(t, err)
	require.Equal(t, buf[4:14], part)
}
