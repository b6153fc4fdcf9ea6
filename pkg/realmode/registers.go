// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package realmode

import "fmt"

// EFLAGS bits relevant to BIOS calls.
const (
	FlagCarry     uint32 = 1 << 0
	FlagReserved  uint32 = 1 << 1
	FlagZero      uint32 = 1 << 6
	FlagInterrupt uint32 = 1 << 9

	// DefaultEflags is loaded into every freshly built context.
	DefaultEflags = FlagInterrupt | FlagReserved
)

// Registers is the 32-bit x86 register file transferred into real mode before
// the software interrupt and read back after it.
type Registers struct {
	Eax    uint32
	Ebx    uint32
	Ecx    uint32
	Edx    uint32
	Esi    uint32
	Edi    uint32
	Ebp    uint32
	Esp    uint32
	Eip    uint32
	Eflags uint32

	Cs uint16
	Ds uint16
	Es uint16
	Fs uint16
	Gs uint16
	Ss uint16
}

// AX returns the low 16 bits of EAX.
func (r *Registers) AX() uint16 { return uint16(r.Eax) }

// AH returns bits 8-15 of EAX, where most BIOS services report a status.
func (r *Registers) AH() uint8 { return uint8(r.Eax >> 8) }

// AL returns the low byte of EAX.
func (r *Registers) AL() uint8 { return uint8(r.Eax) }

// BX returns the low 16 bits of EBX.
func (r *Registers) BX() uint16 { return uint16(r.Ebx) }

// DL returns the low byte of EDX.
func (r *Registers) DL() uint8 { return uint8(r.Edx) }

// SI returns the low 16 bits of ESI.
func (r *Registers) SI() uint16 { return uint16(r.Esi) }

// DI returns the low 16 bits of EDI.
func (r *Registers) DI() uint16 { return uint16(r.Edi) }

// SetAX replaces the low 16 bits of EAX.
func (r *Registers) SetAX(v uint16) { r.Eax = r.Eax&^0xffff | uint32(v) }

// SetAH replaces bits 8-15 of EAX.
func (r *Registers) SetAH(v uint8) { r.Eax = r.Eax&^0xff00 | uint32(v)<<8 }

// SetBX replaces the low 16 bits of EBX.
func (r *Registers) SetBX(v uint16) { r.Ebx = r.Ebx&^0xffff | uint32(v) }

// Carry reports whether EFLAGS.CF is set.
func (r *Registers) Carry() bool { return r.Eflags&FlagCarry != 0 }

// SetCarry sets or clears EFLAGS.CF.
func (r *Registers) SetCarry(set bool) {
	if set {
		r.Eflags |= FlagCarry
	} else {
		r.Eflags &^= FlagCarry
	}
}

// Failed implements the BIOS failure convention: the carry flag is set or AH
// holds a non-zero status.
func (r *Registers) Failed() bool {
	return r.Carry() || r.AH() != 0
}

func (r Registers) String() string {
	return fmt.Sprintf("eax=%08x ebx=%08x ecx=%08x edx=%08x esi=%08x edi=%08x ebp=%08x esp=%08x "+
		"eip=%08x efl=%08x cs=%04x ds=%04x es=%04x fs=%04x gs=%04x ss=%04x",
		r.Eax, r.Ebx, r.Ecx, r.Edx, r.Esi, r.Edi, r.Ebp, r.Esp,
		r.Eip, r.Eflags, r.Cs, r.Ds, r.Es, r.Fs, r.Gs, r.Ss)
}

// Segment returns the real-mode segment of a linear address below 1 MiB,
// pairing with Offset.
func Segment(linear uint32) uint16 {
	return uint16(linear >> 4)
}

// Offset returns the offset within Segment(linear).
func Offset(linear uint32) uint16 {
	return uint16(linear & 0x0f)
}

// Linear converts a segment:offset pair into a linear address.
func Linear(segment, offset uint16) uint32 {
	return uint32(segment)<<4 + uint32(offset)
}
