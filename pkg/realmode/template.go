// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package realmode

import (
	"encoding/binary"
	"fmt"
)

// JumpKind is the encoding of a far jump in the template.
type JumpKind uint8

// Far jump encodings. Both start with opcode 0xEA followed by the offset and
// then a 16-bit selector or segment.
const (
	// JumpFar32 is "jmp far sel16:off32" as executed by 32-bit code.
	JumpFar32 JumpKind = iota
	// JumpFar16 is "jmp far seg16:off16" as executed by 16-bit code.
	JumpFar16
)

// Len returns the instruction length in bytes.
func (k JumpKind) Len() int {
	if k == JumpFar32 {
		return 7
	}
	return 5
}

func (k JumpKind) String() string {
	switch k {
	case JumpFar32:
		return "far32"
	case JumpFar16:
		return "far16"
	}
	return fmt.Sprintf("JumpKind(%d)", uint8(k))
}

const (
	opFarJump   = 0xEA
	opInterrupt = 0xCD
)

// Selectors of the GDT the executor installs before entering the template.
const (
	Code32Selector uint16 = 0x08
	Code16Selector uint16 = 0x18
)

// Jump locates one far jump whose target must be relocated.
type Jump struct {
	Offset int
	Kind   JumpKind
}

// Template is position-dependent trampoline code together with the locations
// that have to be patched before it can run at a given base address.
type Template struct {
	Code []byte
	// InterruptOperand is the offset of the imm8 operand of the INT
	// instruction.
	InterruptOperand int
	Jumps            []Jump
}

// Relocate returns a copy of the template code patched to run at base and
// issue the software interrupt vector. Every far jump is pointed at the
// instruction that directly follows it: the jumps exist to reload CS while
// walking 32-bit protected, 16-bit protected and real mode.
func Relocate(t Template, base uint32, vector uint8) ([]byte, error) {
	if len(t.Code) > PageSize {
		return nil, &TemplateError{Offset: len(t.Code), Reason: "template exceeds one page"}
	}
	op := t.InterruptOperand
	if op < 1 || op >= len(t.Code) || t.Code[op-1] != opInterrupt {
		return nil, &TemplateError{Offset: op, Reason: "no INT instruction"}
	}

	code := make([]byte, len(t.Code))
	copy(code, t.Code)
	code[op] = vector

	for _, j := range t.Jumps {
		if j.Offset < 0 || j.Offset+j.Kind.Len() > len(code) {
			return nil, &TemplateError{Offset: j.Offset, Reason: "jump outside of template"}
		}
		if code[j.Offset] != opFarJump {
			return nil, &TemplateError{Offset: j.Offset, Reason: fmt.Sprintf("expected opcode 0x%02x, got 0x%02x", opFarJump, code[j.Offset])}
		}
		target := uint64(base) + uint64(j.Offset) + uint64(j.Kind.Len())
		switch j.Kind {
		case JumpFar32:
			if target > 0xffffffff {
				return nil, &TemplateError{Offset: j.Offset, Reason: "32-bit jump target overflows"}
			}
			binary.LittleEndian.PutUint32(code[j.Offset+1:], uint32(target))
		case JumpFar16:
			if target > 0xffff {
				return nil, &TemplateError{Offset: j.Offset, Reason: fmt.Sprintf("16-bit jump target %#x out of reach", target)}
			}
			binary.LittleEndian.PutUint16(code[j.Offset+1:], uint16(target))
		default:
			return nil, &TemplateError{Offset: j.Offset, Reason: "unknown jump kind " + j.Kind.String()}
		}
	}
	return code, nil
}

// assembler emits template code and records the patch locations as it goes.
type assembler struct {
	t Template
}

func (a *assembler) emit(b ...byte) {
	a.t.Code = append(a.t.Code, b...)
}

func (a *assembler) farJump(kind JumpKind, selector uint16) {
	a.t.Jumps = append(a.t.Jumps, Jump{Offset: len(a.t.Code), Kind: kind})
	a.emit(opFarJump)
	if kind == JumpFar32 {
		a.emit(0, 0, 0, 0)
	} else {
		a.emit(0, 0)
	}
	a.emit(byte(selector), byte(selector>>8))
}

func (a *assembler) interrupt() {
	a.emit(opInterrupt)
	a.t.InterruptOperand = len(a.t.Code)
	a.emit(0)
}

// DefaultTemplate returns the BIOS call trampoline. The executor loads the
// context registers before entering it at the code page base and stores them
// back once it returns; the template itself only walks the mode chain around
// the INT instruction.
func DefaultTemplate() Template {
	var a assembler

	// 32-bit protected mode.
	a.emit(0xFA) // cli
	a.farJump(JumpFar32, Code16Selector)

	// 16-bit protected mode: clear CR0.PE.
	a.emit(0x0F, 0x20, 0xC0)       // mov eax, cr0
	a.emit(0x66, 0x83, 0xE0, 0xFE) // and eax, ~1
	a.emit(0x0F, 0x22, 0xC0)       // mov cr0, eax
	a.farJump(JumpFar16, 0)

	// Real mode.
	a.interrupt()
	a.emit(0xFA) // cli

	// Back to protected mode.
	a.emit(0x0F, 0x20, 0xC0)       // mov eax, cr0
	a.emit(0x66, 0x83, 0xC8, 0x01) // or eax, 1
	a.emit(0x0F, 0x22, 0xC0)       // mov cr0, eax
	a.farJump(JumpFar16, Code32Selector)

	// 32-bit protected mode again.
	a.emit(0xC3) // ret
	return a.t
}
