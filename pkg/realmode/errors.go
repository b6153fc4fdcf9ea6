// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package realmode

import (
	"errors"
	"fmt"
)

// Statuses returned by the call bridge and by BIOS service wrappers built on
// top of it.
var (
	ErrArenaBusy   = errors.New("real mode call arena is in use")
	ErrClosed      = errors.New("bios call context is closed")
	ErrNotFound    = errors.New("not found")
	ErrDeviceError = errors.New("device error")
	ErrUnsupported = errors.New("unsupported")
	ErrFirmware    = errors.New("firmware error")
)

// BiosError describes a BIOS service that returned with the carry flag set or
// a non-zero status in AH.
type BiosError struct {
	Vector   uint8
	Function uint16
	Status   uint8
	Carry    bool
}

func (e *BiosError) Error() string {
	return fmt.Sprintf("int 0x%02x function 0x%04x failed: carry=%v status=0x%02x",
		e.Vector, e.Function, e.Carry, e.Status)
}

// Unwrap makes every BiosError match ErrFirmware.
func (e *BiosError) Unwrap() error {
	return ErrFirmware
}

// TemplateError means the code template does not match its descriptor. It is
// a build-time defect, never a runtime condition.
type TemplateError struct {
	Offset int
	Reason string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("broken real mode template at offset %#x: %s", e.Offset, e.Reason)
}
