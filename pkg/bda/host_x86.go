// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux && (386 || amd64)

package bda

import (
	"github.com/u-root/u-root/pkg/memio"
)

// ReadHost decodes the BIOS data area of the running machine through
// /dev/mem.
func ReadHost() (Info, error) {
	return Read(memio.Read)
}
