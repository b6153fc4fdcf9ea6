// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux || !(386 || amd64)

package bda

import (
	"fmt"
	"runtime"
)

// ReadHost decodes the BIOS data area of the running machine.
func ReadHost() (Info, error) {
	return Info{}, fmt.Errorf("reading physical memory is not supported on %s/%s", runtime.GOOS, runtime.GOARCH)
}
