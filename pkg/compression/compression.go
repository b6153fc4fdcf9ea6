// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compression implements reading and writing of compressed files.
//
// It is used for machine description fixtures, which are stored compressed
// next to the tests and tools reading them. The scheme is picked from the file
// extension.
package compression

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Compressor defines a single compression scheme (such as XZ).
type Compressor interface {
	// Name is typically the name of a class.
	Name() string

	// Decode and Encode obey "x == Decode(Encode(x))".
	Decode(encodedData []byte) ([]byte, error)
	Encode(decodedData []byte) ([]byte, error)
}

var byExtension = map[string]func() Compressor{
	".xz":   func() Compressor { return &XZ{} },
	".lzma": func() Compressor { return &LZMA{} },
	".lz4":  func() Compressor { return &LZ4{} },
	".zst":  func() Compressor { return &Zstd{} },
	".zz":   func() Compressor { return &ZLIB{} },
}

// CompressorFromExtension returns the Compressor matching the extension of
// path, or nil if the file is not compressed.
func CompressorFromExtension(path string) Compressor {
	ext := strings.ToLower(filepath.Ext(path))
	if c, ok := byExtension[ext]; ok {
		return c()
	}
	return nil
}

// TrimExtension returns path without its compression extension.
func TrimExtension(path string) string {
	if CompressorFromExtension(path) == nil {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// ReadFile reads path and decodes it if its extension names a compression
// scheme.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(path, data)
}

// Decode decodes data read from a file named path.
func Decode(path string, data []byte) ([]byte, error) {
	c := CompressorFromExtension(path)
	if c == nil {
		return data, nil
	}
	decoded, err := c.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s as %s: %w", path, c.Name(), err)
	}
	return decoded, nil
}
