// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memmap

import (
	"fmt"
	"strings"

	"github.com/fatih/camelcase"
)

// Type is the semantic class of a memory range. Values follow the UEFI
// EFI_MEMORY_TYPE numbering.
type Type uint32

// Memory types.
const (
	Reserved Type = iota
	LoaderCode
	LoaderData
	BootServicesCode
	BootServicesData
	RuntimeServicesCode
	RuntimeServicesData
	Conventional
	Unusable
	ACPIReclaim
	ACPINVS
	MemoryMappedIO
	MemoryMappedIOPortSpace
	PalCode
	Persistent
	typeMax
)

var typeNames = map[Type]string{
	Reserved:                "Reserved",
	LoaderCode:              "LoaderCode",
	LoaderData:              "LoaderData",
	BootServicesCode:        "BootServicesCode",
	BootServicesData:        "BootServicesData",
	RuntimeServicesCode:     "RuntimeServicesCode",
	RuntimeServicesData:     "RuntimeServicesData",
	Conventional:            "Conventional",
	Unusable:                "Unusable",
	ACPIReclaim:             "ACPIReclaim",
	ACPINVS:                 "ACPINVS",
	MemoryMappedIO:          "MemoryMappedIO",
	MemoryMappedIOPortSpace: "MemoryMappedIOPortSpace",
	PalCode:                 "PalCode",
	Persistent:              "Persistent",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", uint32(t))
}

// Pretty returns the type name split into words, e.g. "Runtime Services Data".
func (t Type) Pretty() string {
	return strings.Join(camelcase.Split(t.String()), " ")
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	for typ, name := range typeNames {
		if strings.EqualFold(name, string(text)) {
			*t = typ
			return nil
		}
	}
	return fmt.Errorf("unknown memory type %q", text)
}

// Valid reports whether t is one of the defined types.
func (t Type) Valid() bool {
	return t < typeMax
}

// FirmwareOwned reports whether the range belongs to the firmware or the
// platform. Such a range always takes precedence over an overlapping range
// that was reported earlier.
func (t Type) FirmwareOwned() bool {
	switch t {
	case Unusable,
		RuntimeServicesCode,
		RuntimeServicesData,
		ACPINVS,
		MemoryMappedIO,
		MemoryMappedIOPortSpace,
		PalCode:
		return true
	}
	return false
}

// Attribute is the EFI memory attribute bit mask of a descriptor.
type Attribute uint64

// Memory attributes.
const (
	AttributeUC           Attribute = 0x1
	AttributeWC           Attribute = 0x2
	AttributeWT           Attribute = 0x4
	AttributeWB           Attribute = 0x8
	AttributeUCE          Attribute = 0x10
	AttributeWP           Attribute = 0x1000
	AttributeRP           Attribute = 0x2000
	AttributeXP           Attribute = 0x4000
	AttributeNV           Attribute = 0x8000
	AttributeMoreReliable Attribute = 0x10000
	AttributeRO           Attribute = 0x20000
	AttributeRuntime      Attribute = 0x8000000000000000
)

var attributeNames = []struct {
	bit  Attribute
	name string
}{
	{AttributeUC, "UC"},
	{AttributeWC, "WC"},
	{AttributeWT, "WT"},
	{AttributeWB, "WB"},
	{AttributeUCE, "UCE"},
	{AttributeWP, "WP"},
	{AttributeRP, "RP"},
	{AttributeXP, "XP"},
	{AttributeNV, "NV"},
	{AttributeMoreReliable, "MORE_RELIABLE"},
	{AttributeRO, "RO"},
	{AttributeRuntime, "RUNTIME"},
}

func (a Attribute) String() string {
	if a == 0 {
		return "-"
	}
	var parts []string
	rest := a
	for _, n := range attributeNames {
		if a&n.bit != 0 {
			parts = append(parts, n.name)
			rest &^= n.bit
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint64(rest)))
	}
	return strings.Join(parts, "|")
}
