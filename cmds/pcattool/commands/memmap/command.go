// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memmap

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/linuxboot/pcatfw/cmds/pcattool/commands"
	"github.com/linuxboot/pcatfw/pkg/biosemu"
	pcatmemmap "github.com/linuxboot/pcatfw/pkg/memmap"
)

var _ commands.Command = (*Command)(nil)

type Command struct {
	Scenario string `short:"f" long:"scenario" description:"path to the machine scenario" required:"true"`
	Capacity int    `long:"capacity" default:"64" description:"number of descriptors the map can hold"`
	Coalesce bool   `long:"coalesce" description:"merge neighbouring entries of the same type"`
	Lax      bool   `long:"lax" description:"accept a map without usable memory above 1MiB"`
	Format   string `long:"format" default:"text" description:"output format [text, json, efi]"`
}

// ShortDescription explains what this command does in one line
func (cmd *Command) ShortDescription() string {
	return "prints the initial memory map of a machine"
}

// LongDescription explains what this verb does (without limitation in amount of lines)
func (cmd *Command) LongDescription() string {
	return `Runs the E820 collector against the simulated BIOS described by the
scenario and prints the reconciled memory map. The "efi" format writes the
map as raw EFI_MEMORY_DESCRIPTOR records.`
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("there are extra arguments")}
	}
	if cmd.Capacity <= 0 {
		return commands.ErrArgs{Err: fmt.Errorf("capacity must be positive, got %d", cmd.Capacity)}
	}
	format := strings.ToLower(strings.TrimSpace(cmd.Format))
	switch format {
	case "text", "json", "efi":
	default:
		return commands.ErrArgs{Err: fmt.Errorf("unknown format '%s'", cmd.Format)}
	}

	s, err := biosemu.LoadScenario(cmd.Scenario)
	if err != nil {
		return fmt.Errorf("unable to load the scenario '%s': %w", cmd.Scenario, err)
	}
	m := pcatmemmap.NewMap(make([]pcatmemmap.Descriptor, 0, cmd.Capacity))
	if _, err := s.MemoryMap(m, cmd.Lax); err != nil {
		return fmt.Errorf("unable to build the memory map: %w", err)
	}
	if cmd.Coalesce {
		m.Coalesce()
	}

	switch format {
	case "json":
		b, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(commands.Output, "%s\n", b)
	case "efi":
		b, err := m.MarshalBinary()
		if err != nil {
			return err
		}
		_, err = commands.Output.Write(b)
		return err
	default:
		fmt.Fprintf(commands.Output, "%s\n", m.Table())
	}
	return nil
}
