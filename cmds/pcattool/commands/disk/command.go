// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package disk

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/linuxboot/pcatfw/cmds/pcattool/commands"
	"github.com/linuxboot/pcatfw/pkg/biosemu"
	pcatdisk "github.com/linuxboot/pcatfw/pkg/disk"
	"github.com/linuxboot/pcatfw/pkg/realmode"
)

var _ commands.Command = (*Command)(nil)

type Command struct {
	Scenario string  `short:"f" long:"scenario" description:"path to the machine scenario" required:"true"`
	Drive    string  `short:"n" long:"drive" default:"0x80" description:"BIOS drive number"`
	Dump     *uint64 `long:"dump" description:"hexdump the sector at this LBA"`
}

// ShortDescription explains what this command does in one line
func (cmd *Command) ShortDescription() string {
	return "prints the parameters of a BIOS drive"
}

// LongDescription explains what this verb does (without limitation in amount of lines)
func (cmd *Command) LongDescription() string {
	return "Queries a drive of the simulated BIOS through the INT 13h extensions."
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("there are extra arguments")}
	}
	number, err := strconv.ParseUint(cmd.Drive, 0, 8)
	if err != nil {
		return commands.ErrArgs{Err: fmt.Errorf("invalid drive number '%s': %w", cmd.Drive, err)}
	}

	s, err := biosemu.LoadScenario(cmd.Scenario)
	if err != nil {
		return fmt.Errorf("unable to load the scenario '%s': %w", cmd.Scenario, err)
	}
	machine, err := s.Machine()
	if err != nil {
		return err
	}
	d, err := pcatdisk.OpenDrive(machine, realmode.NewArena(), uint8(number))
	if err != nil {
		return fmt.Errorf("unable to open the drive: %w", err)
	}

	t := table.NewWriter()
	t.SetTitle("Drive %#02x", d.Number)
	t.AppendHeader(table.Row{"Sectors", "Sector Size", "Capacity"})
	t.AppendRow(table.Row{d.Sectors, d.SectorSize, humanize.IBytes(uint64(d.Size()))})
	fmt.Fprintf(commands.Output, "%s\n", t.Render())

	if cmd.Dump != nil {
		sector := make([]byte, d.SectorSize)
		if _, err := d.ReadAt(sector, int64(*cmd.Dump)*int64(d.SectorSize)); err != nil {
			return fmt.Errorf("unable to read lba %d: %w", *cmd.Dump, err)
		}
		fmt.Fprintf(commands.Output, "%s", hex.Dump(sector))
	}
	return nil
}
