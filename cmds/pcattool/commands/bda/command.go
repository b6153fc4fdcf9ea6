// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bda

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/linuxboot/pcatfw/cmds/pcattool/commands"
	pcatbda "github.com/linuxboot/pcatfw/pkg/bda"
	"github.com/linuxboot/pcatfw/pkg/biosemu"
	"github.com/linuxboot/pcatfw/pkg/e820"
)

var _ commands.Command = (*Command)(nil)

type Command struct {
	Scenario string `short:"f" long:"scenario" description:"read a simulated machine instead of /dev/mem"`
	Strict   bool   `long:"strict" description:"fail if low memory disagrees with the conventional memory window"`
}

// ShortDescription explains what this command does in one line
func (cmd *Command) ShortDescription() string {
	return "prints what the BIOS data area says about low memory"
}

// LongDescription explains what this verb does (without limitation in amount of lines)
func (cmd *Command) LongDescription() string {
	return `Reads the EBDA segment and the base memory size from the BIOS data area
and compares them with the window of low memory the memory map hands out as
conventional memory. Without a scenario the values are read through /dev/mem.`
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("there are extra arguments")}
	}

	var (
		info pcatbda.Info
		err  error
	)
	if cmd.Scenario == "" {
		info, err = pcatbda.ReadHost()
	} else {
		var s *biosemu.Scenario
		s, err = biosemu.LoadScenario(cmd.Scenario)
		if err != nil {
			return fmt.Errorf("unable to load the scenario '%s': %w", cmd.Scenario, err)
		}
		info, err = pcatbda.Read(s.ReadPhys)
	}
	if err != nil {
		return fmt.Errorf("unable to read the BIOS data area: %w", err)
	}

	checkErr := info.Check(e820.LowConventionalEnd)
	status := "ok"
	if checkErr != nil {
		status = checkErr.Error()
	}

	t := table.NewWriter()
	t.SetTitle("BIOS Data Area")
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"EBDA segment", fmt.Sprintf("%#04x", info.EBDASegment)},
		{"EBDA address", fmt.Sprintf("%#x", info.EBDA())},
		{"Base memory", humanize.IBytes(info.BaseMemoryEnd())},
		{"Conventional end", fmt.Sprintf("%#x", e820.LowConventionalEnd)},
		{"Status", status},
	})
	fmt.Fprintf(commands.Output, "%s\n", t.Render())

	if cmd.Strict {
		return checkErr
	}
	return nil
}
