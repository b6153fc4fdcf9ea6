// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package template

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/linuxboot/pcatfw/cmds/pcattool/commands"
	"github.com/linuxboot/pcatfw/pkg/realmode"
)

var _ commands.Command = (*Command)(nil)

type Command struct {
	Vector string `long:"vector" default:"0x13" description:"interrupt vector to patch in"`
	Base   string `long:"base" description:"address the trampoline is relocated to (default: the code page)"`
}

// ShortDescription explains what this command does in one line
func (cmd *Command) ShortDescription() string {
	return "dumps the relocated real mode trampoline"
}

// LongDescription explains what this verb does (without limitation in amount of lines)
func (cmd *Command) LongDescription() string {
	return "Prints the far jumps of the trampoline and a hexdump of the code after relocation."
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("there are extra arguments")}
	}
	vector, err := strconv.ParseUint(cmd.Vector, 0, 8)
	if err != nil {
		return commands.ErrArgs{Err: fmt.Errorf("invalid vector '%s': %w", cmd.Vector, err)}
	}
	base := uint64(realmode.CodePageAddress)
	if cmd.Base != "" {
		if base, err = strconv.ParseUint(cmd.Base, 0, 32); err != nil {
			return commands.ErrArgs{Err: fmt.Errorf("invalid base '%s': %w", cmd.Base, err)}
		}
	}

	tmpl := realmode.DefaultTemplate()
	code, err := realmode.Relocate(tmpl, uint32(base), uint8(vector))
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetTitle("Trampoline for INT %02Xh at %#x", vector, base)
	t.AppendHeader(table.Row{"Offset", "Kind", "Target"})
	for _, j := range tmpl.Jumps {
		t.AppendRow(table.Row{
			fmt.Sprintf("%#04x", j.Offset),
			j.Kind,
			fmt.Sprintf("%#x", base+uint64(j.Offset)+uint64(j.Kind.Len())),
		})
	}
	t.AppendRow(table.Row{fmt.Sprintf("%#04x", tmpl.InterruptOperand), "INT", fmt.Sprintf("%#02x", vector)})
	fmt.Fprintf(commands.Output, "%s\n%s", t.Render(), hex.Dump(code))
	return nil
}
