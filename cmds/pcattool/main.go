// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// pcattool inspects what the PC/AT firmware core sees of a simulated BIOS.
//
// Synopsis:
//
//	pcattool memmap -f SCENARIO [--capacity N] [--coalesce] [--lax] [--format text|json|efi]
//	pcattool disk -f SCENARIO [-n DRIVE] [--dump LBA]
//	pcattool template [--vector N] [--base ADDRESS]
//	pcattool bda [-f SCENARIO] [--strict]
//
// An example:
//
//	pcattool memmap -f qemu.json.xz --coalesce
//	pcattool disk -f qemu.json -n 0x80 --dump 0
//	pcattool template --vector 0x15
//	sudo pcattool bda --strict
//
// Description:
//
//	memmap:   Print the initial memory map built from E820
//	disk:     Print the parameters of a BIOS drive
//	template: Dump the relocated real mode trampoline
//	bda:      Print the low memory layout from the BIOS data area
package main

import (
	"github.com/jessevdk/go-flags"

	"github.com/linuxboot/pcatfw/cmds/pcattool/commands"
	"github.com/linuxboot/pcatfw/cmds/pcattool/commands/bda"
	"github.com/linuxboot/pcatfw/cmds/pcattool/commands/disk"
	"github.com/linuxboot/pcatfw/cmds/pcattool/commands/memmap"
	"github.com/linuxboot/pcatfw/cmds/pcattool/commands/template"
	"github.com/linuxboot/pcatfw/pkg/log"
)

// knownCommands returns fresh command values, since go-flags stores the
// parsed options in them.
func knownCommands() map[string]commands.Command {
	return map[string]commands.Command{
		"memmap":   &memmap.Command{},
		"disk":     &disk.Command{},
		"template": &template.Command{},
		"bda":      &bda.Command{},
	}
}

type globalOptions struct {
	Debug bool `short:"d" long:"debug" description:"enable debug prints"`
}

func newParser(opts *globalOptions) *flags.Parser {
	flagsParser := flags.NewParser(opts, flags.Default)
	for commandName, command := range knownCommands() {
		_, err := flagsParser.AddCommand(commandName, command.ShortDescription(), command.LongDescription(), command)
		if err != nil {
			panic(err)
		}
	}
	flagsParser.CommandHandler = func(command flags.Commander, args []string) error {
		log.SetDebug(opts.Debug)
		return command.Execute(args)
	}
	return flagsParser
}

func main() {
	var opts globalOptions
	// parse arguments and execute the appropriate command
	if _, err := newParser(&opts).Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		log.Fatalf("%v", err)
	}
}
