// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memmap

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Table renders the live entries of the map as a text table.
func (m *Map) Table() string {
	t := table.NewWriter()
	t.SetTitle("Memory Map")
	t.AppendHeader(table.Row{"#", "Type", "Start", "End", "Pages", "Size", "Attributes"})
	var total uint64
	n := 0
	for _, d := range m.entries {
		if d.IsHole() {
			continue
		}
		size := d.NumberOfPages * m.pageSize
		total += size
		t.AppendRow(table.Row{
			n,
			d.Type.Pretty(),
			fmt.Sprintf("0x%016x", d.PhysicalStart),
			fmt.Sprintf("0x%016x", m.End(d)),
			d.NumberOfPages,
			humanize.IBytes(size),
			d.Attribute,
		})
		n++
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", humanize.IBytes(total), ""})
	return t.Render()
}

func (m *Map) String() string {
	var b strings.Builder
	for i, d := range m.entries {
		if d.IsHole() {
			continue
		}
		fmt.Fprintf(&b, "%2d: %-24s [%#x, %#x)\n", i, d.Type, d.PhysicalStart, m.End(d))
	}
	return b.String()
}
