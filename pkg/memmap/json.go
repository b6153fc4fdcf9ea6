// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memmap

import (
	"encoding/json"
	"fmt"
)

type jsonDescriptor struct {
	Type      Type   `json:"type"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Pages     uint64 `json:"pages"`
	Attribute string `json:"attributes,omitempty"`
}

// MarshalJSON encodes the live entries as a list with hexadecimal
// addresses.
func (m *Map) MarshalJSON() ([]byte, error) {
	out := make([]jsonDescriptor, 0, len(m.entries))
	for _, d := range m.entries {
		if d.IsHole() {
			continue
		}
		j := jsonDescriptor{
			Type:  d.Type,
			Start: fmt.Sprintf("%#x", d.PhysicalStart),
			End:   fmt.Sprintf("%#x", m.End(d)),
			Pages: d.NumberOfPages,
		}
		if d.Attribute != 0 {
			j.Attribute = d.Attribute.String()
		}
		out = append(out, j)
	}
	return json.Marshal(out)
}
