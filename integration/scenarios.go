// Copyright 2024 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package integration runs the firmware core's early boot path against
// recorded machine scenarios.
package integration

import (
	"embed"
	"errors"
	"io/fs"
	"path"
	"strings"

	"github.com/linuxboot/pcatfw/pkg/biosemu"
)

//go:embed scenarios/*.json
var scenarioFiles embed.FS

const mapSuffix = ".map.json"

// Scenario is an embedded machine description plus the memory map expected
// from it, if one was recorded.
type Scenario struct {
	*biosemu.Scenario
	ExpectedMap []byte
}

// Scenarios returns the embedded scenarios by name.
func Scenarios() (map[string]Scenario, error) {
	names, err := fs.Glob(scenarioFiles, "scenarios/*.json")
	if err != nil {
		return nil, err
	}
	out := map[string]Scenario{}
	for _, name := range names {
		if strings.HasSuffix(name, mapSuffix) {
			continue
		}
		data, err := scenarioFiles.ReadFile(name)
		if err != nil {
			return nil, err
		}
		s, err := biosemu.ParseScenario(data)
		if err != nil {
			return nil, err
		}
		base := strings.TrimSuffix(path.Base(name), ".json")
		if s.Name == "" {
			s.Name = base
		}
		expected, err := scenarioFiles.ReadFile(path.Join("scenarios", base+mapSuffix))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		out[base] = Scenario{Scenario: s, ExpectedMap: expected}
	}
	return out, nil
}
