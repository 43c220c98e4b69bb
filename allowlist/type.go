// Copyright 2025 TimeWtr
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package allowlist watches a file of whitelisted plugin identifiers and
// delivers each parsed version on a channel; a long-lived host can pass
// those lists to pipeline.Pipeline.SetWhitelist to change which Named
// plugins are resolvable without a restart.
package allowlist

import "fmt"

// ParseType selects which format a whitelist file is decoded as.
type ParseType string

const (
	ParseTypeYAML ParseType = "YAML"
	ParseTypeJSON ParseType = "JSON"
	ParseTypeTOML ParseType = "TOML"
)

func (p ParseType) String() string { return string(p) }

func (p ParseType) valid() bool {
	switch p {
	case ParseTypeYAML, ParseTypeJSON, ParseTypeTOML:
		return true
	default:
		return false
	}
}

// Config is the decoded shape of a whitelist file: a flat list of allowed
// plugin identifiers, each matching the exact dotted spec string a Named
// plugin spec would carry.
type Config struct {
	Plugins []string `json:"plugins" yaml:"plugins" toml:"plugins"`
}

func (p ParseType) requireValid() error {
	if !p.valid() {
		return fmt.Errorf("invalid parse type: %s", p)
	}
	return nil
}
