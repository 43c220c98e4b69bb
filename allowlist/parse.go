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

package allowlist

import (
	"encoding/json"
	"fmt"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// parse decodes data as cfg's Plugins list, according to parseType.
func parse(parseType ParseType, data []byte) (Config, error) {
	var (
		cfg Config
		err error
	)
	switch parseType {
	case ParseTypeYAML:
		err = yaml.Unmarshal(data, &cfg)
	case ParseTypeJSON:
		err = json.Unmarshal(data, &cfg)
	case ParseTypeTOML:
		err = toml.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("invalid parse type: %s", parseType)
	}
	return cfg, err
}
