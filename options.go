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

package pipeline

import "github.com/relaykit/pipeline/internal/log"

// Option configures a Pipeline at construction time.
type Option[C any] func(*Pipeline[C])

// WithResolver overrides the default MapResolver, e.g. with one backed by a
// host-specific plugin registry.
func WithResolver[C any](r Resolver[C]) Option[C] {
	return func(p *Pipeline[C]) { p.resolver = r }
}

// WithWhitelist restricts Named plugin resolution to the given set of
// identifiers. Inline specs are never subject to the whitelist. Passing a
// nil or empty slice disables the whitelist (the default: every identifier
// the Resolver can serve is allowed).
func WithWhitelist[C any](ids []string) Option[C] {
	return func(p *Pipeline[C]) {
		if len(ids) == 0 {
			p.setWhitelist(nil)
			return
		}
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		p.setWhitelist(set)
	}
}

// WithLogger attaches a structured logger for scheduling trace lines. The
// default is a no-op logger.
func WithLogger[C any](l log.Logger) Option[C] {
	return func(p *Pipeline[C]) { p.logger = l }
}
