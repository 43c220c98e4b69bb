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

import "reflect"

// PluginFunc is the plugin contract: a callable receiving the pipeline's
// context. A plugin that never calls yield runs to completion in one step,
// exactly as if it were a plain function; a plugin that calls yield one or
// more times is a suspendable activity that hands control back to the
// pipeline at each call, resuming only when the pipeline schedules it again.
//
// yield returns nil on a normal resume, a non-nil error if the pipeline
// threw an error into the task (the plugin may recover by returning nil or
// a different error, or propagate by returning it), or errClosing if the
// task is being torn down — in which case the plugin must not call yield
// again.
type PluginFunc[C any] func(ctx C, yield func() error) error

// PluginSpec is a normalized reference to a plugin: either an inline
// callable or a symbolic name to be resolved by a Resolver. Two specs are
// the same plugin iff they resolve to the same identity (see identityOf).
type PluginSpec[C any] struct {
	inline PluginFunc[C]
	name   string
	named  bool
}

// Inline wraps a plugin callable directly, bypassing the Resolver and the
// allow-list entirely. This mirrors the distilled spec's open question:
// the allow-list only ever gates symbolic lookups, never inline callables.
func Inline[C any](fn PluginFunc[C]) PluginSpec[C] {
	return PluginSpec[C]{inline: fn}
}

// Named references a plugin by a symbolic identifier, conventionally of the
// form "module.path.symbol", to be resolved through the pipeline's
// Resolver (and, if present, checked against its allow-list) at require
// time.
func Named[C any](id string) PluginSpec[C] {
	return PluginSpec[C]{name: id, named: true}
}

// isNamed reports whether the spec must go through the Resolver.
func (s PluginSpec[C]) isNamed() bool { return s.named }

// identifier returns the dotted string for a Named spec; empty otherwise.
func (s PluginSpec[C]) identifier() string { return s.name }

// identity is the dedup key used against Pipeline.enlisted. Go func values
// are not comparable (other than to nil), so this module uses the resolved
// func's code-entry address as a stable substitute for reference equality —
// see DESIGN.md Open Question OQ-1 for why this is both safe and
// sufficient for every behavior this spec requires.
type identity uintptr

func identityOf[C any](fn PluginFunc[C]) identity {
	return identity(reflect.ValueOf(fn).Pointer())
}
