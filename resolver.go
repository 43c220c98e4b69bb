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

import (
	"fmt"
	"strings"
	"sync"
)

// Resolver maps a symbolic plugin identifier to its callable. It is a pure
// function of (id, the resolver's own registered state) — it never touches
// Pipeline state, so the same Resolver can be shared by several pipelines.
//
// Go has no runtime equivalent of importing a module by dotted path and
// reading an attribute off it, so unlike the host this spec was distilled
// from, resolution here is registration-based: plugins (or the host, on
// their behalf) register identifier -> PluginFunc pairs ahead of time with
// MapResolver, and Resolve performs a lookup.
type Resolver[C any] interface {
	Resolve(id string) (PluginFunc[C], error)
}

// MapResolver is the default Resolver: a thread-safe registry of symbolic
// identifiers to plugin callables, modeled on the auto-registration
// registry pattern (identifier -> factory, RWMutex-guarded, overwrite on
// duplicate registration) used for plugin discovery across the reference
// pack.
type MapResolver[C any] struct {
	mu      sync.RWMutex
	plugins map[string]PluginFunc[C]
}

// NewMapResolver creates an empty registry-backed Resolver.
func NewMapResolver[C any]() *MapResolver[C] {
	return &MapResolver[C]{plugins: make(map[string]PluginFunc[C])}
}

// Register adds or overwrites the callable for id. Safe for concurrent use,
// including being called from a plugin's init-time registration while the
// pipeline it will serve is already running elsewhere.
func (r *MapResolver[C]) Register(id string, fn PluginFunc[C]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[id] = fn
}

// Unregister removes id, if present. A no-op if it was never registered.
func (r *MapResolver[C]) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.plugins, id)
}

// Resolve implements Resolver. The whitelist check, if any, is applied by
// the Pipeline's resolve method before Resolve is even called; Resolve
// itself only ever reports "not found".
func (r *MapResolver[C]) Resolve(id string) (PluginFunc[C], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.plugins[id]
	if !ok {
		_, symbol := splitIdentifier(id)
		return nil, newImportError(CodeNotFound, id,
			fmt.Errorf("no plugin registered for %q (symbol %q)", id, symbol))
	}
	return fn, nil
}

// splitIdentifier splits a dotted identifier at its last separator into
// (modulePath, symbol), purely for inclusion in diagnostic messages — the
// Resolver always looks up the identifier as a whole.
func splitIdentifier(id string) (modulePath, symbol string) {
	idx := strings.LastIndexByte(id, '.')
	if idx < 0 {
		return "", id
	}
	return id[:idx], id[idx+1:]
}
