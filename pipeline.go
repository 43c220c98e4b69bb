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

// Package pipeline schedules plugins against a single shared context value.
// A plugin is an ordinary callable; one that calls the yield function it is
// handed becomes a suspendable activity, letting later plugins in the same
// worklist run in the gaps between its suspensions. Plugins may require
// further plugins while they run, and errors thrown into a suspended plugin
// unwind the suspension stack exactly once per level, giving each level a
// chance to absorb or re-raise.
package pipeline

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/relaykit/pipeline/internal/log"
)

// Pipeline runs plugins against a single context value of type C. It is not
// safe for concurrent use from multiple goroutines; Run and Require are
// meant to be called from one goroutine at a time (including reentrantly,
// from within a plugin body currently executing on the goroutine Run itself
// blocks on).
type Pipeline[C any] struct {
	ctx      C
	resolver Resolver[C]
	logger   log.Logger

	whitelistMu sync.RWMutex
	whitelist   map[string]struct{} // nil means unrestricted

	worklist  []PluginSpec[C]
	enlisted  map[identity]struct{}
	suspended []*pluginTask[C] // LIFO: suspended[len-1] is the most recently suspended
	depth     int
}

// New creates a Pipeline bound to ctx. The zero-value default Resolver is
// an empty *MapResolver[C]; register plugins onto it, or supply a custom
// Resolver with WithResolver, before calling Run with any Named spec.
func New[C any](ctx C, opts ...Option[C]) *Pipeline[C] {
	p := &Pipeline[C]{
		ctx:      ctx,
		resolver: NewMapResolver[C](),
		logger:   log.Nop(),
		enlisted: make(map[identity]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// setWhitelist installs set as the current whitelist. A nil set disables
// whitelisting. Safe to call concurrently with Run/Require from another
// goroutine, which is what lets a host feed the lists delivered by
// allowlist.FileProvider into a pipeline that is already running.
func (p *Pipeline[C]) setWhitelist(set map[string]struct{}) {
	p.whitelistMu.Lock()
	defer p.whitelistMu.Unlock()
	p.whitelist = set
}

// SetWhitelist replaces the set of identifiers Named specs are allowed to
// resolve to. Passing nil removes the restriction entirely. It is safe to
// call this from a different goroutine than the one driving Run, so a file
// watcher can push a new whitelist into a pipeline that is mid-run.
func (p *Pipeline[C]) SetWhitelist(ids []string) {
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

// resolve turns a PluginSpec into a callable, its identity, and a display
// name, applying the whitelist check (for Named specs only) before ever
// calling into the Resolver.
func (p *Pipeline[C]) resolve(spec PluginSpec[C]) (PluginFunc[C], identity, string, error) {
	if !spec.isNamed() {
		fn := spec.inline
		return fn, identityOf(fn), "<inline>", nil
	}

	id := spec.identifier()

	p.whitelistMu.RLock()
	wl := p.whitelist
	p.whitelistMu.RUnlock()

	if wl != nil {
		if _, ok := wl[id]; !ok {
			modulePath, symbol := splitIdentifier(id)
			p.logger.Warn("plugin rejected by whitelist",
				log.StringField("identifier", id),
				log.StringField("module", modulePath),
				log.StringField("symbol", symbol))
			return nil, 0, id, newImportError(CodeNotWhitelisted, id,
				fmt.Errorf("%q is not in the allow-list", id))
		}
	}

	fn, err := p.resolver.Resolve(id)
	if err != nil {
		if _, ok := err.(*PluginImportError); ok {
			return nil, 0, id, err
		}
		return nil, 0, id, newImportError(CodeLoadFailed, id, err)
	}
	return fn, identityOf(fn), id, nil
}

// Require enlists spec into the currently running pipeline. Called from
// outside a plugin body it behaves like appending to the worklist and
// running it to the next suspension point immediately; called from within a
// plugin body (on that plugin's own goroutine, while the scheduler
// goroutine blocks awaiting its next yield) it enlists and starts the new
// plugin right away, before control returns to the caller. Requiring a spec
// that has already been enlisted, including a plugin requiring itself, is a
// silent no-op.
func (p *Pipeline[C]) Require(spec PluginSpec[C]) error {
	return p.require(spec)
}

func (p *Pipeline[C]) require(spec PluginSpec[C]) error {
	fn, id, name, err := p.resolve(spec)
	if err != nil {
		return p.propagate(wrapPluginError(name, err))
	}

	if _, ok := p.enlisted[id]; ok {
		p.logger.Debug("plugin already enlisted, skipping", log.StringField("plugin", name))
		return nil
	}
	p.enlisted[id] = struct{}{}

	p.logger.Debug("starting plugin", log.StringField("plugin", name))
	task, startErr := startTask(p.ctx, name, id, fn)
	if startErr != nil {
		return p.propagate(newPluginError(name, startErr))
	}

	if task.suspended {
		p.logger.Debug("plugin suspended", log.StringField("plugin", name))
		p.suspended = append(p.suspended, task)
	} else {
		p.logger.Debug("plugin completed without suspending", log.StringField("plugin", name))
	}
	return nil
}

// wrapPluginError wraps err as a *PluginError unless it already is one (or
// embeds one, as *PluginImportError does), in which case it is returned
// unchanged so Plugin/Code/Identifier fields survive untouched.
func wrapPluginError(name string, err error) error {
	switch err.(type) {
	case *PluginError, *PluginImportError:
		return err
	default:
		return newPluginError(name, err)
	}
}

// propagate throws wrapped into the most recently suspended task and keeps
// unwinding the suspension stack until some task absorbs it or the stack
// empties. wrapped must already be a *PluginError or *PluginImportError;
// propagate never does the initial wrapping itself.
//
// A task absorbs the error by suspending again (it caught the error and
// kept going) or by completing without returning an error (it caught the
// error and fell through). Either way propagation stops immediately: it
// does not keep unwinding past a task that dealt with the error. A task
// that returns a non-nil error, whether the same one rethrown or a new one,
// has re-raised; propagate continues to the next frame down with that error,
// wrapped against that task's name unless it already is a *PluginError or
// *PluginImportError (such as the same one rethrown), which is passed on
// unchanged.
func (p *Pipeline[C]) propagate(wrapped error) error {
	for len(p.suspended) > 0 {
		top := p.suspended[len(p.suspended)-1]
		p.suspended = p.suspended[:len(p.suspended)-1]

		p.logger.Debug("throwing into suspended plugin",
			log.StringField("plugin", top.displayName), log.IntField("stack depth", len(p.suspended)+1))
		tErr := top.throw(wrapped)

		if top.suspended {
			p.suspended = append(p.suspended, top)
			return nil
		}
		if tErr == nil {
			return nil
		}
		wrapped = wrapPluginError(top.displayName, tErr)
	}
	return wrapped
}

// Run appends specs to the pipeline's single shared worklist, then drains
// it, starting each plugin in turn; only once the worklist is empty *and*
// this is the outermost of any nested Run calls does it go on to resume
// every suspended task in LIFO order until none remain. A plugin may call
// Run reentrantly (from its own goroutine, while the frame that resumed it
// sits blocked waiting for its next suspension or completion); the nested
// call shares the same worklist, enlisted set, and suspension stack, so
// whichever frame is actually running at a given moment is the one
// draining the queue — entries end up processed in FIFO order exactly
// once no matter which frame's loop happens to pop them. Only the
// outermost frame ever reaches Phase B, per current_run_depth.
func (p *Pipeline[C]) Run(specs ...PluginSpec[C]) error {
	p.worklist = append(p.worklist, specs...)
	p.depth++
	defer func() { p.depth-- }()

	for len(p.worklist) > 0 {
		spec := p.worklist[0]
		p.worklist = p.worklist[1:]
		if err := p.require(spec); err != nil {
			p.worklist = nil
			p.logger.Error("plugin error escaped run", log.ErrorField(err))
			return err
		}
	}

	if p.depth != 1 {
		return nil
	}

	p.logger.Debug("worklist drained, resuming suspended plugins",
		log.IntField("stack depth", len(p.suspended)))

	for len(p.suspended) > 0 {
		top := p.suspended[len(p.suspended)-1]
		p.suspended = p.suspended[:len(p.suspended)-1]

		p.logger.Debug("resuming plugin",
			log.StringField("plugin", top.displayName), log.IntField("stack depth", len(p.suspended)+1))
		err := top.resume()

		if top.suspended {
			p.suspended = append(p.suspended, top)
			continue
		}
		if err == nil {
			continue
		}
		if perr := p.propagate(wrapPluginError(top.displayName, err)); perr != nil {
			p.worklist = nil
			p.logger.Error("plugin error escaped run", log.ErrorField(perr))
			return perr
		}
	}
	return nil
}

// Close tears down every plugin still suspended, innermost first, without
// resuming them normally: each is asked to unwind via errClosing instead.
// Plugins that clean up after themselves (e.g. a try/finally-shaped body
// that runs its cleanup after yield returns, or in a defer) get the chance
// to do so; one that yields again in response to the close signal is a
// protocol violation and contributes its error to the result. Errors from
// multiple tasks are combined with multierr so none of them are silently
// dropped.
func (p *Pipeline[C]) Close() error {
	var errs error
	for len(p.suspended) > 0 {
		top := p.suspended[len(p.suspended)-1]
		p.suspended = p.suspended[:len(p.suspended)-1]

		p.logger.Debug("closing suspended plugin", log.StringField("plugin", top.displayName))
		if err := top.close(); err != nil {
			errs = multierr.Append(errs, wrapPluginError(top.displayName, err))
		}
	}
	return errs
}
