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

import "fmt"

// taskSignalKind identifies which side of the handshake a message carries.
type taskSignalKind int

const (
	sigYielded taskSignalKind = iota // plugin -> scheduler: suspended
	sigDone                         // plugin -> scheduler: completed (err may be nil)
	sigResume                       // scheduler -> plugin: continue normally
	sigThrow                        // scheduler -> plugin: continue with an error
	sigClose                        // scheduler -> plugin: unwind, do not yield again
)

type taskMessage struct {
	kind taskSignalKind
	err  error
}

// pluginTask is a per-plugin execution handle. It models the generator
// contract (start / resume / throw / close) over a real goroutine: the
// plugin body runs on its own goroutine and hands control back to the
// caller by sending on toScheduler and then blocking on fromScheduler,
// which is exactly what Yield does. Because every channel in this pair is
// unbuffered, at most one of {task goroutine, scheduler goroutine} is ever
// runnable — the handshake itself is the mutual-exclusion mechanism, no
// additional lock is needed.
type pluginTask[C any] struct {
	id            identity
	displayName   string
	toScheduler   chan taskMessage
	fromScheduler chan taskMessage
	suspended     bool
	done          bool
}

// startTask launches plugin as a goroutine and advances it to its first
// suspension point or to completion. It never returns until the plugin has
// done one or the other, so from the caller's perspective Start behaves
// like an ordinary (possibly slow) function call.
func startTask[C any](ctx C, name string, id identity, plugin PluginFunc[C]) (*pluginTask[C], error) {
	t := &pluginTask[C]{
		id:            id,
		displayName:   name,
		toScheduler:   make(chan taskMessage),
		fromScheduler: make(chan taskMessage),
	}

	go t.run(ctx, plugin)

	return t, t.awaitTransition()
}

// run is the body of the plugin's goroutine. It recovers panics and
// reports them exactly like a returned error, so a buggy plugin can never
// take down the host process.
func (t *pluginTask[C]) run(ctx C, plugin PluginFunc[C]) {
	var result error
	func() {
		defer func() {
			if r := recover(); r != nil {
				result = fmt.Errorf("plugin %q panicked: %v", t.displayName, r)
			}
		}()
		result = plugin(ctx, t.yield)
	}()
	t.toScheduler <- taskMessage{kind: sigDone, err: result}
}

// yield is handed to the plugin body as its suspension point. It reports
// "suspended" to the scheduler and blocks until the scheduler decides what
// happens next.
func (t *pluginTask[C]) yield() error {
	t.toScheduler <- taskMessage{kind: sigYielded}
	msg := <-t.fromScheduler
	switch msg.kind {
	case sigResume:
		return nil
	case sigThrow:
		return msg.err
	case sigClose:
		return errClosing
	default:
		return newProtocolViolation("pipeline: unexpected scheduler signal %d", msg.kind)
	}
}

// awaitTransition blocks until the plugin goroutine either suspends or
// completes, updating task state accordingly.
func (t *pluginTask[C]) awaitTransition() error {
	msg := <-t.toScheduler
	switch msg.kind {
	case sigYielded:
		t.suspended = true
		return nil
	case sigDone:
		t.suspended = false
		t.done = true
		return msg.err
	default:
		return newProtocolViolation("pipeline: unexpected task signal %d", msg.kind)
	}
}

// resume advances a suspended task to its next suspension point or to
// completion. Calling resume on a task that has already completed returns a
// protocol violation; the pipeline itself only resumes tasks taken from its
// suspension stack.
func (t *pluginTask[C]) resume() error {
	if t.done {
		return newProtocolViolation("pipeline: task %q resumed after completing", t.displayName)
	}
	t.suspended = false
	t.fromScheduler <- taskMessage{kind: sigResume}
	return t.awaitTransition()
}

// throw injects err at the task's current suspension point. The task may
// absorb it (returning nil or suspending again) or propagate it (returning
// a non-nil error from awaitTransition). Calling throw on a task that has
// already completed returns a protocol violation.
func (t *pluginTask[C]) throw(err error) error {
	if t.done {
		return newProtocolViolation("pipeline: task %q thrown into after completing", t.displayName)
	}
	t.suspended = false
	t.fromScheduler <- taskMessage{kind: sigThrow, err: err}
	return t.awaitTransition()
}

// close unwinds a suspended task by injecting errClosing. If the task
// yields again in response, that is a protocol violation rather than a
// well-behaved close; any other error it returns propagates normally.
func (t *pluginTask[C]) close() error {
	t.suspended = false
	t.fromScheduler <- taskMessage{kind: sigClose}

	msg := <-t.toScheduler
	switch msg.kind {
	case sigDone:
		t.done = true
		if msg.err == errClosing {
			return nil
		}
		return msg.err
	case sigYielded:
		t.suspended = true
		return newProtocolViolation("pipeline: task %q yielded again while closing", t.displayName)
	default:
		return newProtocolViolation("pipeline: unexpected task signal %d", msg.kind)
	}
}
