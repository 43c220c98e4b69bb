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

// PluginError wraps any failure raised by a plugin while it starts, resumes,
// or is thrown into. The original cause is always preserved and reachable
// through Unwrap, so recovery code written against errors.As/errors.Is keeps
// working across re-wraps during a multi-level unwind.
type PluginError struct {
	// Plugin identifies, for diagnostics, which plugin raised or re-raised
	// the error. It is best-effort: during unwind it names the task whose
	// Throw produced this wrapper, not necessarily the original offender.
	Plugin string
	cause  error
}

func newPluginError(plugin string, cause error) *PluginError {
	return &PluginError{Plugin: plugin, cause: cause}
}

func (e *PluginError) Error() string {
	if e.Plugin == "" {
		return fmt.Sprintf("plugin error: %v", e.cause)
	}
	return fmt.Sprintf("plugin error in %q: %v", e.Plugin, e.cause)
}

// Unwrap exposes the original cause for errors.Is/errors.As.
func (e *PluginError) Unwrap() error { return e.cause }

// PluginImportError reports a Resolver failure: an unknown symbol, or one
// rejected by the allow-list. It is a PluginError (same recovery path) with
// a stable Code for hosts that map scheduler failures onto an external
// error shape, and the offending Identifier for display/matching.
type PluginImportError struct {
	*PluginError
	// Code is a machine-readable reason, stable across releases.
	Code string
	// Identifier is the spec string that failed to resolve.
	Identifier string
}

const (
	// CodeNotWhitelisted means the identifier was rejected by the allow-list
	// before any attempt to resolve it.
	CodeNotWhitelisted = "plugin_not_whitelisted"
	// CodeNotFound means the Resolver had no plugin registered under the
	// identifier.
	CodeNotFound = "plugin_not_found"
	// CodeLoadFailed means the Resolver found the identifier but the
	// underlying lookup failed for some other reason (e.g. a nested load
	// error from a custom Resolver implementation).
	CodeLoadFailed = "plugin_load_failed"
)

func newImportError(code, id string, cause error) *PluginImportError {
	return &PluginImportError{
		PluginError: newPluginError(id, cause),
		Code:        code,
		Identifier:  id,
	}
}

func (e *PluginImportError) Error() string {
	return fmt.Sprintf("failed to import plugin %q: %v", e.Identifier, e.cause)
}

// As lets errors.As match a *PluginImportError against a *PluginError
// target, yielding its embedded PluginError.
func (e *PluginImportError) As(target any) bool {
	if t, ok := target.(**PluginError); ok {
		*t = e.PluginError
		return true
	}
	return false
}

// errClosing is the sentinel injected into a suspended task's Yield call by
// Close. A plugin that yields again in response to it has committed a
// protocol violation, which is reported back to the caller as a PluginError.
var errClosing = fmt.Errorf("pipeline: task is closing")

// protocolViolationError reports the case where a task yields again after being
// asked to close, or where Resume/Throw is called on a task that already
// completed.
type protocolViolationError struct {
	msg string
}

func (e *protocolViolationError) Error() string { return e.msg }

func newProtocolViolation(format string, args ...any) error {
	return &protocolViolationError{msg: fmt.Sprintf(format, args...)}
}
