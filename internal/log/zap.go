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

package log

import "go.uber.org/zap"

// zapAdapter adapts a *zap.Logger onto Logger.
type zapAdapter struct {
	l *zap.Logger
}

// NewZapAdapter wraps an existing *zap.Logger, the logging backend carried
// by this module's direct dependency, so a host already standardized on
// zap can pass its production logger straight into WithLogger.
func NewZapAdapter(l *zap.Logger) Logger {
	return &zapAdapter{l: l}
}

func toZapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = zap.Any(f.Key, f.Val)
	}
	return out
}

func (a *zapAdapter) Debug(msg string, fields ...Field) { a.l.Debug(msg, toZapFields(fields)...) }
func (a *zapAdapter) Info(msg string, fields ...Field)  { a.l.Info(msg, toZapFields(fields)...) }
func (a *zapAdapter) Warn(msg string, fields ...Field)  { a.l.Warn(msg, toZapFields(fields)...) }
func (a *zapAdapter) Error(msg string, fields ...Field) { a.l.Error(msg, toZapFields(fields)...) }
