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

import "github.com/sirupsen/logrus"

// logrusAdapter adapts a *logrus.Logger onto Logger, for hosts that
// standardized on logrus rather than zap.
type logrusAdapter struct {
	l *logrus.Logger
}

// NewLogrusAdapter wraps an existing *logrus.Logger.
func NewLogrusAdapter(l *logrus.Logger) Logger {
	return &logrusAdapter{l: l}
}

func toLogrusFields(fields []Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Val
	}
	return out
}

func (a *logrusAdapter) Debug(msg string, fields ...Field) {
	a.l.WithFields(toLogrusFields(fields)).Debug(msg)
}

func (a *logrusAdapter) Info(msg string, fields ...Field) {
	a.l.WithFields(toLogrusFields(fields)).Info(msg)
}

func (a *logrusAdapter) Warn(msg string, fields ...Field) {
	a.l.WithFields(toLogrusFields(fields)).Warn(msg)
}

func (a *logrusAdapter) Error(msg string, fields ...Field) {
	a.l.WithFields(toLogrusFields(fields)).Error(msg)
}
