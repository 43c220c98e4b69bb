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

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNopLoggerDiscardsEverything(t *testing.T) {
	l := Nop()
	assert.NotPanics(t, func() {
		l.Debug("debug", StringField("k", "v"))
		l.Info("info")
		l.Warn("warn", ErrorField(errors.New("boom")))
		l.Error("error", IntField("n", 1))
	})
}

func TestZapAdapterForwardsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	adapter := NewZapAdapter(zap.New(core))

	adapter.Info("hello", StringField("plugin", "p1"))

	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Message)
	assert.Equal(t, "p1", entries[0].ContextMap()["plugin"])
}

func TestLogrusAdapterForwardsFields(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	adapter := NewLogrusAdapter(base)

	assert.NotPanics(t, func() {
		adapter.Warn("careful", StringField("plugin", "p2"))
	})
	assert.Contains(t, buf.String(), "msg=careful")
	assert.Contains(t, buf.String(), "plugin=p2")
}
