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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// strCtx is the shared context used across these tests: a pointer to a
// slice so every plugin invocation, however many goroutines it runs on,
// observes and appends to the same underlying trace.
type strCtx = *[]string

func newCtx() strCtx {
	s := make([]string, 0)
	return &s
}

func record(ctx strCtx, item string) {
	*ctx = append(*ctx, item)
}

func noopYield() error { return nil }

func TestEmpty(t *testing.T) {
	ctx := newCtx()
	p := New[strCtx](ctx)

	require.NoError(t, p.Run())
	assert.Equal(t, []string{}, *ctx)
}

func TestBasic(t *testing.T) {
	ctx := newCtx()
	p := New[strCtx](ctx)

	p1 := Inline(PluginFunc[strCtx](func(ctx strCtx, yield func() error) error {
		record(ctx, "p1")
		return nil
	}))
	p2 := Inline(PluginFunc[strCtx](func(ctx strCtx, yield func() error) error {
		record(ctx, "p2")
		return nil
	}))

	require.NoError(t, p.Run(p1, p2))
	assert.Equal(t, []string{"p1", "p2"}, *ctx)
}

func TestWithYield(t *testing.T) {
	ctx := newCtx()
	p := New[strCtx](ctx)

	p1 := Inline(PluginFunc[strCtx](func(ctx strCtx, yield func() error) error {
		record(ctx, "p1")
		if err := yield(); err != nil {
			return err
		}
		record(ctx, "p1-bis")
		return nil
	}))
	p2 := Inline(PluginFunc[strCtx](func(ctx strCtx, yield func() error) error {
		record(ctx, "p2")
		if err := yield(); err != nil {
			return err
		}
		record(ctx, "p2-bis")
		return nil
	}))

	require.NoError(t, p.Run(p1, p2))
	assert.Equal(t, []string{"p1", "p2", "p2-bis", "p1-bis"}, *ctx)
}

func TestWithMultipleYield(t *testing.T) {
	ctx := newCtx()
	p := New[strCtx](ctx)

	p1 := Inline(PluginFunc[strCtx](func(ctx strCtx, yield func() error) error {
		record(ctx, "p1")
		if err := yield(); err != nil {
			return err
		}
		record(ctx, "p1-bis")
		if err := yield(); err != nil {
			return err
		}
		record(ctx, "p1-bis-bis")
		return nil
	}))
	p2 := Inline(PluginFunc[strCtx](func(ctx strCtx, yield func() error) error {
		record(ctx, "p2")
		if err := yield(); err != nil {
			return err
		}
		record(ctx, "p2-bis")
		if err := yield(); err != nil {
			return err
		}
		record(ctx, "p2-bis-bis")
		return nil
	}))

	require.NoError(t, p.Run(p1, p2))
	assert.Equal(t, []string{"p1", "p2", "p2-bis", "p2-bis-bis", "p1-bis", "p1-bis-bis"}, *ctx)
}

func TestWithMultipleYieldAndNestedRequire(t *testing.T) {
	ctx := newCtx()
	p := New[strCtx](ctx)

	var p3 PluginSpec[strCtx]
	p3 = Inline(PluginFunc[strCtx](func(ctx strCtx, yield func() error) error {
		record(ctx, "p3")
		if err := yield(); err != nil {
			return err
		}
		record(ctx, "p3-bis")
		return nil
	}))

	p1 := Inline(PluginFunc[strCtx](func(ctx strCtx, yield func() error) error {
		record(ctx, "p1")
		if err := yield(); err != nil {
			return err
		}
		if err := p.Require(p3); err != nil {
			return err
		}
		record(ctx, "p1-bis")
		if err := yield(); err != nil {
			return err
		}
		record(ctx, "p1-bis-bis")
		return nil
	}))
	p2 := Inline(PluginFunc[strCtx](func(ctx strCtx, yield func() error) error {
		record(ctx, "p2")
		if err := yield(); err != nil {
			return err
		}
		record(ctx, "p2-bis")
		if err := yield(); err != nil {
			return err
		}
		record(ctx, "p2-bis-bis")
		return nil
	}))

	require.NoError(t, p.Run(p1, p2))
	assert.Equal(t, []string{
		"p1", "p2", "p2-bis", "p2-bis-bis", "p3", "p1-bis", "p1-bis-bis", "p3-bis",
	}, *ctx)
}

func TestSelfRequire(t *testing.T) {
	ctx := newCtx()
	p := New[strCtx](ctx)

	var p1 PluginSpec[strCtx]
	p1 = Inline(PluginFunc[strCtx](func(ctx strCtx, yield func() error) error {
		if err := p.Require(p1); err != nil {
			return err
		}
		record(ctx, "p1")
		return nil
	}))

	require.NoError(t, p.Run(p1))
	assert.Equal(t, []string{"p1"}, *ctx)
}

func TestError(t *testing.T) {
	ctx := newCtx()
	p := New[strCtx](ctx)

	p1 := Inline(PluginFunc[strCtx](func(ctx strCtx, yield func() error) error {
		record(ctx, "p1")
		if err := yield(); err != nil {
			return err
		}
		record(ctx, "p1-bis")
		return nil
	}))
	p2 := Inline(PluginFunc[strCtx](func(ctx strCtx, yield func() error) error {
		return errors.New("nope")
	}))

	err := p.Run(p1, p2)
	var pluginErr *PluginError
	require.ErrorAs(t, err, &pluginErr)
	assert.Equal(t, []string{"p1"}, *ctx)
}

func TestErrorFinally(t *testing.T) {
	ctx := newCtx()
	p := New[strCtx](ctx)

	p1 := Inline(PluginFunc[strCtx](func(ctx strCtx, yield func() error) error {
		record(ctx, "p1")
		yieldErr := yield()
		record(ctx, "p1-bis")
		return yieldErr
	}))
	p2 := Inline(PluginFunc[strCtx](func(ctx strCtx, yield func() error) error {
		record(ctx, "p2")
		yieldErr := yield()
		record(ctx, "p2-bis")
		return yieldErr
	}))
	p3 := Inline(PluginFunc[strCtx](func(ctx strCtx, yield func() error) error {
		return errors.New("nope")
	}))

	err := p.Run(p1, p2, p3)
	var pluginErr *PluginError
	require.ErrorAs(t, err, &pluginErr)
	assert.Equal(t, []string{"p1", "p2", "p2-bis", "p1-bis"}, *ctx)
}

func TestErrorRecover(t *testing.T) {
	ctx := newCtx()
	p := New[strCtx](ctx)

	p1 := Inline(PluginFunc[strCtx](func(ctx strCtx, yield func() error) error {
		record(ctx, "p1")
		if err := yield(); err != nil {
			var pluginErr *PluginError
			if errors.As(err, &pluginErr) {
				record(ctx, pluginErr.Unwrap().Error())
				return nil
			}
			return err
		}
		return nil
	}))
	p2 := Inline(PluginFunc[strCtx](func(ctx strCtx, yield func() error) error {
		return errors.New("nope")
	}))

	require.NoError(t, p.Run(p1, p2))
	assert.Equal(t, []string{"p1", "nope"}, *ctx)
}

func TestImportRequire(t *testing.T) {
	ctx := newCtx()
	resolver := NewMapResolver[strCtx]()
	resolver.Register("tests.some_plugin", func(ctx strCtx, yield func() error) error {
		record(ctx, "hello")
		return nil
	})
	p := New[strCtx](ctx, WithResolver[strCtx](resolver))

	require.NoError(t, p.Run(Named[strCtx]("tests.some_plugin")))
	assert.Equal(t, []string{"hello"}, *ctx)
}

func TestImportRequireNotFound(t *testing.T) {
	ctx := newCtx()
	resolver := NewMapResolver[strCtx]()
	p := New[strCtx](ctx, WithResolver[strCtx](resolver))

	err := p.Run(Named[strCtx]("tests.does_not_exist"))
	var importErr *PluginImportError
	require.ErrorAs(t, err, &importErr)
	assert.Equal(t, CodeNotFound, importErr.Code)
	assert.Equal(t, "tests.does_not_exist", importErr.Identifier)
}

func TestImportRequireWhitelist(t *testing.T) {
	ctx := newCtx()
	resolver := NewMapResolver[strCtx]()
	resolver.Register("tests.some_plugin", func(ctx strCtx, yield func() error) error {
		record(ctx, "hello")
		return nil
	})
	p := New[strCtx](ctx, WithResolver[strCtx](resolver), WithWhitelist[strCtx]([]string{"thing"}))

	err := p.Run(Named[strCtx]("tests.some_plugin"))
	var importErr *PluginImportError
	require.ErrorAs(t, err, &importErr)
	assert.Equal(t, CodeNotWhitelisted, importErr.Code)
}

func TestImportRequireWhitelistMatch(t *testing.T) {
	ctx := newCtx()
	resolver := NewMapResolver[strCtx]()
	resolver.Register("tests.some_plugin", func(ctx strCtx, yield func() error) error {
		record(ctx, "hello")
		return nil
	})
	p := New[strCtx](ctx, WithResolver[strCtx](resolver), WithWhitelist[strCtx]([]string{"tests.some_plugin"}))

	require.NoError(t, p.Run(Named[strCtx]("tests.some_plugin")))
	assert.Equal(t, []string{"hello"}, *ctx)
}

func TestRunNoopYield(t *testing.T) {
	ctx := newCtx()
	p := New[strCtx](ctx)

	p1 := Inline(PluginFunc[strCtx](func(ctx strCtx, yield func() error) error {
		record(ctx, "p1")
		return noopYield()
	}))
	require.NoError(t, p.Run(p1))
	assert.Equal(t, []string{"p1"}, *ctx)
}

func TestClosePendingTasks(t *testing.T) {
	ctx := newCtx()
	p := New[strCtx](ctx)

	closed := false
	p1 := Inline(PluginFunc[strCtx](func(ctx strCtx, yield func() error) error {
		record(ctx, "p1")
		err := yield()
		if err != nil {
			closed = true
		}
		return err
	}))

	// Require p1 without a subsequent Run drain so it stays suspended.
	require.NoError(t, p.Require(p1))
	require.NoError(t, p.Close())
	assert.True(t, closed)
	assert.Equal(t, []string{"p1"}, *ctx)
}
