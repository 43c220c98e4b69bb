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

package allowlist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/relaykit/pipeline/internal/atomicx"
	"github.com/relaykit/pipeline/internal/log"
)

// reloadDebounce coalesces a burst of writes from an editor's atomic-save
// into a single reload.
const reloadDebounce = 500 * time.Millisecond

// FileProvider watches an allow-list file and delivers its parsed contents
// on a channel, once immediately and again after every debounced change.
// Unlike a config watcher guarding a richer document, an allow-list is just
// a flat []string: FileProvider does not need to distinguish a transient
// remove-then-recreate (an editor's atomic save) from any other change,
// because it watches the containing directory — the Create half of that
// pair arrives as its own event and triggers a reload on its own, with no
// separate recovery loop required.
type FileProvider struct {
	parseType ParseType
	path      string
	dir       string
	logger    log.Logger

	mu      sync.Mutex
	timer   *time.Timer
	watcher *fsnotify.Watcher

	out    chan Config
	done   chan struct{}
	wg     sync.WaitGroup
	active *atomicx.Bool
}

// NewFileProvider creates a FileProvider for the allow-list file at path,
// decoded according to parseType. The file must already exist.
func NewFileProvider(parseType ParseType, path string, logger log.Logger) (*FileProvider, error) {
	if err := parseType.requireValid(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if logger == nil {
		logger = log.Nop()
	}

	return &FileProvider{
		parseType: parseType,
		path:      path,
		dir:       filepath.Dir(path),
		logger:    logger,
		active:    atomicx.NewBool(),
		done:      make(chan struct{}),
	}, nil
}

// Watch starts the file watch and returns a channel delivering the current
// allow-list, then an updated one after each debounced change. The channel
// holds one pending list; a reload that finds it still unread is dropped
// with a warning. Calling Watch twice without an intervening Close returns
// an error.
func (f *FileProvider) Watch() (<-chan Config, error) {
	if !f.active.CompareAndSwap(false, true) {
		return nil, errors.New("provider is running")
	}

	cfg, err := f.load()
	if err != nil {
		f.active.Store(false)
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.active.Store(false)
		return nil, err
	}
	if err := watcher.Add(f.dir); err != nil {
		f.active.Store(false)
		return nil, err
	}
	f.watcher = watcher

	f.out = make(chan Config, 1)
	f.out <- cfg

	f.logger.Info("watching allow-list file",
		log.StringField("path", f.path), log.StringField("format", f.parseType.String()))

	f.wg.Add(1)
	go f.run()

	return f.out, nil
}

func (f *FileProvider) run() {
	defer f.wg.Done()
	defer func() {
		if err := f.watcher.Close(); err != nil {
			f.logger.Error("failed to close allow-list watcher", log.ErrorField(err))
		}
	}()

	for {
		select {
		case e, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != filepath.Clean(f.path) {
				continue
			}
			f.logger.Debug("allow-list file event", log.StringField("op", e.Op.String()))
			switch e.Op {
			case fsnotify.Chmod:
				// permissions-only change, nothing to reload
			default:
				f.debouncedReload()
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Error("allow-list watcher error", log.ErrorField(err))
		case <-f.done:
			return
		}
	}
}

// debouncedReload (re)arms a single-shot timer so a burst of writes only
// triggers one reload once things settle.
func (f *FileProvider) debouncedReload() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.timer != nil {
		stopTimer(f.timer)
	}
	f.timer = time.AfterFunc(reloadDebounce, func() {
		cfg, err := f.load()
		if err != nil {
			f.logger.Warn("allow-list file unreadable after change, keeping previous list",
				log.ErrorField(err))
			return
		}
		select {
		case f.out <- cfg:
		default:
			f.logger.Warn("allow-list consumer is behind, dropping a reload")
		}
	})
}

func (f *FileProvider) load() (Config, error) {
	bs, err := os.ReadFile(f.path)
	if err != nil {
		return Config{}, err
	}
	return parse(f.parseType, bs)
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

// Close stops the watch goroutine and closes the delivery channel. A no-op
// if the provider was never started or is already closed.
func (f *FileProvider) Close() {
	if !f.active.CompareAndSwap(true, false) {
		return
	}

	close(f.done)
	f.wg.Wait()

	f.mu.Lock()
	if f.timer != nil {
		stopTimer(f.timer)
	}
	f.mu.Unlock()

	close(f.out)
}
