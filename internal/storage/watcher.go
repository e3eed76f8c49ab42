// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// STATE DIRECTORY WATCHER
// =============================================================================

// Watcher reports external changes to a FileKV's state directory so the UI
// can reload data another process wrote. Events are debounced: a burst of
// writes to the same key produces one notification.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	changes  chan string

	mu      sync.Mutex
	pending map[string]time.Time // key -> last change time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWatcher creates a watcher over the FileKV's base directory. Call Watch
// to start it and Close to stop it.
func NewWatcher(kv *FileKV, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		dir:      kv.BaseDir,
		watcher:  fsw,
		debounce: debounce,
		changes:  make(chan string, 16),
		pending:  make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Changes returns the channel of changed KV keys. The channel is closed
// when the watcher stops.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Watch starts delivering change notifications.
func (w *Watcher) Watch() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	go w.processEvents()
	go w.processPending()

	return nil
}

// processEvents consumes raw filesystem events and records affected keys.
func (w *Watcher) processEvents() {
	defer func() {
		// A panic here must not take down the UI.
		_ = recover()
	}()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Atomic writes land as a rename onto the target; direct
			// writes and deletes matter too.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}

			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, fileExt) {
				continue // temp files from in-flight atomic writes
			}
			key := unescapeKey(strings.TrimSuffix(name, fileExt))

			w.mu.Lock()
			w.pending[key] = time.Now()
			w.mu.Unlock()

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// processPending flushes debounced keys to the changes channel.
func (w *Watcher) processPending() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			close(w.changes)
			return

		case <-ticker.C:
			now := time.Now()

			w.mu.Lock()
			var ready []string
			for key, changeTime := range w.pending {
				if now.Sub(changeTime) >= w.debounce {
					ready = append(ready, key)
					delete(w.pending, key)
				}
			}
			w.mu.Unlock()

			for _, key := range ready {
				select {
				case w.changes <- key:
				case <-w.ctx.Done():
					close(w.changes)
					return
				}
			}
		}
	}
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}
