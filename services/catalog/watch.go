// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/fsnotify/fsnotify"
)

// WatchOptions configures a WatchedCatalog.
type WatchOptions struct {
	// Debounce is how long to wait after the last change before reloading.
	// Default: 250ms.
	Debounce time.Duration

	// Logger receives reload results. Default: slog.Default().
	Logger *slog.Logger

	// OnReload, if set, is called after every reload attempt with the new
	// entry count or the error that kept the previous snapshot in place.
	OnReload func(entries int, err error)
}

// WatchedCatalog serves a YAML catalog file and reloads it when it changes.
//
// The parent directory is watched rather than the file itself so that
// editors that save by rename are picked up. A reload that fails to parse
// keeps the previous snapshot.
//
// Thread Safety: Safe for concurrent use.
type WatchedCatalog struct {
	path     string
	current  atomic.Pointer[MemoryCatalog]
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
	onReload func(int, error)

	mu       sync.Mutex
	watching bool
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewWatchedCatalog loads path and prepares a watcher for it. Call Start to
// begin watching and Stop to release the watcher.
func NewWatchedCatalog(path string, opts *WatchOptions) (*WatchedCatalog, error) {
	if opts == nil {
		opts = &WatchOptions{}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve catalog path: %w", err)
	}
	initial, err := LoadFile(abs)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &WatchedCatalog{
		path:     abs,
		watcher:  watcher,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		onReload: opts.OnReload,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	if w.debounce <= 0 {
		w.debounce = 250 * time.Millisecond
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.current.Store(initial)
	return w, nil
}

// Start begins watching. It returns immediately; watching stops when ctx
// is canceled or Stop is called. Calling Start twice is a no-op.
func (w *WatchedCatalog) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watching {
		return nil
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.watching = true
	go w.loop(ctx)
	return nil
}

// Stop stops watching and waits for the watch goroutine to exit.
func (w *WatchedCatalog) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
		w.mu.Lock()
		started := w.watching
		w.watching = false
		w.mu.Unlock()
		if started {
			<-w.stopped
		}
	})
}

func (w *WatchedCatalog) loop(ctx context.Context) {
	defer close(w.stopped)

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || !relevant(event.Op) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("catalog watcher error", "path", w.path, "error", err)
		case <-timerC:
			timer, timerC = nil, nil
			w.Reload()
		}
	}
}

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Create) || op.Has(fsnotify.Write) || op.Has(fsnotify.Rename)
}

// Reload re-reads the file now. On failure the previous snapshot stays in
// place and the error is returned.
func (w *WatchedCatalog) Reload() error {
	next, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error("catalog reload failed, keeping previous snapshot",
			"path", w.path, "error", err)
		if w.onReload != nil {
			w.onReload(0, err)
		}
		return err
	}
	w.current.Store(next)
	w.logger.Info("catalog reloaded", "path", w.path, "entries", next.Len())
	if w.onReload != nil {
		w.onReload(next.Len(), nil)
	}
	return nil
}

// Snapshot returns the catalog currently being served.
func (w *WatchedCatalog) Snapshot() *MemoryCatalog {
	return w.current.Load()
}

// GetIngredient implements Catalog.
func (w *WatchedCatalog) GetIngredient(ctx context.Context, name string) (risk_labeler.Ingredient, error) {
	return w.current.Load().GetIngredient(ctx, name)
}

// List implements Lister.
func (w *WatchedCatalog) List(ctx context.Context) ([]Entry, error) {
	return w.current.Load().List(ctx)
}

// Len implements Lister.
func (w *WatchedCatalog) Len() int {
	return w.current.Load().Len()
}
