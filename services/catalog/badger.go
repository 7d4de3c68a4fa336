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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/dgraph-io/badger/v4"
)

const (
	ingredientPrefix = "ingredient/"
	aliasPrefix      = "alias/"
)

// BadgerConfig holds configuration for a BadgerDB-backed catalog.
type BadgerConfig struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal log lines.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Zero disables GC.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64
}

// DefaultBadgerConfig returns defaults for an on-disk catalog at path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryBadgerConfig returns a configuration for tests.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerCatalog is a persistent, editable catalog.
//
// Entries are stored as JSON under "ingredient/<name>"; every alias is a
// separate "alias/<alias>" key holding the canonical name.
//
// Thread Safety: Safe for concurrent use.
type BadgerCatalog struct {
	db     *badger.DB
	logger *slog.Logger
	count  atomic.Int64
	stopGC chan struct{}
	doneGC chan struct{}
}

// OpenBadger opens (or creates) a BadgerDB catalog.
//
// # Inputs
//
//   - cfg: Database configuration. Path is required unless InMemory is true.
//
// # Outputs
//
//   - *BadgerCatalog: The opened catalog. Caller must call Close() when done.
//   - error: Non-nil if the path is invalid or the database cannot be opened.
func OpenBadger(cfg BadgerConfig) (*BadgerCatalog, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent catalog")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create catalog directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
		logger = slog.Default()
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger catalog: %w", err)
	}

	c := &BadgerCatalog{db: db, logger: logger}
	n, err := c.countEntries()
	if err != nil {
		db.Close()
		return nil, err
	}
	c.count.Store(int64(n))

	if cfg.GCInterval > 0 && !cfg.InMemory {
		c.stopGC = make(chan struct{})
		c.doneGC = make(chan struct{})
		go c.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return c, nil
}

func (c *BadgerCatalog) runGC(interval time.Duration, ratio float64) {
	defer close(c.doneGC)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopGC:
			return
		case <-ticker.C:
			err := c.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				c.logger.Warn("catalog value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

// Close stops garbage collection and closes the database.
func (c *BadgerCatalog) Close() error {
	if c.stopGC != nil {
		close(c.stopGC)
		<-c.doneGC
		c.stopGC = nil
	}
	return c.db.Close()
}

// GetIngredient implements Catalog.
func (c *BadgerCatalog) GetIngredient(ctx context.Context, name string) (risk_labeler.Ingredient, error) {
	if err := ctx.Err(); err != nil {
		return risk_labeler.Ingredient{}, err
	}
	var entry Entry
	err := c.db.View(func(txn *badger.Txn) error {
		var err error
		entry, err = resolve(txn, Key(name))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return risk_labeler.Ingredient{}, notFound(name)
	}
	if err != nil {
		return risk_labeler.Ingredient{}, fmt.Errorf("catalog lookup %q: %w", name, err)
	}
	return entry.Ingredient, nil
}

func resolve(txn *badger.Txn, key string) (Entry, error) {
	canonical := key
	item, err := txn.Get([]byte(aliasPrefix + key))
	switch {
	case err == nil:
		v, err := item.ValueCopy(nil)
		if err != nil {
			return Entry{}, err
		}
		canonical = string(v)
	case !errors.Is(err, badger.ErrKeyNotFound):
		return Entry{}, err
	}
	return readEntry(txn, canonical)
}

func readEntry(txn *badger.Txn, name string) (Entry, error) {
	item, err := txn.Get([]byte(ingredientPrefix + name))
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &e)
	})
	return e, err
}

// Put inserts or replaces an entry.
//
// Aliases of a replaced entry are dropped before the new ones are written.
// An alias already owned by a different entry is rejected.
func (c *BadgerCatalog) Put(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.Aliases = append([]string(nil), e.Aliases...)
	if err := e.Validate(); err != nil {
		return err
	}
	created := false
	err := c.db.Update(func(txn *badger.Txn) error {
		var err error
		created, err = putEntry(txn, e)
		return err
	})
	if err != nil {
		return fmt.Errorf("catalog put %q: %w", e.Name, err)
	}
	if created {
		c.count.Add(1)
	}
	return nil
}

func putEntry(txn *badger.Txn, e Entry) (bool, error) {
	old, err := readEntry(txn, e.Name)
	created := errors.Is(err, badger.ErrKeyNotFound)
	if err != nil && !created {
		return false, err
	}
	if owner, err := aliasOwner(txn, e.Name); err != nil {
		return false, err
	} else if owner != "" && owner != e.Name {
		return false, fmt.Errorf("name %q is already an alias of %q", e.Name, owner)
	}
	for _, a := range old.Aliases {
		if err := txn.Delete([]byte(aliasPrefix + a)); err != nil {
			return false, err
		}
	}
	for _, a := range e.Aliases {
		owner, err := aliasOwner(txn, a)
		if err != nil {
			return false, err
		}
		if owner != "" && owner != e.Name {
			return false, fmt.Errorf("alias %q already belongs to %q", a, owner)
		}
		if _, err := txn.Get([]byte(ingredientPrefix + a)); err == nil {
			return false, fmt.Errorf("alias %q is already an ingredient name", a)
		}
		if err := txn.Set([]byte(aliasPrefix+a), []byte(e.Name)); err != nil {
			return false, err
		}
	}
	val, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	return created, txn.Set([]byte(ingredientPrefix+e.Name), val)
}

func aliasOwner(txn *badger.Txn, alias string) (string, error) {
	item, err := txn.Get([]byte(aliasPrefix + alias))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	v, err := item.ValueCopy(nil)
	return string(v), err
}

// Delete removes an entry and its aliases. Deleting an unknown name returns
// an error wrapping ErrNotFound.
func (c *BadgerCatalog) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := Key(name)
	err := c.db.Update(func(txn *badger.Txn) error {
		e, err := readEntry(txn, key)
		if err != nil {
			return err
		}
		for _, a := range e.Aliases {
			if err := txn.Delete([]byte(aliasPrefix + a)); err != nil {
				return err
			}
		}
		return txn.Delete([]byte(ingredientPrefix + key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return notFound(name)
	}
	if err != nil {
		return fmt.Errorf("catalog delete %q: %w", name, err)
	}
	c.count.Add(-1)
	return nil
}

// Import copies every entry of src into the database in one transaction
// per entry and returns the number of entries written.
func (c *BadgerCatalog) Import(ctx context.Context, src Lister) (int, error) {
	entries, err := src.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list import source: %w", err)
	}
	for i, e := range entries {
		if err := c.Put(ctx, e); err != nil {
			return i, err
		}
	}
	c.logger.Info("catalog import complete", "entries", len(entries))
	return len(entries), nil
}

// List implements Lister.
func (c *BadgerCatalog) List(ctx context.Context) ([]Entry, error) {
	var out []Entry
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(ingredientPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Len implements Lister.
func (c *BadgerCatalog) Len() int {
	return int(c.count.Load())
}

func (c *BadgerCatalog) countEntries() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(ingredientPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count catalog entries: %w", err)
	}
	return n, nil
}
