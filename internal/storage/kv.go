// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for the docchat TUI.
//
// The persistence model mirrors browser local storage: a flat key/value
// namespace holding whole JSON blobs. Callers read a full value, mutate in
// memory, and write the full value back; there is no append primitive and
// no locking. A single UI goroutine is the only writer within one process.
// Two processes sharing a state directory race last-writer-wins; see
// Watcher for the change notification used to at least reload on external
// writes.
package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/morganforge/docchat-tui/internal/util"
)

// =============================================================================
// KV INTERFACE
// =============================================================================

// KV is a flat key/value namespace of opaque blobs. Implementations must
// treat values as whole units: Set replaces, Get returns the full value.
type KV interface {
	// Get returns the value for key and whether it exists.
	Get(key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Keys returns all stored keys in lexical order.
	Keys() ([]string, error)
}

// =============================================================================
// FILE-BACKED KV
// =============================================================================

// FileKV stores each key as one file under a base directory.
type FileKV struct {
	// BaseDir is the directory holding one file per key.
	// Default: ~/.docchat/state/
	BaseDir string
}

// fileExt is appended to every key's file so stray files in the directory
// (editor backups, the watcher's temp files) are ignored on listing.
const fileExt = ".json"

// NewFileKV creates a file-backed KV rooted at the default state directory.
func NewFileKV() (*FileKV, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewFileKVWithDir(filepath.Join(homeDir, ".docchat", "state"))
}

// NewFileKVWithDir creates a file-backed KV rooted at baseDir.
func NewFileKVWithDir(baseDir string) (*FileKV, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &FileKV{BaseDir: baseDir}, nil
}

// Get returns the value for key and whether it exists.
func (s *FileKV) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Set stores value under key using an atomic write with fsync, so a crash
// never leaves a half-written blob behind.
func (s *FileKV) Set(key string, value []byte) error {
	return util.AtomicWriteFile(s.filePath(key), value, 0644)
}

// Delete removes key.
func (s *FileKV) Delete(key string) error {
	if err := os.Remove(s.filePath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Keys returns all stored keys in lexical order.
func (s *FileKV) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		keys = append(keys, unescapeKey(strings.TrimSuffix(entry.Name(), fileExt)))
	}
	sort.Strings(keys)
	return keys, nil
}

// filePath returns the file path for a key.
func (s *FileKV) filePath(key string) string {
	return filepath.Join(s.BaseDir, escapeKey(key)+fileExt)
}

// escapeKey makes a key safe to use as a file name. Keys are generated by
// this application and are already plain ASCII; the escaping only guards
// against path separators sneaking in through a crafted conversation id.
func escapeKey(key string) string {
	key = strings.ReplaceAll(key, "%", "%25")
	key = strings.ReplaceAll(key, "/", "%2F")
	key = strings.ReplaceAll(key, `\`, "%5C")
	return key
}

// unescapeKey reverses escapeKey.
func unescapeKey(name string) string {
	name = strings.ReplaceAll(name, "%5C", `\`)
	name = strings.ReplaceAll(name, "%2F", "/")
	name = strings.ReplaceAll(name, "%25", "%")
	return name
}

// =============================================================================
// IN-MEMORY KV
// =============================================================================

// MemKV is a map-backed KV for tests and ephemeral sessions.
type MemKV struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemKV creates an empty in-memory KV.
func NewMemKV() *MemKV {
	return &MemKV{values: make(map[string][]byte)}
}

// Get returns the value for key and whether it exists.
func (s *MemKV) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	// Copy so callers cannot mutate the stored blob in place.
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Set stores value under key.
func (s *MemKV) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	s.values[key] = stored
	return nil
}

// Delete removes key.
func (s *MemKV) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Keys returns all stored keys in lexical order.
func (s *MemKV) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
