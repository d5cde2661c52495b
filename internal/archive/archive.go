// Package archive persists simulation results to pluggable storage
// backends.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantforge/backcast/internal/core"
)

// Store defines the interface for archive storage backends
type Store interface {
	// Put stores data at the given path
	Put(ctx context.Context, path string, data []byte) error

	// Get retrieves data from the given path
	Get(ctx context.Context, path string) ([]byte, error)

	// List returns all paths matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver writes JSON result documents under kind/symbol/timestamp keys.
type Archiver struct {
	store Store
	now   func() time.Time
}

// NewArchiver wraps a store.
func NewArchiver(store Store) *Archiver {
	return &Archiver{store: store, now: time.Now}
}

// SaveResult marshals v and stores it, returning the archive path.
func (a *Archiver) SaveResult(ctx context.Context, kind, symbol string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", core.WrapError(core.ErrArchiveFailed, err)
	}

	path := fmt.Sprintf("%s/%s/%s.json", kind, symbol, a.now().UTC().Format("20060102T150405"))
	if err := a.store.Put(ctx, path, data); err != nil {
		return "", core.WrapError(core.ErrArchiveFailed, err)
	}
	return path, nil
}

// LoadResult reads an archived document into v.
func (a *Archiver) LoadResult(ctx context.Context, path string, v any) error {
	data, err := a.store.Get(ctx, path)
	if err != nil {
		return core.WrapError(core.ErrArchiveFailed, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return core.WrapError(core.ErrArchiveFailed, err)
	}
	return nil
}

// ListResults returns archive paths for a result kind, optionally filtered
// by symbol.
func (a *Archiver) ListResults(ctx context.Context, kind, symbol string) ([]string, error) {
	prefix := kind
	if symbol != "" {
		prefix = kind + "/" + symbol
	}
	paths, err := a.store.List(ctx, prefix)
	if err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, err)
	}
	return paths, nil
}
