// Package memory provides an in-process db.Store backed by go-cache.
// It serves single-node deployments and tests where no Valkey/Redis is available.
package memory

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kailas-cloud/fedcat/internal/db"
)

var _ db.Store = (*Store)(nil)

const cleanupInterval = time.Minute

// Store keeps entries in a go-cache instance.
type Store struct {
	cache  *gocache.Cache
	closed atomic.Bool
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{cache: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Ping fails only after Close.
func (s *Store) Ping(_ context.Context) error {
	if s.closed.Load() {
		return &db.Error{Op: db.OpPing, Err: db.ErrClosed}
	}
	return nil
}

// Close drops every entry and rejects further operations.
func (s *Store) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.cache.Flush()
	}
}

// WaitForReady returns immediately; the store is ready once constructed.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return s.Ping(ctx)
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, &db.Error{Op: db.OpGet, Err: db.ErrClosed}
	}
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	data, _ := v.([]byte)
	return append([]byte(nil), data...), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.closed.Load() {
		return &db.Error{Op: db.OpSet, Err: db.ErrClosed}
	}
	exp := gocache.NoExpiration
	if ttl > 0 {
		exp = ttl
	}
	s.cache.Set(key, append([]byte(nil), value...), exp)
	return nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	if s.closed.Load() {
		return false, &db.Error{Op: db.OpExists, Err: db.ErrClosed}
	}
	_, ok := s.cache.Get(key)
	return ok, nil
}

func (s *Store) Del(_ context.Context, key string) error {
	if s.closed.Load() {
		return &db.Error{Op: db.OpDel, Err: db.ErrClosed}
	}
	s.cache.Delete(key)
	return nil
}
