// Package memory is an in-process key-value store used by tests and by the
// "memory" database driver for local development. Expired keys are dropped
// lazily on access and by PurgeExpired.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"forum-invitations/internal/repository"
)

var ErrWrongType = errors.New("operation against a key holding the wrong kind of value")

type kind int

const (
	kindString kind = iota
	kindSet
	kindHash
)

type entry struct {
	kind     kind
	str      string
	set      map[string]struct{}
	hash     map[string]string
	expireAt time.Time
}

type Store struct {
	mu   sync.Mutex
	data map[string]*entry
	now  func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now for expiry checks
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		data: make(map[string]*entry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ repository.KVStore   = (*Store)(nil)
	_ repository.KeyPurger = (*Store)(nil)
)

// live returns the entry for key, dropping it first if it has expired.
// Callers hold s.mu.
func (s *Store) live(key string) *entry {
	e, ok := s.data[key]
	if !ok {
		return nil
	}
	if !e.expireAt.IsZero() && !s.now().Before(e.expireAt) {
		delete(s.data, key)
		return nil
	}
	return e
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		return "", nil
	}
	if e.kind != kindString {
		return "", ErrWrongType
	}
	return e.str, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e != nil && e.kind != kindString {
		return ErrWrongType
	}
	if e == nil {
		e = &entry{kind: kindString}
		s.data[key] = e
	}
	e.str = value
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.live(key) != nil, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

func (s *Store) DeleteAll(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *Store) PExpireAt(ctx context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.live(key); e != nil {
		e.expireAt = at
	}
	return nil
}

func (s *Store) SetAdd(ctx context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e != nil && e.kind != kindSet {
		return ErrWrongType
	}
	if e == nil {
		e = &entry{kind: kindSet, set: make(map[string]struct{})}
		s.data[key] = e
	}
	e.set[member] = struct{}{}
	return nil
}

func (s *Store) SetRemove(ctx context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		return nil
	}
	if e.kind != kindSet {
		return ErrWrongType
	}
	delete(e.set, member)
	if len(e.set) == 0 {
		delete(s.data, key)
	}
	return nil
}

func (s *Store) SetCount(ctx context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		return 0, nil
	}
	if e.kind != kindSet {
		return 0, ErrWrongType
	}
	return len(e.set), nil
}

func (s *Store) GetSetMembers(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		return []string{}, nil
	}
	if e.kind != kindSet {
		return nil, ErrWrongType
	}
	members := make([]string, 0, len(e.set))
	for m := range e.set {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

func (s *Store) SetObject(ctx context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e != nil && e.kind != kindHash {
		return ErrWrongType
	}
	if e == nil {
		e = &entry{kind: kindHash, hash: make(map[string]string, len(fields))}
		s.data[key] = e
	}
	for k, v := range fields {
		e.hash[k] = v
	}
	return nil
}

func (s *Store) GetObject(ctx context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		return nil, nil
	}
	if e.kind != kindHash {
		return nil, ErrWrongType
	}
	out := make(map[string]string, len(e.hash))
	for k, v := range e.hash {
		out[k] = v
	}
	return out, nil
}

func (s *Store) GetObjectField(ctx context.Context, key, field string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		return "", nil
	}
	if e.kind != kindHash {
		return "", ErrWrongType
	}
	return e.hash[field], nil
}

// PurgeExpired drops every expired key and reports how many were removed
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for key, e := range s.data {
		if !e.expireAt.IsZero() && !now.Before(e.expireAt) {
			delete(s.data, key)
			n++
		}
	}
	return n, nil
}
