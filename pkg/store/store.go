// Package store holds the per-client application state shared by every page
// of a router shell.
//
// A Store is created exactly once per shell, from the snapshot the server
// rendered into the page (or empty). Pages read and write it through typed
// keys:
//
//	var Greeting = store.NewKey[string]("greeting")
//
//	Greeting.Set(st, "hello")
//	msg, ok := Greeting.Get(st)
package store

import (
	"bytes"
	"encoding/json"
	"sort"
	"sync"

	"github.com/vango-dev/splitroute/internal/errors"
)

// Snapshot is the serialized form of a Store: key to JSON value.
type Snapshot map[string]json.RawMessage

// Store is a concurrency-safe key/value state container.
type Store struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
}

// New creates a Store populated from snap. A nil snapshot yields an empty store.
func New(snap Snapshot) *Store {
	values := make(map[string]json.RawMessage, len(snap))
	for k, v := range snap {
		values[k] = append(json.RawMessage(nil), v...)
	}
	return &Store{values: values}
}

// Decode parses a serialized snapshot. Empty input and "null" decode to an
// empty snapshot.
func Decode(data []byte) (Snapshot, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Snapshot{}, nil
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.New("E301").Wrap(err)
	}
	return snap, nil
}

// Set stores v under key.
func (s *Store) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.values[key] = raw
	s.mu.Unlock()
	return nil
}

// Get decodes the value under key into dst. It reports whether the key exists.
func (s *Store) Get(key string, dst any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

// Has reports whether key is set.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Delete removes key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Snapshot, len(s.values))
	for k, v := range s.values {
		snap[k] = append(json.RawMessage(nil), v...)
	}
	return snap
}

// MarshalJSON implements json.Marshaler.
func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// SerializeForScript encodes v as JSON that is safe to embed inside a
// <script> element: '<', '>' and '&' and the JS line separators are escaped.
func SerializeForScript(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// Key is a typed accessor for one store entry.
type Key[T any] struct {
	name string
}

// NewKey declares a typed store key.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the key's store name.
func (k Key[T]) Name() string {
	return k.name
}

// Get returns the value for k, or the zero value and false when unset or
// undecodable.
func (k Key[T]) Get(s *Store) (T, bool) {
	var v T
	ok, err := s.Get(k.name, &v)
	if err != nil || !ok {
		var zero T
		return zero, false
	}
	return v, true
}

// Set stores v for k.
func (k Key[T]) Set(s *Store, v T) error {
	return s.Set(k.name, v)
}
