// Package store holds the units of a build and records which of them the
// section builder actually read.
package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/matrix-org/batesian/pkg/logger"
)

// ErrKeyNotFound is returned by Get for a key the store does not hold.
var ErrKeyNotFound = errors.New("unit key not found")

// Store wraps a unit mapping and tracks reads. Values are not copied: units
// are never mutated after they are loaded.
type Store struct {
	data     map[string]any
	accessed map[string]struct{}
	log      logger.Logger
	mu       sync.Mutex
}

// New creates a store over units. A nil logger discards access logging.
func New(units map[string]any, log logger.Logger) *Store {
	if units == nil {
		units = map[string]any{}
	}
	if log == nil {
		log = logger.NewSilentLogger()
	}
	return &Store{
		data:     units,
		accessed: make(map[string]struct{}),
		log:      log,
	}
}

// Get returns the unit for key and marks it accessed.
func (s *Store) Get(key string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	if _, seen := s.accessed[key]; !seen {
		s.accessed[key] = struct{}{}
		s.log.Debug("unit accessed", logger.F("key", key))
	}
	return v, nil
}

// Has reports whether key exists without marking it accessed.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

// Len returns the number of units held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Keys returns every unit key, sorted. It does not mark anything accessed.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.data, nil)
}

// KeysWithPrefix returns the sorted keys starting with prefix.
func (s *Store) KeysWithPrefix(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.data, func(k string) bool { return strings.HasPrefix(k, prefix) })
}

// AccessedKeys returns the keys read through Get, sorted.
func (s *Store) AccessedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.accessed))
	for k := range s.accessed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UnaccessedKeys returns all keys minus the accessed ones, sorted.
func (s *Store) UnaccessedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.data, func(k string) bool {
		_, seen := s.accessed[k]
		return !seen
	})
}

func sortedKeys(m map[string]any, keep func(string) bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if keep == nil || keep(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
