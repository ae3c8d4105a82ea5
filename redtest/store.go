package redtest

import (
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// Store is the in-memory keyspace behind the test server. Every write bumps
// a per-key version counter, which is what WATCH/EXEC compare to decide
// whether a transaction must abort.
type Store struct {
	mu       sync.RWMutex
	data     map[string]string
	versions map[string]uint64
}

func NewStore() *Store {
	return &Store{
		data:     map[string]string{},
		versions: map[string]uint64{},
	}
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	return val, ok
}

func (s *Store) Set(key, val string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = val
	s.versions[key]++
}

func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return false
	}
	delete(s.data, key)
	s.versions[key]++
	return true
}

// IncrBy adjusts the integer value stored at key by delta, treating a
// missing key as zero.
func (s *Store) IncrBy(key string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	if val, ok := s.data[key]; ok {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return 0, errors.New("ERR value is not an integer or out of range")
		}
		n = parsed
	}
	n += delta
	s.data[key] = strconv.Itoa(n)
	s.versions[key]++
	return n, nil
}

// Version returns the write counter for key. Keys never written are at
// version zero.
func (s *Store) Version(key string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[key]
}
