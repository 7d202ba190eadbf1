package storage

import (
	"context"
	"sync"
)

// MemoryStorage is a process-local Storage used by tests and by deployments without a cache.
type MemoryStorage struct {
	mu   sync.Mutex
	data map[string][]byte
	fail error
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: map[string][]byte{}}
}

func (s *MemoryStorage) Load(c context.Context, key string, v interface{}) (bool, error) {
	s.mu.Lock()
	data, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := decode(data, v); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *MemoryStorage) Save(c context.Context, key string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	data, err := encode(v)
	if err != nil {
		return err
	}
	s.data[key] = data
	return nil
}

func (s *MemoryStorage) Delete(c context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Raw returns the stored bytes for key.
func (s *MemoryStorage) Raw(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[key]
	return data, ok
}

// SetRaw stores bytes under key as-is.
func (s *MemoryStorage) SetRaw(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
}

// FailWith makes every later Save return err, nil restores normal writes.
func (s *MemoryStorage) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}
