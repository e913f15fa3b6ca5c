package decider

import "sync"

// Store persists the last recorded decision hash per output path.
type Store interface {
	Get(output string) (string, bool, error)
	Put(output, hash string) error
	Delete(output string) error
	Close() error
}

// MemoryStore keeps decisions for the lifetime of the process.
type MemoryStore struct {
	mu        sync.RWMutex
	decisions map[string]string
}

// NewMemoryStore creates an empty in-memory decision store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{decisions: make(map[string]string)}
}

func (s *MemoryStore) Get(output string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.decisions[output]
	return h, ok, nil
}

func (s *MemoryStore) Put(output, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[output] = hash
	return nil
}

func (s *MemoryStore) Delete(output string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.decisions, output)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
