package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryService is an in-process Service for tests and single-instance
// deployments.
type MemoryService struct {
	mu    sync.Mutex
	holds map[string]time.Time // key -> expiry
}

// NewMemoryService creates an in-memory lock service.
func NewMemoryService() *MemoryService {
	return &MemoryService{
		holds: make(map[string]time.Time),
	}
}

// Acquire takes the named lock unless an unexpired hold exists.
func (s *MemoryService) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.holds[key]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	s.holds[key] = time.Now().Add(ttl)
	return true, nil
}

// Release releases the named lock.
func (s *MemoryService) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.holds[key]
	if !ok {
		return ErrNotHeld
	}
	delete(s.holds, key)
	if time.Now().After(expiry) {
		return ErrNotHeld
	}
	return nil
}
