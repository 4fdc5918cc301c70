package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when no profile exists for a ref.
var ErrNotFound = errors.New("profile not found")

// Store reads and updates profile records. Updates use last-write
// semantics; concurrent verification attempts for the same profile are
// not serialized here.
type Store interface {
	// FindByRef returns the profile for ref or ErrNotFound.
	FindByRef(ctx context.Context, ref string) (*Profile, error)

	// Update applies a partial update and returns the updated profile.
	Update(ctx context.Context, ref string, update Update) (*Profile, error)
}

// MemoryStore is an in-memory Store, safe for concurrent use. Intended
// for tests and single-node deployments.
type MemoryStore struct {
	mutex    sync.Mutex
	profiles map[string]*Profile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*Profile),
	}
}

// Put inserts or replaces a profile.
func (s *MemoryStore) Put(p *Profile) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.profiles[p.Ref] = p.clone()
}

func (s *MemoryStore) FindByRef(ctx context.Context, ref string) (*Profile, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, ok := s.profiles[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return p.clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, ref string, update Update) (*Profile, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, ok := s.profiles[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	p.apply(update)
	return p.clone(), nil
}
