// Package storage provides content-addressed blob storage for uploaded
// images, crops and generated avatars.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrBlobNotFound is returned when no blob exists for a ref.
var ErrBlobNotFound = errors.New("blob not found")

// Meta describes a stored blob.
type Meta struct {
	ContentType string `json:"content_type"`
	// Kind labels what the blob is: "upload", "selfie", "document",
	// "avatar".
	Kind       string `json:"kind"`
	ProfileRef string `json:"profile_ref,omitempty"`
}

// BlobStore stores opaque binary blobs under generated refs.
type BlobStore interface {
	// Get returns the blob bytes for ref or ErrBlobNotFound.
	Get(ctx context.Context, ref string) ([]byte, error)

	// Put stores data and returns the ref it can be fetched under.
	Put(ctx context.Context, data []byte, meta Meta) (string, error)
}

func newRef() string {
	return uuid.NewString()
}

// MemoryStore is an in-memory BlobStore, safe for concurrent use.
type MemoryStore struct {
	mutex sync.Mutex
	blobs map[string][]byte
	metas map[string]Meta
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
		metas: make(map[string]Meta),
	}
}

func (s *MemoryStore) Get(ctx context.Context, ref string) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, ok := s.blobs[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, ref)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Put(ctx context.Context, data []byte, meta Meta) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ref := newRef()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.blobs[ref] = stored
	s.metas[ref] = meta
	return ref, nil
}

// PutWithRef stores data under a caller-chosen ref. Used by tests to
// seed known refs.
func (s *MemoryStore) PutWithRef(ref string, data []byte, meta Meta) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.blobs[ref] = data
	s.metas[ref] = meta
}

// MetaFor returns the stored metadata for ref.
func (s *MemoryStore) MetaFor(ref string) (Meta, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	meta, ok := s.metas[ref]
	return meta, ok
}
