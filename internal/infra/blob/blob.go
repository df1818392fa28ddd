// Package blob models the image storage collaborator: bytes in, URL out.
// Question images ride this path; nothing on the live session critical path
// does.
package blob

import (
	"context"
	"fmt"
	"sync"
)

// Store uploads image bytes and returns a retrievable URL.
type Store interface {
	Upload(ctx context.Context, data []byte, path string) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
}

// MemoryStore keeps uploads in process and serves them under a base URL.
// Stands in for an object store behind the same contract.
type MemoryStore struct {
	baseURL string

	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: baseURL, blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Upload(_ context.Context, data []byte, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("blob path is required")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.mu.Lock()
	s.blobs[path] = buf
	s.mu.Unlock()
	return s.baseURL + "/" + path, nil
}

func (s *MemoryStore) Get(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[path]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", path)
	}
	return data, nil
}
