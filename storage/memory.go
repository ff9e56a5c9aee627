package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an ObjectStore kept in process memory. It backs
// STORAGE_DRIVER=memory and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string][]byte
}

func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://objects"
	}
	return &MemoryStore{baseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string][]byte)}
}

func (s *MemoryStore) Upload(ctx context.Context, bucket Bucket, objectPath string, r io.Reader, size int64, contentType string, overwrite bool) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload body: %w", err)
	}
	key := Key(bucket, objectPath)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; ok && !overwrite {
		return "", fmt.Errorf("%s: %w", key, ErrObjectExists)
	}
	s.objects[key] = data
	return s.baseURL + "/" + key, nil
}

func (s *MemoryStore) Open(ctx context.Context, bucket Bucket, objectPath string) (io.ReadCloser, error) {
	return s.open(Key(bucket, objectPath))
}

func (s *MemoryStore) OpenURL(ctx context.Context, url string) (io.ReadCloser, error) {
	key, ok := keyFromURL(s.baseURL, url)
	if !ok {
		return nil, fmt.Errorf("%s: %w", url, ErrObjectNotFound)
	}
	return s.open(key)
}

func (s *MemoryStore) open(key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStore) PublicURL(bucket Bucket, objectPath string) string {
	return s.baseURL + "/" + Key(bucket, objectPath)
}

func (s *MemoryStore) Delete(ctx context.Context, bucket Bucket, objectPath string) error {
	key := Key(bucket, objectPath)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	delete(s.objects, key)
	return nil
}

// Keys lists stored keys under prefix in lexical order.
func (s *MemoryStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
