package objectstore

import (
	"sync"

	"github.com/auriora/edenfs/internal/model"
	"github.com/auriora/edenfs/internal/objhash"
)

// MemStore is an in-memory Store, used by tests in place of a real
// bbolt-backed or remote backend.
type MemStore struct {
	mu    sync.RWMutex
	trees map[objhash.Hash]*model.Tree
	blobs map[objhash.Hash]*model.Blob
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		trees: make(map[objhash.Hash]*model.Tree),
		blobs: make(map[objhash.Hash]*model.Blob),
	}
}

func (s *MemStore) GetTree(hash objhash.Hash) (*model.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trees[hash], nil
}

func (s *MemStore) GetBlob(hash objhash.Hash) (*model.Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blobs[hash], nil
}

func (s *MemStore) GetSha1ForBlob(hash objhash.Hash) (objhash.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.blobs[hash]; ok {
		return b.SelfHash, nil
	}
	return hash, nil
}

// PutTree registers a tree for later lookup by its own SelfHash.
func (s *MemStore) PutTree(t *model.Tree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trees[t.SelfHash] = t
}

// PutBlob registers a blob for later lookup and returns its content hash.
func (s *MemStore) PutBlob(data []byte) objhash.Hash {
	b := model.NewBlob(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[b.SelfHash] = b
	return b.SelfHash
}
