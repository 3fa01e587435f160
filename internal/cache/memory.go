package cache

import (
	"context"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"aurionplan/internal/model"
)

const memoryCapacity = 1024

// MemoryStore keeps records in process, evicting them after ttl.
type MemoryStore struct {
	lru *expirable.LRU[string, Record]
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{lru: expirable.NewLRU[string, Record](memoryCapacity, nil, ttl)}
}

func (s *MemoryStore) Get(_ context.Context, owner string) (*Record, error) {
	rec, ok := s.lru.Get(owner)
	if !ok {
		return nil, ErrNotFound
	}
	rec.Events = slices.Clone(rec.Events)
	return &rec, nil
}

func (s *MemoryStore) Save(_ context.Context, owner string, events []model.NormalizedEvent, at time.Time) error {
	s.lru.Add(owner, Record{Owner: owner, Events: slices.Clone(events), LastUpdatedAt: at})
	return nil
}

func (s *MemoryStore) Close() error {
	s.lru.Purge()
	return nil
}
