package testutil

import (
	"context"

	"github.com/renewly/renewly/internal/domain/preorder"
)

// InMemoryPreorderStore implements preorder.Repository
type InMemoryPreorderStore struct {
	*InMemoryStore[*preorder.Preorder]
}

// NewInMemoryPreorderStore creates a new in-memory preorder store
func NewInMemoryPreorderStore() *InMemoryPreorderStore {
	return &InMemoryPreorderStore{
		InMemoryStore: NewInMemoryStore[*preorder.Preorder](),
	}
}

func copyPreorder(p *preorder.Preorder) *preorder.Preorder {
	if p == nil {
		return nil
	}
	copied := *p
	return &copied
}

func (s *InMemoryPreorderStore) Create(ctx context.Context, p *preorder.Preorder) error {
	return s.InMemoryStore.Create(ctx, p.ID, copyPreorder(p))
}

func (s *InMemoryPreorderStore) Get(ctx context.Context, id string) (*preorder.Preorder, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyPreorder(p), nil
}

func (s *InMemoryPreorderStore) Update(ctx context.Context, p *preorder.Preorder) error {
	return s.InMemoryStore.Update(ctx, p.ID, copyPreorder(p))
}
