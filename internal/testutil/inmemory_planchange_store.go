package testutil

import (
	"context"
	"sort"

	"github.com/renewly/renewly/internal/domain/planchange"
	ierr "github.com/renewly/renewly/internal/errors"
)

// InMemoryPlanChangeStore implements planchange.Repository
type InMemoryPlanChangeStore struct {
	*InMemoryStore[*planchange.PlanChange]
}

// NewInMemoryPlanChangeStore creates a new in-memory plan change store
func NewInMemoryPlanChangeStore() *InMemoryPlanChangeStore {
	return &InMemoryPlanChangeStore{
		InMemoryStore: NewInMemoryStore[*planchange.PlanChange](),
	}
}

func copyPlanChange(change *planchange.PlanChange) *planchange.PlanChange {
	if change == nil {
		return nil
	}
	copied := *change
	return &copied
}

func (s *InMemoryPlanChangeStore) Create(ctx context.Context, change *planchange.PlanChange) error {
	return s.InMemoryStore.Create(ctx, change.ID, copyPlanChange(change))
}

func (s *InMemoryPlanChangeStore) Get(ctx context.Context, id string) (*planchange.PlanChange, error) {
	change, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyPlanChange(change), nil
}

func (s *InMemoryPlanChangeStore) Update(ctx context.Context, change *planchange.PlanChange) error {
	return s.InMemoryStore.Update(ctx, change.ID, copyPlanChange(change))
}

func (s *InMemoryPlanChangeStore) GetLiveForSubscription(ctx context.Context, subscriptionID string) (*planchange.PlanChange, error) {
	live, err := s.ListLiveForSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return nil, ierr.NewError("no live plan change").
			WithReportableDetails(map[string]any{"subscription_id": subscriptionID}).
			Mark(ierr.ErrNotFound)
	}
	return live[0], nil
}

func (s *InMemoryPlanChangeStore) ListLiveForSubscription(ctx context.Context, subscriptionID string) ([]*planchange.PlanChange, error) {
	var live []*planchange.PlanChange
	for _, change := range s.InMemoryStore.List(ctx) {
		if change.SubscriptionID == subscriptionID && change.IsLive() {
			live = append(live, copyPlanChange(change))
		}
	}
	sort.Slice(live, func(i, j int) bool {
		return live[i].CreatedAt.After(live[j].CreatedAt)
	})
	return live, nil
}
