package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/renewly/renewly/internal/domain/subscription"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]

	// overdue controls which subscriptions ListOverdueCandidates returns,
	// keyed by subscription id. The SQL repository resolves this with a
	// period-math query; tests set it explicitly.
	overdue map[string]bool
}

// NewInMemorySubscriptionStore creates a new in-memory subscription store
func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
		overdue:       make(map[string]bool),
	}
}

func copySubscription(sub *subscription.Subscription) *subscription.Subscription {
	if sub == nil {
		return nil
	}
	copied := *sub
	return &copied
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	return s.InMemoryStore.Create(ctx, sub.ID, copySubscription(sub))
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copySubscription(sub), nil
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	return s.InMemoryStore.Update(ctx, sub.ID, copySubscription(sub))
}

// MarkOverdue flags a subscription as a sweep candidate.
func (s *InMemorySubscriptionStore) MarkOverdue(id string) {
	s.overdue[id] = true
}

func (s *InMemorySubscriptionStore) ListOverdueCandidates(ctx context.Context, asOf time.Time, limit, offset int) ([]*subscription.Subscription, error) {
	var candidates []*subscription.Subscription
	for _, sub := range s.InMemoryStore.List(ctx) {
		if !s.overdue[sub.ID] {
			continue
		}
		if sub.IsTest || !sub.IsAlive(asOf) {
			continue
		}
		candidates = append(candidates, copySubscription(sub))
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].StartedAt.Equal(candidates[j].StartedAt) {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].StartedAt.Before(candidates[j].StartedAt)
	})

	if offset >= len(candidates) {
		return nil, nil
	}
	candidates = candidates[offset:]
	if limit < len(candidates) {
		candidates = candidates[:limit]
	}
	return candidates, nil
}
