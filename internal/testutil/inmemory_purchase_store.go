package testutil

import (
	"context"
	"sort"

	"github.com/renewly/renewly/internal/domain/purchase"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

// InMemoryPurchaseStore implements purchase.Repository
type InMemoryPurchaseStore struct {
	*InMemoryStore[*purchase.Purchase]
}

// NewInMemoryPurchaseStore creates a new in-memory purchase store
func NewInMemoryPurchaseStore() *InMemoryPurchaseStore {
	return &InMemoryPurchaseStore{
		InMemoryStore: NewInMemoryStore[*purchase.Purchase](),
	}
}

func copyPurchase(p *purchase.Purchase) *purchase.Purchase {
	if p == nil {
		return nil
	}
	copied := *p
	return &copied
}

func (s *InMemoryPurchaseStore) Create(ctx context.Context, p *purchase.Purchase) error {
	return s.InMemoryStore.Create(ctx, p.ID, copyPurchase(p))
}

func (s *InMemoryPurchaseStore) Get(ctx context.Context, id string) (*purchase.Purchase, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyPurchase(p), nil
}

func (s *InMemoryPurchaseStore) Update(ctx context.Context, p *purchase.Purchase) error {
	return s.InMemoryStore.Update(ctx, p.ID, copyPurchase(p))
}

func (s *InMemoryPurchaseStore) GetOriginalForSubscription(ctx context.Context, subscriptionID string) (*purchase.Purchase, error) {
	for _, p := range s.forSubscription(ctx, subscriptionID) {
		if p.IsOriginalSubscriptionPurchase {
			return copyPurchase(p), nil
		}
	}
	return nil, ierr.NewError("original purchase not found").
		WithReportableDetails(map[string]any{"subscription_id": subscriptionID}).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryPurchaseStore) GetLatestSuccessfulCharge(ctx context.Context, subscriptionID string) (*purchase.Purchase, error) {
	var latest *purchase.Purchase
	for _, p := range s.forSubscription(ctx, subscriptionID) {
		if !p.IsCharge() || p.SucceededAt == nil {
			continue
		}
		if latest == nil || p.SucceededAt.After(*latest.SucceededAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, ierr.NewError("no successful charge found").
			WithReportableDetails(map[string]any{"subscription_id": subscriptionID}).
			Mark(ierr.ErrNotFound)
	}
	return copyPurchase(latest), nil
}

func (s *InMemoryPurchaseStore) GetLatestCharge(ctx context.Context, subscriptionID string) (*purchase.Purchase, error) {
	var latest *purchase.Purchase
	for _, p := range s.forSubscription(ctx, subscriptionID) {
		if !p.IsCharge() || p.IsOriginalSubscriptionPurchase {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, ierr.NewError("no charge found").
			WithReportableDetails(map[string]any{"subscription_id": subscriptionID}).
			Mark(ierr.ErrNotFound)
	}
	return copyPurchase(latest), nil
}

func (s *InMemoryPurchaseStore) HasInProgressCharge(ctx context.Context, subscriptionID string) (bool, error) {
	for _, p := range s.forSubscription(ctx, subscriptionID) {
		if p.IsCharge() && !p.IsOriginalSubscriptionPurchase && p.State == types.PurchaseStateInProgress {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryPurchaseStore) CountSuccessfulCharges(ctx context.Context, subscriptionID string) (int, error) {
	count := 0
	for _, p := range s.forSubscription(ctx, subscriptionID) {
		if p.IsCharge() && p.SucceededAt != nil {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryPurchaseStore) GetAuthorizationForPreorder(ctx context.Context, preorderID string) (*purchase.Purchase, error) {
	var oldest *purchase.Purchase
	for _, p := range s.InMemoryStore.List(ctx) {
		if p.PreorderID != preorderID || p.Kind != types.PurchaseKindPreorderAuthorization {
			continue
		}
		if oldest == nil || p.CreatedAt.Before(oldest.CreatedAt) {
			oldest = p
		}
	}
	if oldest == nil {
		return nil, ierr.NewError("authorization purchase not found").
			WithReportableDetails(map[string]any{"preorder_id": preorderID}).
			Mark(ierr.ErrNotFound)
	}
	return copyPurchase(oldest), nil
}

func (s *InMemoryPurchaseStore) ListForPreorder(ctx context.Context, preorderID string) ([]*purchase.Purchase, error) {
	var purchases []*purchase.Purchase
	for _, p := range s.InMemoryStore.List(ctx) {
		if p.PreorderID == preorderID {
			purchases = append(purchases, copyPurchase(p))
		}
	}
	sort.Slice(purchases, func(i, j int) bool {
		return purchases[i].CreatedAt.After(purchases[j].CreatedAt)
	})
	return purchases, nil
}

func (s *InMemoryPurchaseStore) forSubscription(ctx context.Context, subscriptionID string) []*purchase.Purchase {
	var purchases []*purchase.Purchase
	for _, p := range s.InMemoryStore.List(ctx) {
		if p.SubscriptionID == subscriptionID {
			purchases = append(purchases, p)
		}
	}
	return purchases
}
