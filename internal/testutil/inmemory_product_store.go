package testutil

import (
	"context"
	"fmt"

	"github.com/renewly/renewly/internal/domain/product"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

// InMemoryProductStore implements product.Repository
type InMemoryProductStore struct {
	*InMemoryStore[*product.Product]

	tierPrices *InMemoryStore[*product.TierPrice]
	offerCodes *InMemoryStore[*product.OfferCode]
}

// NewInMemoryProductStore creates a new in-memory product store
func NewInMemoryProductStore() *InMemoryProductStore {
	return &InMemoryProductStore{
		InMemoryStore: NewInMemoryStore[*product.Product](),
		tierPrices:    NewInMemoryStore[*product.TierPrice](),
		offerCodes:    NewInMemoryStore[*product.OfferCode](),
	}
}

func copyProduct(p *product.Product) *product.Product {
	if p == nil {
		return nil
	}
	copied := *p
	return &copied
}

// AddProduct seeds a product into the catalog
func (s *InMemoryProductStore) AddProduct(ctx context.Context, p *product.Product) error {
	return s.InMemoryStore.Create(ctx, p.ID, copyProduct(p))
}

// AddTierPrice seeds a tier price into the catalog
func (s *InMemoryProductStore) AddTierPrice(ctx context.Context, tp *product.TierPrice) error {
	key := tierPriceKey(tp.ProductID, tp.TierID, tp.Recurrence)
	copied := *tp
	return s.tierPrices.Create(ctx, key, &copied)
}

// AddOfferCode seeds an offer code into the catalog
func (s *InMemoryProductStore) AddOfferCode(ctx context.Context, oc *product.OfferCode) error {
	copied := *oc
	return s.offerCodes.Create(ctx, oc.ID, &copied)
}

func (s *InMemoryProductStore) Get(ctx context.Context, id string) (*product.Product, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyProduct(p), nil
}

func (s *InMemoryProductStore) GetTierPrice(ctx context.Context, productID, tierID string, recurrence types.BillingPeriod) (*product.TierPrice, error) {
	tp, err := s.tierPrices.Get(ctx, tierPriceKey(productID, tierID, recurrence))
	if err != nil {
		return nil, ierr.NewError("tier price not found").
			WithReportableDetails(map[string]any{
				"product_id": productID,
				"tier_id":    tierID,
				"recurrence": recurrence,
			}).
			Mark(ierr.ErrNotFound)
	}
	copied := *tp
	return &copied, nil
}

func (s *InMemoryProductStore) GetOfferCode(ctx context.Context, id string) (*product.OfferCode, error) {
	oc, err := s.offerCodes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	copied := *oc
	return &copied, nil
}

func tierPriceKey(productID, tierID string, recurrence types.BillingPeriod) string {
	return fmt.Sprintf("%s:%s:%s", productID, tierID, recurrence)
}
