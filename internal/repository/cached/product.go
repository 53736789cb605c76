package cached

import (
	"context"
	"fmt"

	"github.com/renewly/renewly/internal/cache"
	domainProduct "github.com/renewly/renewly/internal/domain/product"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/types"
)

// productRepository is a read-through cache in front of the product catalog.
// Catalog rows change rarely relative to how often the billing loops read
// them, so short TTLs keep the cache honest without invalidation plumbing.
type productRepository struct {
	inner  domainProduct.Repository
	cache  cache.Cache
	logger *logger.Logger
}

// NewProductRepository wraps a product repository with caching
func NewProductRepository(inner domainProduct.Repository, c cache.Cache, logger *logger.Logger) domainProduct.Repository {
	return &productRepository{
		inner:  inner,
		cache:  c,
		logger: logger,
	}
}

func (r *productRepository) Get(ctx context.Context, id string) (*domainProduct.Product, error) {
	key := "product:" + id
	if value, found := r.cache.Get(ctx, key); found {
		if p, ok := cache.UnmarshalCacheValue[domainProduct.Product](value); ok {
			return p, nil
		}
	}

	p, err := r.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Set(ctx, key, p, 0)
	return p, nil
}

func (r *productRepository) GetTierPrice(ctx context.Context, productID, tierID string, recurrence types.BillingPeriod) (*domainProduct.TierPrice, error) {
	key := fmt.Sprintf("tier_price:%s:%s:%s", productID, tierID, recurrence)
	if value, found := r.cache.Get(ctx, key); found {
		if tp, ok := cache.UnmarshalCacheValue[domainProduct.TierPrice](value); ok {
			return tp, nil
		}
	}

	tp, err := r.inner.GetTierPrice(ctx, productID, tierID, recurrence)
	if err != nil {
		return nil, err
	}
	r.cache.Set(ctx, key, tp, 0)
	return tp, nil
}

func (r *productRepository) GetOfferCode(ctx context.Context, id string) (*domainProduct.OfferCode, error) {
	key := "offer_code:" + id
	if value, found := r.cache.Get(ctx, key); found {
		if oc, ok := cache.UnmarshalCacheValue[domainProduct.OfferCode](value); ok {
			return oc, nil
		}
	}

	oc, err := r.inner.GetOfferCode(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Set(ctx, key, oc, 0)
	return oc, nil
}
