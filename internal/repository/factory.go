package repository

import (
	"github.com/renewly/renewly/internal/cache"
	domainPlanChange "github.com/renewly/renewly/internal/domain/planchange"
	domainPreorder "github.com/renewly/renewly/internal/domain/preorder"
	domainProduct "github.com/renewly/renewly/internal/domain/product"
	domainPurchase "github.com/renewly/renewly/internal/domain/purchase"
	domainSub "github.com/renewly/renewly/internal/domain/subscription"
	domainQueue "github.com/renewly/renewly/internal/domain/workqueue"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/postgres"
	"github.com/renewly/renewly/internal/repository/cached"
	pgRepo "github.com/renewly/renewly/internal/repository/postgres"
)

func NewSubscriptionRepository(client *postgres.Client, logger *logger.Logger) domainSub.Repository {
	return pgRepo.NewSubscriptionRepository(client, logger)
}

func NewPurchaseRepository(client *postgres.Client, logger *logger.Logger) domainPurchase.Repository {
	return pgRepo.NewPurchaseRepository(client, logger)
}

func NewPlanChangeRepository(client *postgres.Client, logger *logger.Logger) domainPlanChange.Repository {
	return pgRepo.NewPlanChangeRepository(client, logger)
}

func NewPreorderRepository(client *postgres.Client, logger *logger.Logger) domainPreorder.Repository {
	return pgRepo.NewPreorderRepository(client, logger)
}

// NewProductRepository returns the catalog repository wrapped in a
// read-through cache.
func NewProductRepository(client *postgres.Client, c cache.Cache, logger *logger.Logger) domainProduct.Repository {
	return cached.NewProductRepository(pgRepo.NewProductRepository(client, logger), c, logger)
}

func NewScheduledJobRepository(client *postgres.Client, logger *logger.Logger) domainQueue.Repository {
	return pgRepo.NewScheduledJobRepository(client, logger)
}
