package testutil

// Stores bundles one in-memory store per domain, all registered on a single
// transaction client.
type Stores struct {
	Subscriptions *InMemorySubscriptionStore
	Purchases     *InMemoryPurchaseStore
	PlanChanges   *InMemoryPlanChangeStore
	Preorders     *InMemoryPreorderStore
	Products      *InMemoryProductStore
	Jobs          *InMemoryScheduledJobStore

	DB *InMemoryTxClient
}

// NewStores creates a full set of in-memory stores sharing one transactional
// scope.
func NewStores() *Stores {
	s := &Stores{
		Subscriptions: NewInMemorySubscriptionStore(),
		Purchases:     NewInMemoryPurchaseStore(),
		PlanChanges:   NewInMemoryPlanChangeStore(),
		Preorders:     NewInMemoryPreorderStore(),
		Products:      NewInMemoryProductStore(),
		Jobs:          NewInMemoryScheduledJobStore(),
	}
	s.DB = NewInMemoryTxClient(
		s.Subscriptions.InMemoryStore,
		s.Purchases.InMemoryStore,
		s.PlanChanges.InMemoryStore,
		s.Preorders.InMemoryStore,
		s.Products.InMemoryStore,
		s.Products.tierPrices,
		s.Products.offerCodes,
		s.Jobs.InMemoryStore,
	)
	return s
}
