package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/renewly/renewly/internal/email"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/postgres"
)

// contactDirectory resolves billing entity ids to buyer contacts from the
// buyers and products tables.
type contactDirectory struct {
	client *postgres.Client
	logger *logger.Logger
}

// NewContactDirectory creates a new contact directory
func NewContactDirectory(client *postgres.Client, logger *logger.Logger) email.Directory {
	return &contactDirectory{
		client: client,
		logger: logger,
	}
}

func (d *contactDirectory) ContactForSubscription(ctx context.Context, subscriptionID string) (*email.Contact, error) {
	query := `
		SELECT b.email, p.name
		FROM subscriptions s
		JOIN buyers b ON b.id = s.buyer_id
		JOIN products p ON p.id = s.product_id
		WHERE s.id = $1`
	return d.lookup(ctx, query, subscriptionID)
}

func (d *contactDirectory) ContactForPurchase(ctx context.Context, purchaseID string) (*email.Contact, error) {
	query := `
		SELECT b.email, COALESCE(ps.name, pp.name)
		FROM purchases pur
		JOIN buyers b ON b.id = pur.buyer_id
		LEFT JOIN subscriptions s ON s.id = pur.subscription_id
		LEFT JOIN products ps ON ps.id = s.product_id
		LEFT JOIN preorders pre ON pre.id = pur.preorder_id
		LEFT JOIN products pp ON pp.id = pre.product_id
		WHERE pur.id = $1`
	return d.lookup(ctx, query, purchaseID)
}

func (d *contactDirectory) ContactForPreorder(ctx context.Context, preorderID string) (*email.Contact, error) {
	query := `
		SELECT b.email, p.name
		FROM preorders pre
		JOIN buyers b ON b.id = pre.buyer_id
		JOIN products p ON p.id = pre.product_id
		WHERE pre.id = $1`
	return d.lookup(ctx, query, preorderID)
}

func (d *contactDirectory) lookup(ctx context.Context, query, id string) (*email.Contact, error) {
	var contact email.Contact
	err := d.client.Querier(ctx).QueryRowContext(ctx, query, id).Scan(
		&contact.Address, &contact.ProductName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("contact not found").
				WithReportableDetails(map[string]any{"entity_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to resolve contact").
			Mark(ierr.ErrDatabase)
	}
	return &contact, nil
}
