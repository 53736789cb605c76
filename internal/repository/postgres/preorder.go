package postgres

import (
	"context"
	"database/sql"
	"errors"

	domainPreorder "github.com/renewly/renewly/internal/domain/preorder"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/postgres"
)

type preorderRepository struct {
	client *postgres.Client
	logger *logger.Logger
}

// NewPreorderRepository creates a new preorder repository
func NewPreorderRepository(client *postgres.Client, logger *logger.Logger) domainPreorder.Repository {
	return &preorderRepository{
		client: client,
		logger: logger,
	}
}

const preorderColumns = `
	id, product_id, buyer_id, state, price_cents, status, created_at, updated_at`

func (r *preorderRepository) Create(ctx context.Context, p *domainPreorder.Preorder) error {
	r.logger.Debugw("creating preorder", "preorder_id", p.ID)

	query := `
		INSERT INTO preorders (` + preorderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		p.ID, p.ProductID, p.BuyerID, p.State, p.PriceCents,
		p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create preorder").
			WithReportableDetails(map[string]any{"preorder_id": p.ID}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *preorderRepository) Get(ctx context.Context, id string) (*domainPreorder.Preorder, error) {
	query := `SELECT ` + preorderColumns + ` FROM preorders WHERE id = $1`

	var p domainPreorder.Preorder
	err := r.client.Querier(ctx).QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.ProductID, &p.BuyerID, &p.State, &p.PriceCents,
		&p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("preorder not found").
				WithReportableDetails(map[string]any{"preorder_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get preorder").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *preorderRepository) Update(ctx context.Context, p *domainPreorder.Preorder) error {
	query := `UPDATE preorders SET state = $2, price_cents = $3, updated_at = $4 WHERE id = $1`

	res, err := r.client.Querier(ctx).ExecContext(ctx, query,
		p.ID, p.State, p.PriceCents, p.UpdatedAt,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update preorder").
			WithReportableDetails(map[string]any{"preorder_id": p.ID}).
			Mark(ierr.ErrDatabase)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ierr.NewError("preorder not found").
			WithReportableDetails(map[string]any{"preorder_id": p.ID}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
