package preorder

import "context"

// Repository defines the interface for preorder persistence operations
type Repository interface {
	// Create creates a new preorder
	Create(ctx context.Context, p *Preorder) error

	// Get retrieves a preorder by ID
	Get(ctx context.Context, id string) (*Preorder, error)

	// Update updates an existing preorder
	Update(ctx context.Context, p *Preorder) error
}
