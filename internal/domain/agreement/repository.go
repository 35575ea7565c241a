package agreement

import "context"

type Repository interface {
	Create(ctx context.Context, a *YieldAgreement) error
	Save(ctx context.Context, a *YieldAgreement) error

	// GetByID returns ErrNotFound when no record exists.
	GetByID(ctx context.Context, id uint64) (*YieldAgreement, error)
	// GetByIDForUpdate locks the row for the rest of the transaction.
	GetByIDForUpdate(ctx context.Context, id uint64) (*YieldAgreement, error)

	// ListInGracePeriod returns active, non-defaulted agreements whose grace period is open.
	ListInGracePeriod(ctx context.Context) ([]YieldAgreement, error)
}
