package agreementmock

import (
	"context"

	domain "yield-agreement-backend/internal/domain/agreement"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Unset lookups return domain.ErrNotFound; unset writes succeed.
type Repo struct {
	CreateFn            func(ctx context.Context, a *domain.YieldAgreement) error
	SaveFn              func(ctx context.Context, a *domain.YieldAgreement) error
	GetByIDFn           func(ctx context.Context, id uint64) (*domain.YieldAgreement, error)
	GetByIDForUpdateFn  func(ctx context.Context, id uint64) (*domain.YieldAgreement, error)
	ListInGracePeriodFn func(ctx context.Context) ([]domain.YieldAgreement, error)
}

func (m *Repo) Create(ctx context.Context, a *domain.YieldAgreement) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, a)
	}
	return nil
}
func (m *Repo) Save(ctx context.Context, a *domain.YieldAgreement) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, a)
	}
	return nil
}
func (m *Repo) GetByID(ctx context.Context, id uint64) (*domain.YieldAgreement, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}
func (m *Repo) GetByIDForUpdate(ctx context.Context, id uint64) (*domain.YieldAgreement, error) {
	if m.GetByIDForUpdateFn != nil {
		return m.GetByIDForUpdateFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}
func (m *Repo) ListInGracePeriod(ctx context.Context) ([]domain.YieldAgreement, error) {
	if m.ListInGracePeriodFn != nil {
		return m.ListInGracePeriodFn(ctx)
	}
	return nil, nil
}
