package uow

import (
	"context"

	"yield-agreement-backend/internal/domain/agreement"
	"yield-agreement-backend/internal/domain/compliance"
	"yield-agreement-backend/internal/domain/event"
	"yield-agreement-backend/internal/domain/funds"
	"yield-agreement-backend/internal/domain/payout"
	"yield-agreement-backend/internal/domain/settings"
	"yield-agreement-backend/internal/domain/share"
)

// Repos bundles every store and collaborator bound to one transaction.
type Repos struct {
	Agreements agreement.Repository
	Shares     share.Ledger
	Funds      funds.Ledger
	Unclaimed  payout.Repository
	Events     event.Store
	Settings   settings.Repository
	KYC        compliance.Registry
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// lock the agreement row first, then pass it in; a missing row fails with agreement.ErrNotFound
	WithinAgreementTx(ctx context.Context, agreementID uint64, fn func(r Repos, a *agreement.YieldAgreement) error) error
}
