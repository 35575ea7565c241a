package mysql

import (
	"context"

	"yield-agreement-backend/internal/domain/agreement"
	"yield-agreement-backend/internal/domain/compliance"
	"yield-agreement-backend/internal/domain/event"
	"yield-agreement-backend/internal/domain/funds"
	"yield-agreement-backend/internal/domain/payout"
	"yield-agreement-backend/internal/domain/settings"
	"yield-agreement-backend/internal/domain/share"
	"yield-agreement-backend/internal/domain/uow"

	"gorm.io/gorm"
)

type GormUoW struct {
	db  *gorm.DB
	kyc bool
}

type UoWOption func(*GormUoW)

// WithKYCRegistry exposes the kyc_records table as the compliance registry.
// Without it Repos.KYC is nil and compliance checks fail as not configured.
func WithKYCRegistry() UoWOption { return func(u *GormUoW) { u.kyc = true } }

func NewGormUoW(db *gorm.DB, opts ...UoWOption) *GormUoW {
	u := &GormUoW{db: db}
	for _, o := range opts {
		o(u)
	}
	return u
}

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(u.reposFor(tx))
	})
}

func (u *GormUoW) WithinAgreementTx(ctx context.Context, agreementID uint64, fn func(r uow.Repos, a *agreement.YieldAgreement) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := u.reposFor(tx)
		// lock the agreement row up-front to prevent races
		a, err := r.Agreements.GetByIDForUpdate(ctx, agreementID)
		if err != nil {
			return err
		}
		return fn(r, a)
	})
}

func (u *GormUoW) reposFor(tx *gorm.DB) uow.Repos {
	r := uow.Repos{
		Agreements: &AgreementRepository{db: tx},
		Shares:     &ShareLedger{db: tx},
		Funds:      &FundsLedger{db: tx},
		Unclaimed:  &UnclaimedRepository{db: tx},
		Events:     &EventStore{db: tx},
		Settings:   &SettingsRepository{db: tx},
	}
	if u.kyc {
		r.KYC = &KYCRegistry{db: tx}
	}
	return r
}

// Models lists every table owned by this adapter, in migration order.
func Models() []any {
	return []any{
		&agreement.YieldAgreement{},
		&share.Balance{},
		&funds.Account{},
		&payout.Unclaimed{},
		&event.Record{},
		&settings.Setting{},
		&compliance.Record{},
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error { return db.AutoMigrate(Models()...) }
