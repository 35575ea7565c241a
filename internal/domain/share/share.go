// Package share describes the per-agreement share ledger that tracks holder
// balances. Supply is conserved: the sum of balances equals TotalSupply.
package share

import (
	"context"
	"time"
)

// Balance is one holder's position in one agreement.
type Balance struct {
	AgreementID uint64    `gorm:"column:agreement_id;primaryKey;autoIncrement:false" json:"agreement_id"`
	Holder      string    `gorm:"column:holder;primaryKey;size:32" json:"holder"`
	Amount      uint64    `gorm:"column:amount;not null" json:"amount"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Balance) TableName() string { return "share_balances" }

type Ledger interface {
	Mint(ctx context.Context, agreementID uint64, beneficiary string, amount uint64) error
	// BurnRemaining zeroes every balance of the agreement and returns the burned supply.
	BurnRemaining(ctx context.Context, agreementID uint64) (uint64, error)
	BalanceOf(ctx context.Context, agreementID uint64, holder string) (uint64, error)
	TotalSupply(ctx context.Context, agreementID uint64) (uint64, error)
	// Holders lists positive balances ordered by holder.
	Holders(ctx context.Context, agreementID uint64) ([]Balance, error)
}
