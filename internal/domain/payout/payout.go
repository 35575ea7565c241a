// Package payout tracks distribution shares that could not be delivered.
package payout

import (
	"context"
	"time"
)

// Unclaimed is the remainder a holder may pull later.
type Unclaimed struct {
	AgreementID uint64    `gorm:"column:agreement_id;primaryKey;autoIncrement:false" json:"agreement_id"`
	Holder      string    `gorm:"column:holder;primaryKey;size:32" json:"holder"`
	Amount      uint64    `gorm:"column:amount;not null;default:0" json:"amount"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Unclaimed) TableName() string { return "unclaimed_balances" }

type Repository interface {
	Credit(ctx context.Context, agreementID uint64, holder string, amount uint64) error
	Get(ctx context.Context, agreementID uint64, holder string) (uint64, error)
	// Take returns the balance and zeroes it.
	Take(ctx context.Context, agreementID uint64, holder string) (uint64, error)
}
