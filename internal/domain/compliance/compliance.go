// Package compliance is the KYC capability consulted before any payer-initiated
// fund movement. The service reads it; it does not manage it.
package compliance

import (
	"context"
	"time"

	"yield-agreement-backend/internal/domain/apperr"
)

var (
	ErrRegistryNotConfigured = apperr.New(apperr.KindCompliance, "compliance registry not configured")
	ErrCheckFailed           = apperr.New(apperr.KindCompliance, "compliance check failed")
)

// Record is a KYC entry maintained by the external registry.
type Record struct {
	Address     string    `gorm:"column:address;primaryKey;size:32" json:"address"`
	Whitelisted bool      `gorm:"column:whitelisted;not null" json:"whitelisted"`
	Blacklisted bool      `gorm:"column:blacklisted;not null" json:"blacklisted"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Record) TableName() string { return "kyc_records" }

// Compliant is whitelisted and not blacklisted.
func (r Record) Compliant() bool { return r.Whitelisted && !r.Blacklisted }

type Registry interface {
	IsCompliant(ctx context.Context, address string) (bool, error)
}

// Require fails unless reg is configured and address is compliant.
func Require(ctx context.Context, reg Registry, address string) error {
	if reg == nil {
		return ErrRegistryNotConfigured
	}
	ok, err := reg.IsCompliant(ctx, address)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCheckFailed
	}
	return nil
}
