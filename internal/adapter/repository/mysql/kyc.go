package mysql

import (
	"context"
	"errors"

	"yield-agreement-backend/internal/domain/compliance"

	"gorm.io/gorm"
)

// KYCRegistry reads the externally maintained kyc_records table. Unknown
// addresses are not compliant.
type KYCRegistry struct{ db *gorm.DB }

func NewKYCRegistry(db *gorm.DB) *KYCRegistry { return &KYCRegistry{db: db} }

func (r *KYCRegistry) IsCompliant(ctx context.Context, address string) (bool, error) {
	var rec compliance.Record
	err := r.db.WithContext(ctx).Where("address = ?", address).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Compliant(), nil
}
