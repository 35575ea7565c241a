package mysql

import (
	"context"
	"errors"

	agreementDomain "yield-agreement-backend/internal/domain/agreement"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AgreementRepository struct{ db *gorm.DB }

func NewAgreementRepository(db *gorm.DB) *AgreementRepository { return &AgreementRepository{db: db} }

func (r *AgreementRepository) Create(ctx context.Context, a *agreementDomain.YieldAgreement) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AgreementRepository) Save(ctx context.Context, a *agreementDomain.YieldAgreement) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *AgreementRepository) GetByID(ctx context.Context, id uint64) (*agreementDomain.YieldAgreement, error) {
	return r.first(r.db.WithContext(ctx), id)
}

// GetByIDForUpdate issues SELECT ... FOR UPDATE; sqlite ignores the locking clause.
func (r *AgreementRepository) GetByIDForUpdate(ctx context.Context, id uint64) (*agreementDomain.YieldAgreement, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *AgreementRepository) ListInGracePeriod(ctx context.Context) ([]agreementDomain.YieldAgreement, error) {
	var out []agreementDomain.YieldAgreement
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND is_in_default = ? AND grace_period_expiry_ts > 0", true, false).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (r *AgreementRepository) first(q *gorm.DB, id uint64) (*agreementDomain.YieldAgreement, error) {
	if id == 0 {
		return nil, agreementDomain.ErrNotFound
	}
	var out agreementDomain.YieldAgreement
	err := q.Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, agreementDomain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
