package mysql

import (
	"context"
	"errors"

	"yield-agreement-backend/internal/domain/obligation"
	"yield-agreement-backend/internal/domain/payout"

	"gorm.io/gorm"
)

type UnclaimedRepository struct{ db *gorm.DB }

func NewUnclaimedRepository(db *gorm.DB) *UnclaimedRepository { return &UnclaimedRepository{db: db} }

func (r *UnclaimedRepository) Credit(ctx context.Context, agreementID uint64, holder string, amount uint64) error {
	cur, err := r.load(ctx, agreementID, holder)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(&payout.Unclaimed{
			AgreementID: agreementID,
			Holder:      holder,
			Amount:      amount,
		}).Error
	}
	if err != nil {
		return err
	}
	next, err := obligation.Add(cur.Amount, amount)
	if err != nil {
		return err
	}
	return r.set(ctx, agreementID, holder, next)
}

func (r *UnclaimedRepository) Get(ctx context.Context, agreementID uint64, holder string) (uint64, error) {
	cur, err := r.load(ctx, agreementID, holder)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cur.Amount, nil
}

func (r *UnclaimedRepository) Take(ctx context.Context, agreementID uint64, holder string) (uint64, error) {
	amount, err := r.Get(ctx, agreementID, holder)
	if err != nil || amount == 0 {
		return 0, err
	}
	if err := r.set(ctx, agreementID, holder, 0); err != nil {
		return 0, err
	}
	return amount, nil
}

func (r *UnclaimedRepository) load(ctx context.Context, agreementID uint64, holder string) (*payout.Unclaimed, error) {
	var out payout.Unclaimed
	err := r.db.WithContext(ctx).
		Where("agreement_id = ? AND holder = ?", agreementID, holder).
		First(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *UnclaimedRepository) set(ctx context.Context, agreementID uint64, holder string, amount uint64) error {
	return r.db.WithContext(ctx).Model(&payout.Unclaimed{}).
		Where("agreement_id = ? AND holder = ?", agreementID, holder).
		Update("amount", amount).Error
}
