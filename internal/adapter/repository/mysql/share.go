package mysql

import (
	"context"
	"errors"

	"yield-agreement-backend/internal/domain/obligation"
	"yield-agreement-backend/internal/domain/share"

	"gorm.io/gorm"
)

type ShareLedger struct{ db *gorm.DB }

func NewShareLedger(db *gorm.DB) *ShareLedger { return &ShareLedger{db: db} }

func (l *ShareLedger) Mint(ctx context.Context, agreementID uint64, beneficiary string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	var cur share.Balance
	err := l.db.WithContext(ctx).
		Where("agreement_id = ? AND holder = ?", agreementID, beneficiary).
		First(&cur).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return l.db.WithContext(ctx).Create(&share.Balance{
			AgreementID: agreementID,
			Holder:      beneficiary,
			Amount:      amount,
		}).Error
	case err != nil:
		return err
	}
	next, err := obligation.Add(cur.Amount, amount)
	if err != nil {
		return err
	}
	return l.db.WithContext(ctx).Model(&share.Balance{}).
		Where("agreement_id = ? AND holder = ?", agreementID, beneficiary).
		Update("amount", next).Error
}

func (l *ShareLedger) BurnRemaining(ctx context.Context, agreementID uint64) (uint64, error) {
	supply, err := l.TotalSupply(ctx, agreementID)
	if err != nil {
		return 0, err
	}
	err = l.db.WithContext(ctx).
		Where("agreement_id = ?", agreementID).
		Delete(&share.Balance{}).Error
	if err != nil {
		return 0, err
	}
	return supply, nil
}

func (l *ShareLedger) BalanceOf(ctx context.Context, agreementID uint64, holder string) (uint64, error) {
	var cur share.Balance
	err := l.db.WithContext(ctx).
		Where("agreement_id = ? AND holder = ?", agreementID, holder).
		First(&cur).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return cur.Amount, err
}

func (l *ShareLedger) TotalSupply(ctx context.Context, agreementID uint64) (uint64, error) {
	holders, err := l.Holders(ctx, agreementID)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, h := range holders {
		if total, err = obligation.Add(total, h.Amount); err != nil {
			return 0, err
		}
	}
	return total, nil
}

func (l *ShareLedger) Holders(ctx context.Context, agreementID uint64) ([]share.Balance, error) {
	var out []share.Balance
	err := l.db.WithContext(ctx).
		Where("agreement_id = ? AND amount > 0", agreementID).
		Order("holder ASC").
		Find(&out).Error
	return out, err
}
