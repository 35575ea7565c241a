package mysql

import (
	"context"
	"errors"
	"fmt"

	"yield-agreement-backend/internal/domain/funds"
	"yield-agreement-backend/internal/domain/obligation"

	"gorm.io/gorm"
)

type FundsLedger struct{ db *gorm.DB }

func NewFundsLedger(db *gorm.DB) *FundsLedger { return &FundsLedger{db: db} }

// Credit adds value to account, opening it on first use. Frozen accounts
// reject the credit without touching any row.
func (l *FundsLedger) Credit(ctx context.Context, account string, amount uint64) error {
	acc, err := l.load(ctx, account)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return l.db.WithContext(ctx).Create(&funds.Account{Account: account, Balance: amount}).Error
	}
	if err != nil {
		return err
	}
	if acc.Frozen {
		return fmt.Errorf("%w: %s", funds.ErrTransferRejected, account)
	}
	next, err := obligation.Add(acc.Balance, amount)
	if err != nil {
		return err
	}
	return l.setBalance(ctx, account, next)
}

func (l *FundsLedger) Debit(ctx context.Context, account string, amount uint64) error {
	acc, err := l.load(ctx, account)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s has no balance", funds.ErrInsufficientFunds, account)
	}
	if err != nil {
		return err
	}
	if acc.Balance < amount {
		return fmt.Errorf("%w: %s holds %d, need %d", funds.ErrInsufficientFunds, account, acc.Balance, amount)
	}
	return l.setBalance(ctx, account, acc.Balance-amount)
}

func (l *FundsLedger) Balance(ctx context.Context, account string) (uint64, error) {
	acc, err := l.load(ctx, account)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

func (l *FundsLedger) load(ctx context.Context, account string) (*funds.Account, error) {
	var out funds.Account
	if err := l.db.WithContext(ctx).Where("account = ?", account).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (l *FundsLedger) setBalance(ctx context.Context, account string, balance uint64) error {
	return l.db.WithContext(ctx).Model(&funds.Account{}).
		Where("account = ?", account).
		Update("balance", balance).Error
}
