package fundsmock

import (
	"context"

	"yield-agreement-backend/internal/domain/funds"
)

var _ funds.Ledger = (*Ledger)(nil)

// Ledger is a function-backed mock of funds.Ledger. Unset funcs succeed with zero values.
type Ledger struct {
	CreditFn  func(ctx context.Context, account string, amount uint64) error
	DebitFn   func(ctx context.Context, account string, amount uint64) error
	BalanceFn func(ctx context.Context, account string) (uint64, error)
}

func (m *Ledger) Credit(ctx context.Context, account string, amount uint64) error {
	if m.CreditFn != nil {
		return m.CreditFn(ctx, account, amount)
	}
	return nil
}
func (m *Ledger) Debit(ctx context.Context, account string, amount uint64) error {
	if m.DebitFn != nil {
		return m.DebitFn(ctx, account, amount)
	}
	return nil
}
func (m *Ledger) Balance(ctx context.Context, account string) (uint64, error) {
	if m.BalanceFn != nil {
		return m.BalanceFn(ctx, account)
	}
	return 0, nil
}
