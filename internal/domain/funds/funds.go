// Package funds describes the value ledger that payouts, refunds and reserve
// movements settle against.
package funds

import (
	"context"
	"fmt"
	"time"

	"yield-agreement-backend/internal/domain/apperr"
)

var (
	// ErrTransferRejected means the recipient refused incoming value.
	ErrTransferRejected  = apperr.New(apperr.KindConflict, "transfer rejected by recipient")
	ErrInsufficientFunds = apperr.New(apperr.KindValidation, "insufficient funds")
)

// Account is a balance holder on the value ledger. A frozen account rejects credits.
type Account struct {
	Account   string    `gorm:"column:account;primaryKey;size:64" json:"account"`
	Balance   uint64    `gorm:"column:balance;not null;default:0" json:"balance"`
	Frozen    bool      `gorm:"column:frozen;not null;default:false" json:"frozen"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string { return "fund_accounts" }

type Ledger interface {
	Credit(ctx context.Context, account string, amount uint64) error
	Debit(ctx context.Context, account string, amount uint64) error
	Balance(ctx context.Context, account string) (uint64, error)
}

// VaultAccount names the account holding an agreement's reserve.
func VaultAccount(agreementID uint64) string {
	return fmt.Sprintf("vault:%d", agreementID)
}
