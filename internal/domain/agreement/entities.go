package agreement

import (
	"time"

	"yield-agreement-backend/internal/domain/obligation"
)

// Parameter bounds.
const (
	MinTermMonths = 1
	MaxTermMonths = 360

	MinROIBps         = 1
	MaxROIBps         = 5000
	MinAdjustedROIBps = 100

	MinGracePeriodDays = 1
	MaxGracePeriodDays = 90

	MinPenaltyRateBps = 100
	MaxPenaltyRateBps = 2000

	MinDefaultThreshold = 1
	MaxDefaultThreshold = 12

	// reserveBalance may not exceed this share of upfrontCapital.
	MaxReserveBps = 2000
)

// Defaults applied when a creation request leaves risk parameters unset.
const (
	DefaultGracePeriodDays  = 30
	DefaultPenaltyRateBps   = 200
	DefaultDefaultThreshold = 3
)

// YieldAgreement is one tokenized rental-income deal. Amounts are in the
// smallest currency unit and timestamps are unix seconds, 0 meaning unset.
type YieldAgreement struct {
	ID uint64 `gorm:"primaryKey;column:id;autoIncrement" json:"id"`

	UpfrontCapital      uint64 `gorm:"column:upfront_capital;not null" json:"upfront_capital"`
	RepaymentTermMonths uint64 `gorm:"column:repayment_term_months;not null" json:"repayment_term_months"`
	AnnualROIBps        uint64 `gorm:"column:annual_roi_bps;not null" json:"annual_roi_bps"`
	AuthorizedPayer     string `gorm:"column:authorized_payer;size:32;index" json:"authorized_payer"`

	TotalRepaid        uint64 `gorm:"column:total_repaid;not null;default:0" json:"total_repaid"`
	AccumulatedArrears uint64 `gorm:"column:accumulated_arrears;not null;default:0" json:"accumulated_arrears"`
	OverpaymentCredit  uint64 `gorm:"column:overpayment_credit;not null;default:0" json:"overpayment_credit"`
	PrepaymentAmount   uint64 `gorm:"column:prepayment_amount;not null;default:0" json:"prepayment_amount"`
	ReserveBalance     uint64 `gorm:"column:reserve_balance;not null;default:0" json:"reserve_balance"`

	LastRepaymentTimestamp     int64 `gorm:"column:last_repayment_ts;not null;default:0" json:"last_repayment_timestamp"`
	LastMissedPaymentTimestamp int64 `gorm:"column:last_missed_payment_ts;not null;default:0" json:"last_missed_payment_timestamp"`
	GracePeriodExpiryTimestamp int64 `gorm:"column:grace_period_expiry_ts;not null;default:0" json:"grace_period_expiry_timestamp"`

	GracePeriodDays        uint64 `gorm:"column:grace_period_days;not null" json:"grace_period_days"`
	DefaultPenaltyRateBps  uint64 `gorm:"column:default_penalty_rate_bps;not null" json:"default_penalty_rate_bps"`
	DefaultThreshold       uint64 `gorm:"column:default_threshold;not null" json:"default_threshold"`
	AllowPartialRepayments bool   `gorm:"column:allow_partial_repayments;not null" json:"allow_partial_repayments"`
	AllowEarlyRepayment    bool   `gorm:"column:allow_early_repayment;not null" json:"allow_early_repayment"`

	IsActive           bool   `gorm:"column:is_active;not null;index" json:"is_active"`
	IsInDefault        bool   `gorm:"column:is_in_default;not null" json:"is_in_default"`
	MissedPaymentCount uint64 `gorm:"column:missed_payment_count;not null;default:0" json:"missed_payment_count"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (YieldAgreement) TableName() string { return "yield_agreements" }

// Exists reports whether the record is real; a zero capital is the "absent" sentinel.
func (a *YieldAgreement) Exists() bool { return a != nil && a.UpfrontCapital > 0 }

// InGracePeriod reports whether a grace period has been opened.
func (a *YieldAgreement) InGracePeriod() bool { return a.GracePeriodExpiryTimestamp != 0 }

// GraceExpired reports whether an opened grace period has run out at now.
func (a *YieldAgreement) GraceExpired(now int64) bool {
	return a.InGracePeriod() && now >= a.GracePeriodExpiryTimestamp
}

// RequireExists fails with ErrNotFound for the sentinel record.
func (a *YieldAgreement) RequireExists() error {
	if !a.Exists() {
		return ErrNotFound
	}
	return nil
}

// RequireActive fails unless the agreement exists and has not completed.
func (a *YieldAgreement) RequireActive() error {
	if err := a.RequireExists(); err != nil {
		return err
	}
	if !a.IsActive {
		return ErrInactive
	}
	return nil
}

// RequirePayable fails unless payments may be applied: active and not in default.
func (a *YieldAgreement) RequirePayable() error {
	if err := a.RequireActive(); err != nil {
		return err
	}
	if a.IsInDefault {
		return ErrInDefault
	}
	return nil
}

// MaxReserve is the ceiling for ReserveBalance.
func (a *YieldAgreement) MaxReserve() (uint64, error) {
	return obligation.MulDiv(a.UpfrontCapital, MaxReserveBps, obligation.BasisPoints)
}
