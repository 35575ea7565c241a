package agreement

import (
	"math/big"
	"time"

	domain "yield-agreement-backend/internal/domain/agreement"

	"github.com/shopspring/decimal"
)

type HolderAllocation struct {
	Holder string `json:"holder" validate:"required,hex32"`
	Amount uint64 `json:"amount" validate:"required,gt=0"`
}

// CreateInput opens an agreement. Zero risk parameters take the defaults.
type CreateInput struct {
	UpfrontCapital         uint64             `json:"upfront_capital" validate:"required,gt=0"`
	RepaymentTermMonths    uint64             `json:"repayment_term_months" validate:"required,min=1,max=360"`
	AnnualROIBps           uint64             `json:"annual_roi_bps" validate:"required,min=1,max=5000"`
	AuthorizedPayer        string             `json:"authorized_payer" validate:"required,hex32"`
	GracePeriodDays        uint64             `json:"grace_period_days" validate:"omitempty,min=1,max=90"`
	DefaultPenaltyRateBps  uint64             `json:"default_penalty_rate_bps" validate:"omitempty,min=100,max=2000"`
	DefaultThreshold       uint64             `json:"default_threshold" validate:"omitempty,min=1,max=12"`
	AllowPartialRepayments bool               `json:"allow_partial_repayments"`
	AllowEarlyRepayment    bool               `json:"allow_early_repayment"`
	Holders                []HolderAllocation `json:"holders" validate:"required,min=1,dive"`
}

const (
	StatusActive      = "active"
	StatusMissed      = "missed"
	StatusGracePeriod = "grace_period"
	StatusDefaulted   = "defaulted"
	StatusCompleted   = "completed"
)

type AgreementDTO struct {
	ID                  uint64          `json:"id"`
	Status              string          `json:"status"`
	UpfrontCapital      uint64          `json:"upfront_capital"`
	RepaymentTermMonths uint64          `json:"repayment_term_months"`
	AnnualROIBps        uint64          `json:"annual_roi_bps"`
	AnnualROIPercent    decimal.Decimal `json:"annual_roi_percent"`
	AuthorizedPayer     string          `json:"authorized_payer"`

	TotalRepaid        uint64 `json:"total_repaid"`
	AccumulatedArrears uint64 `json:"accumulated_arrears"`
	OverpaymentCredit  uint64 `json:"overpayment_credit"`
	PrepaymentAmount   uint64 `json:"prepayment_amount"`
	ReserveBalance     uint64 `json:"reserve_balance"`

	LastRepaymentTimestamp     int64 `json:"last_repayment_timestamp"`
	LastMissedPaymentTimestamp int64 `json:"last_missed_payment_timestamp"`
	GracePeriodExpiryTimestamp int64 `json:"grace_period_expiry_timestamp"`

	GracePeriodDays           uint64          `json:"grace_period_days"`
	DefaultPenaltyRateBps     uint64          `json:"default_penalty_rate_bps"`
	DefaultPenaltyRatePercent decimal.Decimal `json:"default_penalty_rate_percent"`
	DefaultThreshold          uint64          `json:"default_threshold"`
	AllowPartialRepayments    bool            `json:"allow_partial_repayments"`
	AllowEarlyRepayment       bool            `json:"allow_early_repayment"`

	IsActive           bool      `json:"is_active"`
	IsInDefault        bool      `json:"is_in_default"`
	MissedPaymentCount uint64    `json:"missed_payment_count"`
	CreatedAt          time.Time `json:"created_at"`
}

type ObligationsDTO struct {
	AgreementID            uint64 `json:"agreement_id"`
	MonthlyPayment         uint64 `json:"monthly_payment"`
	TotalExpectedRepayment uint64 `json:"total_expected_repayment"`
	RemainingPrincipal     uint64 `json:"remaining_principal"`
	RemainingInterest      uint64 `json:"remaining_interest"`
	ElapsedMonths          uint64 `json:"elapsed_months"`
	EarlyRepaymentRebate   uint64 `json:"early_repayment_rebate"`
	EarlySettlementAmount  uint64 `json:"early_settlement_amount"`
	IsOverdue              bool   `json:"is_overdue"`
}

type ReserveDTO struct {
	AgreementID    uint64 `json:"agreement_id"`
	ReserveBalance uint64 `json:"reserve_balance"`
	MaxReserve     uint64 `json:"max_reserve"`
	VaultBalance   uint64 `json:"vault_balance"`
}

type MissedPaymentDTO struct {
	AgreementID                uint64 `json:"agreement_id"`
	LastMissedPaymentTimestamp int64  `json:"last_missed_payment_timestamp"`
	MissedPaymentCount         uint64 `json:"missed_payment_count"`
}

// Percent renders basis points as a percentage, 500 -> 5.
func Percent(bps uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(bps), -2)
}

func status(a *domain.YieldAgreement) string {
	switch {
	case !a.IsActive:
		return StatusCompleted
	case a.IsInDefault:
		return StatusDefaulted
	case a.InGracePeriod():
		return StatusGracePeriod
	case a.MissedPaymentCount > 0:
		return StatusMissed
	default:
		return StatusActive
	}
}

func toDTO(a *domain.YieldAgreement) *AgreementDTO {
	return &AgreementDTO{
		ID:                         a.ID,
		Status:                     status(a),
		UpfrontCapital:             a.UpfrontCapital,
		RepaymentTermMonths:        a.RepaymentTermMonths,
		AnnualROIBps:               a.AnnualROIBps,
		AnnualROIPercent:           Percent(a.AnnualROIBps),
		AuthorizedPayer:            a.AuthorizedPayer,
		TotalRepaid:                a.TotalRepaid,
		AccumulatedArrears:         a.AccumulatedArrears,
		OverpaymentCredit:          a.OverpaymentCredit,
		PrepaymentAmount:           a.PrepaymentAmount,
		ReserveBalance:             a.ReserveBalance,
		LastRepaymentTimestamp:     a.LastRepaymentTimestamp,
		LastMissedPaymentTimestamp: a.LastMissedPaymentTimestamp,
		GracePeriodExpiryTimestamp: a.GracePeriodExpiryTimestamp,
		GracePeriodDays:            a.GracePeriodDays,
		DefaultPenaltyRateBps:      a.DefaultPenaltyRateBps,
		DefaultPenaltyRatePercent:  Percent(a.DefaultPenaltyRateBps),
		DefaultThreshold:           a.DefaultThreshold,
		AllowPartialRepayments:     a.AllowPartialRepayments,
		AllowEarlyRepayment:        a.AllowEarlyRepayment,
		IsActive:                   a.IsActive,
		IsInDefault:                a.IsInDefault,
		MissedPaymentCount:         a.MissedPaymentCount,
		CreatedAt:                  a.CreatedAt,
	}
}
