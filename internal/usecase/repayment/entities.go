package repayment

import "yield-agreement-backend/internal/usecase/distribution"

// PaymentInput is one payer call. Amount is the attached value.
type PaymentInput struct {
	Caller      string
	AgreementID uint64
	Amount      uint64
}

// PaymentDTO reports what a payment did to the agreement.
type PaymentDTO struct {
	AgreementID uint64 `json:"agreement_id"`
	Kind        string `json:"kind"`
	AmountPaid  uint64 `json:"amount_paid"`
	Distributed uint64 `json:"distributed"`

	CreditConsumed uint64 `json:"credit_consumed,omitempty"`
	ArrearsPayment uint64 `json:"arrears_payment,omitempty"`
	CurrentPayment uint64 `json:"current_payment,omitempty"`
	Rebate         uint64 `json:"rebate,omitempty"`
	Refunded       uint64 `json:"refunded,omitempty"`

	TotalRepaid        uint64 `json:"total_repaid"`
	OverpaymentCredit  uint64 `json:"overpayment_credit"`
	AccumulatedArrears uint64 `json:"accumulated_arrears"`
	Completed          bool   `json:"completed"`

	Distribution distribution.Report `json:"distribution"`
}

const (
	KindStandard = "standard"
	KindPartial  = "partial"
	KindEarly    = "early"
)
