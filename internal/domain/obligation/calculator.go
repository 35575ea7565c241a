// Package obligation holds the pure arithmetic behind agreement repayments.
// Every amount is in the smallest currency unit; intermediate products are
// computed at 256-bit width and any result that does not fit back into a
// uint64 is rejected with ErrOverflow.
package obligation

import (
	"github.com/holiman/uint256"

	"yield-agreement-backend/internal/domain/apperr"
)

const (
	BasisPoints     = 10_000
	MonthsPerYear   = 12
	SecondsPerDay   = 86_400
	SecondsPerMonth = 30 * SecondsPerDay
)

var (
	ErrOverflow     = apperr.New(apperr.KindArithmetic, "obligation: arithmetic overflow")
	ErrInvalidTerms = apperr.New(apperr.KindValidation, "obligation: repayment term must be positive")
)

// MonthlyPayment is principal/term plus one twelfth of the annual ROI on the
// full capital. Residual principal from the integer division is not carried
// into any installment.
func MonthlyPayment(upfrontCapital, termMonths, annualROIBps uint64) (uint64, error) {
	if termMonths == 0 {
		return 0, ErrInvalidTerms
	}
	principal := upfrontCapital / termMonths
	annualInterest, err := mulDiv(upfrontCapital, annualROIBps, BasisPoints)
	if err != nil {
		return 0, err
	}
	return add(principal, annualInterest/MonthsPerYear)
}

// TotalExpectedRepayment is capital * (1 + roi).
func TotalExpectedRepayment(upfrontCapital, annualROIBps uint64) (uint64, error) {
	factor, err := add(BasisPoints, annualROIBps)
	if err != nil {
		return 0, err
	}
	return mulDiv(upfrontCapital, factor, BasisPoints)
}

// ElapsedMonths floors the seconds between two unix timestamps to whole months.
func ElapsedMonths(lastRepayment, now int64) uint64 {
	if now <= lastRepayment {
		return 0
	}
	return uint64(now-lastRepayment) / SecondsPerMonth
}

// RemainingBalance projects what is still owed. The whole remainder is
// reported as principal and the interest component is always zero, so
// elapsedMonths does not change the result.
func RemainingBalance(upfrontCapital, totalRepaid, termMonths, annualROIBps, elapsedMonths uint64) (principal, interest uint64, err error) {
	if termMonths == 0 {
		return 0, 0, ErrInvalidTerms
	}
	total, err := TotalExpectedRepayment(upfrontCapital, annualROIBps)
	if err != nil {
		return 0, 0, err
	}
	if totalRepaid >= total {
		return 0, 0, nil
	}
	return total - totalRepaid, 0, nil
}

// EarlyRepaymentRebate discounts only the interest portion.
func EarlyRepaymentRebate(remainingPrincipal, remainingInterest, rebateBps uint64) (uint64, error) {
	return mulDiv(remainingInterest, rebateBps, BasisPoints)
}

// IsOverdue reports whether one payment period has passed since the last
// repayment. A zero-month term has no payment period.
func IsOverdue(lastRepayment int64, termMonths uint64, now int64) bool {
	if termMonths == 0 {
		return false
	}
	return now > lastRepayment+SecondsPerMonth
}

// ValidateRepaymentAmount accepts an exact payment, any positive payment when
// partials are allowed, and any overpayment.
func ValidateRepaymentAmount(paid, expected uint64, allowPartial bool) bool {
	switch {
	case paid == expected:
		return true
	case allowPartial && paid > 0:
		return true
	default:
		return paid > expected
	}
}

// DefaultPenalty scales the per-miss penalty with the number of consecutive misses.
func DefaultPenalty(monthlyPayment, penaltyRateBps, missedPaymentCount uint64) (uint64, error) {
	perMiss, err := mulDiv(monthlyPayment, penaltyRateBps, BasisPoints)
	if err != nil {
		return 0, err
	}
	return mul(perMiss, missedPaymentCount)
}

// PartialRepaymentAllocation pays arrears first, then the current installment
// up to monthlyPayment.
func PartialRepaymentAllocation(paid, currentArrears, monthlyPayment uint64) (arrearsPayment, currentPayment uint64) {
	arrearsPayment = min(paid, currentArrears)
	currentPayment = min(paid-arrearsPayment, monthlyPayment)
	return arrearsPayment, currentPayment
}

// ProRataShare is amount * balance / supply rounded down. An empty supply
// yields no share.
func ProRataShare(amount, balance, supply uint64) (uint64, error) {
	if supply == 0 {
		return 0, nil
	}
	return mulDiv(amount, balance, supply)
}

func mulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrOverflow
	}
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow {
		return 0, ErrOverflow
	}
	q := new(uint256.Int).Div(product, uint256.NewInt(d))
	if !q.IsUint64() {
		return 0, ErrOverflow
	}
	return q.Uint64(), nil
}

func mul(a, b uint64) (uint64, error) {
	return mulDiv(a, b, 1)
}

func add(a, b uint64) (uint64, error) {
	sum, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !sum.IsUint64() {
		return 0, ErrOverflow
	}
	return sum.Uint64(), nil
}

// Add is the checked sum used by callers updating ledger counters.
func Add(a, b uint64) (uint64, error) { return add(a, b) }

// MulDiv is the checked a * b / d rounded down.
func MulDiv(a, b, d uint64) (uint64, error) { return mulDiv(a, b, d) }
