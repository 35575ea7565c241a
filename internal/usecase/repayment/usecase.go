// Package repayment applies standard, partial and early payments to an
// agreement and detects completion.
package repayment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"yield-agreement-backend/internal/domain/access"
	"yield-agreement-backend/internal/domain/agreement"
	"yield-agreement-backend/internal/domain/compliance"
	"yield-agreement-backend/internal/domain/event"
	"yield-agreement-backend/internal/domain/funds"
	"yield-agreement-backend/internal/domain/obligation"
	"yield-agreement-backend/internal/domain/uow"
	"yield-agreement-backend/internal/usecase/distribution"
	"yield-agreement-backend/internal/usecase/runner"
	"yield-agreement-backend/pkg/id"
)

// DefaultRebateBps is the share of the remaining interest waived on early repayment.
const DefaultRebateBps = 1000

type Usecase struct {
	run       *runner.Runner
	engine    *distribution.Engine
	policy    access.Policy
	rebateBps uint64
}

func NewUsecase(r *runner.Runner, engine *distribution.Engine, policy access.Policy, rebateBps uint64) *Usecase {
	return &Usecase{run: r, engine: engine, policy: policy, rebateBps: rebateBps}
}

// MakeStandardPayment applies one installment. Outstanding credit is consumed
// from the attached amount first and at most the monthly payment is
// distributed. The new credit is the unconsumed prior credit plus whatever
// the attached amount exceeds the monthly payment by.
func (u *Usecase) MakeStandardPayment(ctx context.Context, in PaymentInput) (*PaymentDTO, error) {
	var dto *PaymentDTO
	err := u.run.Agreement(ctx, in.AgreementID, true, func(r uow.Repos, a *agreement.YieldAgreement, rec *event.Recorder, now int64) error {
		if err := u.admit(ctx, r, a, in.Caller); err != nil {
			return err
		}

		monthly, err := obligation.MonthlyPayment(a.UpfrontCapital, a.RepaymentTermMonths, a.AnnualROIBps)
		if err != nil {
			return err
		}
		if !obligation.ValidateRepaymentAmount(in.Amount, monthly, a.AllowPartialRepayments) {
			return fmt.Errorf("%w: paid %d, monthly payment is %d", agreement.ErrInvalidAmount, in.Amount, monthly)
		}

		consumed := min(a.OverpaymentCredit, in.Amount)
		fresh := in.Amount - consumed
		distributed := min(fresh, monthly)

		var excess uint64
		if in.Amount > monthly {
			excess = in.Amount - monthly
		}
		credit, err := obligation.Add(a.OverpaymentCredit-consumed, excess)
		if err != nil {
			return err
		}
		repaid, err := obligation.Add(a.TotalRepaid, distributed)
		if err != nil {
			return err
		}
		a.OverpaymentCredit = credit
		a.TotalRepaid = repaid
		a.LastRepaymentTimestamp = now
		a.MissedPaymentCount = 0
		if err := r.Agreements.Save(ctx, a); err != nil {
			return err
		}

		report, err := u.engine.Distribute(ctx, r, rec, a.ID, distributed)
		if err != nil {
			return err
		}
		if err := rec.Emit(ctx, a.ID, event.TypeRepaymentMade, map[string]string{
			"amount":          event.Amount(distributed),
			"amount_paid":     event.Amount(in.Amount),
			"credit_consumed": event.Amount(consumed),
			"timestamp":       event.Int(now),
		}); err != nil {
			return err
		}
		completed, err := u.checkCompletion(ctx, r, a, rec)
		if err != nil {
			return err
		}

		dto = toDTO(a, KindStandard, in.Amount, distributed, report, completed)
		dto.CreditConsumed = consumed
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.observe(ctx, dto)
	return dto, nil
}

// MakePartialPayment pays arrears first and the current installment with the
// rest. Any shortfall against the monthly payment is added to arrears.
func (u *Usecase) MakePartialPayment(ctx context.Context, in PaymentInput) (*PaymentDTO, error) {
	var dto *PaymentDTO
	err := u.run.Agreement(ctx, in.AgreementID, true, func(r uow.Repos, a *agreement.YieldAgreement, rec *event.Recorder, now int64) error {
		if err := u.admit(ctx, r, a, in.Caller); err != nil {
			return err
		}
		if !a.AllowPartialRepayments {
			return agreement.ErrPartialNotAllowed
		}

		monthly, err := obligation.MonthlyPayment(a.UpfrontCapital, a.RepaymentTermMonths, a.AnnualROIBps)
		if err != nil {
			return err
		}
		if !obligation.ValidateRepaymentAmount(in.Amount, monthly, true) {
			return fmt.Errorf("%w: partial payment must be positive", agreement.ErrInvalidAmount)
		}

		arrearsPayment, currentPayment := obligation.PartialRepaymentAllocation(in.Amount, a.AccumulatedArrears, monthly)
		arrears := a.AccumulatedArrears
		if currentPayment < monthly {
			if arrears, err = obligation.Add(arrears, monthly-currentPayment); err != nil {
				return err
			}
		}
		repaid, err := obligation.Add(a.TotalRepaid, in.Amount)
		if err != nil {
			return err
		}
		a.AccumulatedArrears = arrears - arrearsPayment
		a.TotalRepaid = repaid
		a.LastRepaymentTimestamp = now
		a.MissedPaymentCount = 0
		if err := r.Agreements.Save(ctx, a); err != nil {
			return err
		}

		report, err := u.engine.Distribute(ctx, r, rec, a.ID, in.Amount)
		if err != nil {
			return err
		}
		if err := rec.Emit(ctx, a.ID, event.TypePartialRepaymentMade, map[string]string{
			"amount":          event.Amount(in.Amount),
			"arrears_payment": event.Amount(arrearsPayment),
			"current_payment": event.Amount(currentPayment),
		}); err != nil {
			return err
		}
		completed, err := u.checkCompletion(ctx, r, a, rec)
		if err != nil {
			return err
		}

		dto = toDTO(a, KindPartial, in.Amount, in.Amount, report, completed)
		dto.ArrearsPayment = arrearsPayment
		dto.CurrentPayment = currentPayment
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.observe(ctx, dto)
	return dto, nil
}

// MakeEarlyPayment settles the agreement in one call. State is committed to
// the row before the excess is refunded; a refused refund is kept as credit.
func (u *Usecase) MakeEarlyPayment(ctx context.Context, in PaymentInput) (*PaymentDTO, error) {
	var dto *PaymentDTO
	err := u.run.Agreement(ctx, in.AgreementID, true, func(r uow.Repos, a *agreement.YieldAgreement, rec *event.Recorder, now int64) error {
		if err := u.admit(ctx, r, a, in.Caller); err != nil {
			return err
		}
		if !a.AllowEarlyRepayment {
			return agreement.ErrEarlyNotAllowed
		}

		elapsed := obligation.ElapsedMonths(a.LastRepaymentTimestamp, now)
		principal, interest, err := obligation.RemainingBalance(a.UpfrontCapital, a.TotalRepaid, a.RepaymentTermMonths, a.AnnualROIBps, elapsed)
		if err != nil {
			return err
		}
		rebate, err := obligation.EarlyRepaymentRebate(principal, interest, u.rebateBps)
		if err != nil {
			return err
		}
		remaining, err := obligation.Add(principal, interest)
		if err != nil {
			return err
		}
		required := remaining - min(rebate, remaining)
		if in.Amount < required {
			return fmt.Errorf("%w: paid %d, early settlement requires %d", agreement.ErrInsufficientAmount, in.Amount, required)
		}
		excess := in.Amount - required

		prepaid, err := obligation.Add(a.PrepaymentAmount, required)
		if err != nil {
			return err
		}
		repaid, err := obligation.Add(a.TotalRepaid, required)
		if err != nil {
			return err
		}
		a.PrepaymentAmount = prepaid
		a.TotalRepaid = repaid
		a.IsActive = false
		if err := r.Agreements.Save(ctx, a); err != nil {
			return err
		}

		refunded, err := u.refund(ctx, r, a, in.Caller, excess)
		if err != nil {
			return err
		}
		report, err := u.engine.Distribute(ctx, r, rec, a.ID, required)
		if err != nil {
			return err
		}
		if _, err := r.Shares.BurnRemaining(ctx, a.ID); err != nil {
			return err
		}

		if err := rec.Emit(ctx, a.ID, event.TypeEarlyRepaymentMade, map[string]string{
			"amount":        event.Amount(required),
			"amount_paid":   event.Amount(in.Amount),
			"rebate_amount": event.Amount(rebate),
			"refunded":      event.Amount(refunded),
		}); err != nil {
			return err
		}
		if err := rec.Emit(ctx, a.ID, event.TypeAgreementCompleted, map[string]string{
			"total_repaid": event.Amount(a.TotalRepaid),
		}); err != nil {
			return err
		}

		dto = toDTO(a, KindEarly, in.Amount, required, report, true)
		dto.Rebate = rebate
		dto.Refunded = refunded
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.observe(ctx, dto)
	return dto, nil
}

// admit runs the checks shared by every payment path, in order: state,
// authorization, compliance.
func (u *Usecase) admit(ctx context.Context, r uow.Repos, a *agreement.YieldAgreement, caller string) error {
	if err := a.RequirePayable(); err != nil {
		return err
	}
	if !strings.EqualFold(caller, a.AuthorizedPayer) && !u.policy.IsAdmin(caller) {
		return agreement.ErrUnauthorized
	}
	return compliance.Require(ctx, r.KYC, id.Normalize(caller))
}

// refund tries to return excess to the payer. A rejected transfer is
// compensated by keeping the excess as overpayment credit.
func (u *Usecase) refund(ctx context.Context, r uow.Repos, a *agreement.YieldAgreement, payer string, excess uint64) (uint64, error) {
	if excess == 0 {
		return 0, nil
	}
	err := r.Funds.Credit(ctx, strings.ToLower(payer), excess)
	if err == nil {
		return excess, nil
	}
	if !errors.Is(err, funds.ErrTransferRejected) {
		return 0, err
	}

	credit, err := obligation.Add(a.OverpaymentCredit, excess)
	if err != nil {
		return 0, err
	}
	a.OverpaymentCredit = credit
	if err := r.Agreements.Save(ctx, a); err != nil {
		return 0, err
	}
	u.run.Metrics.ObserveTransferFailure("refund")
	u.run.Logger.WarnContext(ctx, "early repayment refund rejected, excess kept as credit",
		"agreement_id", a.ID, "payer", payer, "amount", excess)
	return 0, nil
}

// checkCompletion closes an active agreement once totalRepaid reaches the
// expected total. It does nothing for an agreement that is already closed.
func (u *Usecase) checkCompletion(ctx context.Context, r uow.Repos, a *agreement.YieldAgreement, rec *event.Recorder) (bool, error) {
	if !a.IsActive {
		return false, nil
	}
	total, err := obligation.TotalExpectedRepayment(a.UpfrontCapital, a.AnnualROIBps)
	if err != nil {
		return false, err
	}
	if a.TotalRepaid < total {
		return false, nil
	}

	a.IsActive = false
	if err := r.Agreements.Save(ctx, a); err != nil {
		return false, err
	}
	if _, err := r.Shares.BurnRemaining(ctx, a.ID); err != nil {
		return false, err
	}
	if err := rec.Emit(ctx, a.ID, event.TypeAgreementCompleted, map[string]string{
		"total_repaid": event.Amount(a.TotalRepaid),
	}); err != nil {
		return false, err
	}
	return true, nil
}

func (u *Usecase) observe(ctx context.Context, dto *PaymentDTO) {
	u.run.Metrics.ObservePayment(dto.Kind, dto.Distributed)
	if dto.Completed {
		u.run.Metrics.ObserveCompletion()
	}
	u.run.Logger.InfoContext(ctx, "payment applied",
		"agreement_id", dto.AgreementID,
		"kind", dto.Kind,
		"amount_paid", dto.AmountPaid,
		"distributed", dto.Distributed,
		"total_repaid", dto.TotalRepaid,
		"completed", dto.Completed,
	)
}

func toDTO(a *agreement.YieldAgreement, kind string, paid, distributed uint64, report distribution.Report, completed bool) *PaymentDTO {
	return &PaymentDTO{
		AgreementID:        a.ID,
		Kind:               kind,
		AmountPaid:         paid,
		Distributed:        distributed,
		TotalRepaid:        a.TotalRepaid,
		OverpaymentCredit:  a.OverpaymentCredit,
		AccumulatedArrears: a.AccumulatedArrears,
		Completed:          completed,
		Distribution:       report,
	}
}
