// Package delinquency records missed payments and moves agreements through
// grace period into default.
package delinquency

import (
	"context"
	"errors"

	"yield-agreement-backend/internal/domain/access"
	"yield-agreement-backend/internal/domain/agreement"
	"yield-agreement-backend/internal/domain/event"
	"yield-agreement-backend/internal/domain/obligation"
	"yield-agreement-backend/internal/domain/uow"
	"yield-agreement-backend/internal/usecase/runner"
)

type StatusDTO struct {
	AgreementID                uint64 `json:"agreement_id"`
	MissedPaymentCount         uint64 `json:"missed_payment_count"`
	Penalty                    uint64 `json:"penalty,omitempty"`
	AccumulatedArrears         uint64 `json:"accumulated_arrears"`
	GracePeriodExpiryTimestamp int64  `json:"grace_period_expiry_timestamp"`
	IsInDefault                bool   `json:"is_in_default"`
	// Changed is set when this call flipped the agreement into default.
	Changed bool `json:"changed"`
}

type Usecase struct {
	run    *runner.Runner
	policy access.Policy
}

func NewUsecase(r *runner.Runner, policy access.Policy) *Usecase {
	return &Usecase{run: r, policy: policy}
}

// HandleMissedPayment records one missed installment for an overdue agreement.
// Crossing the threshold opens the grace period once; a miss after the grace
// period has expired puts the agreement in default.
func (u *Usecase) HandleMissedPayment(ctx context.Context, caller string, agreementID uint64) (*StatusDTO, error) {
	if !u.policy.IsKeeper(caller) {
		return nil, agreement.ErrUnauthorized
	}

	var dto *StatusDTO
	err := u.run.Agreement(ctx, agreementID, false, func(r uow.Repos, a *agreement.YieldAgreement, rec *event.Recorder, now int64) error {
		if err := a.RequirePayable(); err != nil {
			return err
		}
		if !obligation.IsOverdue(a.LastRepaymentTimestamp, a.RepaymentTermMonths, now) {
			return agreement.ErrNotOverdue
		}

		monthly, err := obligation.MonthlyPayment(a.UpfrontCapital, a.RepaymentTermMonths, a.AnnualROIBps)
		if err != nil {
			return err
		}
		count := a.MissedPaymentCount + 1
		penalty, err := obligation.DefaultPenalty(monthly, a.DefaultPenaltyRateBps, count)
		if err != nil {
			return err
		}
		arrears, err := obligation.Add(a.AccumulatedArrears, penalty)
		if err != nil {
			return err
		}
		a.MissedPaymentCount = count
		a.LastMissedPaymentTimestamp = now
		a.AccumulatedArrears = arrears

		attrs := map[string]string{
			"missed_count": event.Amount(count),
			"penalty":      event.Amount(penalty),
		}
		typ := event.TypePaymentMissed
		switch {
		case count >= a.DefaultThreshold && !a.InGracePeriod():
			a.GracePeriodExpiryTimestamp = now + int64(a.GracePeriodDays)*obligation.SecondsPerDay
			attrs["grace_period_expiry"] = event.Int(a.GracePeriodExpiryTimestamp)
		case a.GraceExpired(now):
			a.IsInDefault = true
			typ = event.TypeAgreementDefaulted
			attrs = defaultedAttrs(a, now)
		}

		if err := r.Agreements.Save(ctx, a); err != nil {
			return err
		}
		if err := rec.Emit(ctx, a.ID, typ, attrs); err != nil {
			return err
		}
		dto = toDTO(a, penalty, a.IsInDefault)
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.run.Metrics.ObserveMissedPayment()
	if dto.Changed {
		u.run.Metrics.ObserveDefault()
	}
	u.run.Logger.InfoContext(ctx, "missed payment recorded",
		"agreement_id", dto.AgreementID,
		"missed_count", dto.MissedPaymentCount,
		"penalty", dto.Penalty,
		"grace_period_expiry", dto.GracePeriodExpiryTimestamp,
		"in_default", dto.IsInDefault,
	)
	return dto, nil
}

// CheckAndUpdateDefaultStatus flips an active agreement whose grace period has
// expired into default. Any caller may run it; it is a no-op otherwise.
func (u *Usecase) CheckAndUpdateDefaultStatus(ctx context.Context, agreementID uint64) (*StatusDTO, error) {
	var dto *StatusDTO
	err := u.run.Agreement(ctx, agreementID, false, func(r uow.Repos, a *agreement.YieldAgreement, rec *event.Recorder, now int64) error {
		if !a.IsActive || a.IsInDefault || !a.GraceExpired(now) {
			dto = toDTO(a, 0, false)
			return nil
		}
		a.IsInDefault = true
		if err := r.Agreements.Save(ctx, a); err != nil {
			return err
		}
		if err := rec.Emit(ctx, a.ID, event.TypeAgreementDefaulted, defaultedAttrs(a, now)); err != nil {
			return err
		}
		dto = toDTO(a, 0, true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if dto.Changed {
		u.run.Metrics.ObserveDefault()
		u.run.Logger.InfoContext(ctx, "agreement defaulted", "agreement_id", dto.AgreementID, "total_arrears", dto.AccumulatedArrears)
	}
	return dto, nil
}

// SweepGracePeriods runs CheckAndUpdateDefaultStatus over every agreement with
// an open grace period and returns how many were flipped. A failure on one
// agreement does not stop the others.
func (u *Usecase) SweepGracePeriods(ctx context.Context) (int, error) {
	var candidates []agreement.YieldAgreement
	err := u.run.UoW.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		candidates, err = r.Agreements.ListInGracePeriod(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}

	flipped := 0
	var errs []error
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		dto, err := u.CheckAndUpdateDefaultStatus(ctx, c.ID)
		if err != nil {
			u.run.Logger.WarnContext(ctx, "default status check failed", "agreement_id", c.ID, "err", err)
			errs = append(errs, err)
			continue
		}
		if dto.Changed {
			flipped++
		}
	}
	return flipped, errors.Join(errs...)
}

func defaultedAttrs(a *agreement.YieldAgreement, now int64) map[string]string {
	return map[string]string{
		"total_arrears": event.Amount(a.AccumulatedArrears),
		"timestamp":     event.Int(now),
	}
}

func toDTO(a *agreement.YieldAgreement, penalty uint64, changed bool) *StatusDTO {
	return &StatusDTO{
		AgreementID:                a.ID,
		MissedPaymentCount:         a.MissedPaymentCount,
		Penalty:                    penalty,
		AccumulatedArrears:         a.AccumulatedArrears,
		GracePeriodExpiryTimestamp: a.GracePeriodExpiryTimestamp,
		IsInDefault:                a.IsInDefault,
		Changed:                    changed,
	}
}
