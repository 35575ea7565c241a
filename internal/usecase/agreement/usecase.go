// Package agreement opens agreements and serves read-only projections of them.
package agreement

import (
	"context"
	"fmt"
	"strconv"

	"yield-agreement-backend/internal/domain/access"
	domain "yield-agreement-backend/internal/domain/agreement"
	"yield-agreement-backend/internal/domain/event"
	"yield-agreement-backend/internal/domain/funds"
	"yield-agreement-backend/internal/domain/obligation"
	"yield-agreement-backend/internal/domain/uow"
	"yield-agreement-backend/internal/usecase/runner"
	"yield-agreement-backend/pkg/id"
)

type Usecase struct {
	run       *runner.Runner
	policy    access.Policy
	rebateBps uint64
}

func NewUsecase(r *runner.Runner, policy access.Policy, rebateBps uint64) *Usecase {
	return &Usecase{run: r, policy: policy, rebateBps: rebateBps}
}

// Create opens an agreement and mints the initial share allocation. Admin only.
// The first payment period starts now.
func (u *Usecase) Create(ctx context.Context, caller string, in CreateInput) (*AgreementDTO, error) {
	if !u.policy.IsAdmin(caller) {
		return nil, domain.ErrUnauthorized
	}
	if err := validate(in); err != nil {
		return nil, err
	}

	a := &domain.YieldAgreement{
		UpfrontCapital:         in.UpfrontCapital,
		RepaymentTermMonths:    in.RepaymentTermMonths,
		AnnualROIBps:           in.AnnualROIBps,
		AuthorizedPayer:        id.Normalize(in.AuthorizedPayer),
		GracePeriodDays:        orDefault(in.GracePeriodDays, domain.DefaultGracePeriodDays),
		DefaultPenaltyRateBps:  orDefault(in.DefaultPenaltyRateBps, domain.DefaultPenaltyRateBps),
		DefaultThreshold:       orDefault(in.DefaultThreshold, domain.DefaultDefaultThreshold),
		AllowPartialRepayments: in.AllowPartialRepayments,
		AllowEarlyRepayment:    in.AllowEarlyRepayment,
		IsActive:               true,
	}

	err := u.run.Tx(ctx, false, func(r uow.Repos, rec *event.Recorder, now int64) error {
		a.LastRepaymentTimestamp = now
		if err := r.Agreements.Create(ctx, a); err != nil {
			return err
		}
		var supply uint64
		for _, h := range in.Holders {
			if err := r.Shares.Mint(ctx, a.ID, id.Normalize(h.Holder), h.Amount); err != nil {
				return err
			}
			var err error
			if supply, err = obligation.Add(supply, h.Amount); err != nil {
				return err
			}
		}
		return rec.Emit(ctx, a.ID, event.TypeAgreementCreated, map[string]string{
			"upfront_capital":       event.Amount(a.UpfrontCapital),
			"repayment_term_months": event.Amount(a.RepaymentTermMonths),
			"annual_roi_bps":        event.Amount(a.AnnualROIBps),
			"authorized_payer":      a.AuthorizedPayer,
			"holders":               strconv.Itoa(len(in.Holders)),
			"total_supply":          event.Amount(supply),
		})
	})
	if err != nil {
		return nil, err
	}
	u.run.Logger.InfoContext(ctx, "agreement created", "agreement_id", a.ID, "upfront_capital", a.UpfrontCapital, "holders", len(in.Holders))
	return toDTO(a), nil
}

func (u *Usecase) Get(ctx context.Context, agreementID uint64) (*AgreementDTO, error) {
	a, err := u.load(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	return toDTO(a), nil
}

// Obligations projects what the agreement owes as of now.
func (u *Usecase) Obligations(ctx context.Context, agreementID uint64) (*ObligationsDTO, error) {
	a, err := u.load(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	now := u.run.Now()

	monthly, err := obligation.MonthlyPayment(a.UpfrontCapital, a.RepaymentTermMonths, a.AnnualROIBps)
	if err != nil {
		return nil, err
	}
	total, err := obligation.TotalExpectedRepayment(a.UpfrontCapital, a.AnnualROIBps)
	if err != nil {
		return nil, err
	}
	elapsed := obligation.ElapsedMonths(a.LastRepaymentTimestamp, now)
	principal, interest, err := obligation.RemainingBalance(a.UpfrontCapital, a.TotalRepaid, a.RepaymentTermMonths, a.AnnualROIBps, elapsed)
	if err != nil {
		return nil, err
	}
	rebate, err := obligation.EarlyRepaymentRebate(principal, interest, u.rebateBps)
	if err != nil {
		return nil, err
	}
	remaining, err := obligation.Add(principal, interest)
	if err != nil {
		return nil, err
	}

	return &ObligationsDTO{
		AgreementID:            a.ID,
		MonthlyPayment:         monthly,
		TotalExpectedRepayment: total,
		RemainingPrincipal:     principal,
		RemainingInterest:      interest,
		ElapsedMonths:          elapsed,
		EarlyRepaymentRebate:   rebate,
		EarlySettlementAmount:  remaining - min(rebate, remaining),
		IsOverdue:              a.IsActive && obligation.IsOverdue(a.LastRepaymentTimestamp, a.RepaymentTermMonths, now),
	}, nil
}

func (u *Usecase) Reserve(ctx context.Context, agreementID uint64) (*ReserveDTO, error) {
	var dto *ReserveDTO
	err := u.run.UoW.WithinTx(ctx, func(r uow.Repos) error {
		a, err := r.Agreements.GetByID(ctx, agreementID)
		if err != nil {
			return err
		}
		limit, err := a.MaxReserve()
		if err != nil {
			return err
		}
		vault, err := r.Funds.Balance(ctx, funds.VaultAccount(a.ID))
		if err != nil {
			return err
		}
		dto = &ReserveDTO{AgreementID: a.ID, ReserveBalance: a.ReserveBalance, MaxReserve: limit, VaultBalance: vault}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (u *Usecase) LastMissedPayment(ctx context.Context, agreementID uint64) (*MissedPaymentDTO, error) {
	a, err := u.load(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	return &MissedPaymentDTO{
		AgreementID:                a.ID,
		LastMissedPaymentTimestamp: a.LastMissedPaymentTimestamp,
		MissedPaymentCount:         a.MissedPaymentCount,
	}, nil
}

// Events lists the outbox records of an agreement in emission order.
func (u *Usecase) Events(ctx context.Context, agreementID uint64) ([]event.Record, error) {
	var out []event.Record
	err := u.run.UoW.WithinTx(ctx, func(r uow.Repos) error {
		if _, err := r.Agreements.GetByID(ctx, agreementID); err != nil {
			return err
		}
		var err error
		out, err = r.Events.ListByAgreement(ctx, agreementID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *Usecase) load(ctx context.Context, agreementID uint64) (*domain.YieldAgreement, error) {
	var a *domain.YieldAgreement
	err := u.run.UoW.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		a, err = r.Agreements.GetByID(ctx, agreementID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func validate(in CreateInput) error {
	switch {
	case in.UpfrontCapital == 0:
		return fmt.Errorf("%w: upfront capital must be positive", domain.ErrInvalidParameter)
	case in.RepaymentTermMonths < domain.MinTermMonths || in.RepaymentTermMonths > domain.MaxTermMonths:
		return fmt.Errorf("%w: repayment term %d months", domain.ErrInvalidParameter, in.RepaymentTermMonths)
	case in.AnnualROIBps < domain.MinROIBps || in.AnnualROIBps > domain.MaxROIBps:
		return fmt.Errorf("%w: annual roi %d bps", domain.ErrInvalidParameter, in.AnnualROIBps)
	case !id.Valid(in.AuthorizedPayer):
		return fmt.Errorf("%w: authorized payer %q", domain.ErrInvalidParameter, in.AuthorizedPayer)
	case in.GracePeriodDays != 0 && (in.GracePeriodDays < domain.MinGracePeriodDays || in.GracePeriodDays > domain.MaxGracePeriodDays):
		return fmt.Errorf("%w: grace period %d days", domain.ErrInvalidParameter, in.GracePeriodDays)
	case in.DefaultPenaltyRateBps != 0 && (in.DefaultPenaltyRateBps < domain.MinPenaltyRateBps || in.DefaultPenaltyRateBps > domain.MaxPenaltyRateBps):
		return fmt.Errorf("%w: penalty rate %d bps", domain.ErrInvalidParameter, in.DefaultPenaltyRateBps)
	case in.DefaultThreshold != 0 && (in.DefaultThreshold < domain.MinDefaultThreshold || in.DefaultThreshold > domain.MaxDefaultThreshold):
		return fmt.Errorf("%w: default threshold %d", domain.ErrInvalidParameter, in.DefaultThreshold)
	}

	if len(in.Holders) == 0 {
		return fmt.Errorf("%w: at least one holder is required", domain.ErrInvalidHolders)
	}
	seen := make(map[string]struct{}, len(in.Holders))
	for _, h := range in.Holders {
		if !id.Valid(h.Holder) || h.Amount == 0 {
			return fmt.Errorf("%w: holder %q amount %d", domain.ErrInvalidHolders, h.Holder, h.Amount)
		}
		key := id.Normalize(h.Holder)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate holder %s", domain.ErrInvalidHolders, key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func orDefault(v, def uint64) uint64 {
	if v == 0 {
		return def
	}
	return v
}
