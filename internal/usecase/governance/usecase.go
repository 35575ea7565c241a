// Package governance applies controller-authorised parameter changes and moves
// the reserve in and out of an agreement's vault.
package governance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"yield-agreement-backend/internal/domain/access"
	"yield-agreement-backend/internal/domain/agreement"
	"yield-agreement-backend/internal/domain/event"
	"yield-agreement-backend/internal/domain/funds"
	"yield-agreement-backend/internal/domain/obligation"
	"yield-agreement-backend/internal/domain/settings"
	"yield-agreement-backend/internal/domain/uow"
	"yield-agreement-backend/internal/usecase/runner"
	"yield-agreement-backend/pkg/id"
)

type Usecase struct {
	run    *runner.Runner
	policy access.Policy
}

func NewUsecase(r *runner.Runner, policy access.Policy) *Usecase {
	return &Usecase{run: r, policy: policy}
}

// SetController designates the governance identity. Admin only, and only once.
func (u *Usecase) SetController(ctx context.Context, caller, controller string) (*ControllerDTO, error) {
	if !u.policy.IsAdmin(caller) {
		return nil, agreement.ErrUnauthorized
	}
	if !id.Valid(controller) {
		return nil, fmt.Errorf("%w: controller %q is not a 32-hex id", agreement.ErrInvalidParameter, controller)
	}
	controller = id.Normalize(controller)

	err := u.run.Tx(ctx, false, func(r uow.Repos, rec *event.Recorder, _ int64) error {
		if err := r.Settings.Create(ctx, settings.KeyGovernanceController, controller); err != nil {
			if errors.Is(err, settings.ErrExists) {
				return settings.ErrControllerAlreadySet
			}
			return err
		}
		return rec.Emit(ctx, 0, event.TypeControllerSet, map[string]string{"controller": controller})
	})
	if err != nil {
		return nil, err
	}
	u.run.Logger.InfoContext(ctx, "governance controller set", "controller", controller)
	return &ControllerDTO{Controller: controller}, nil
}

func (u *Usecase) Controller(ctx context.Context) (*ControllerDTO, error) {
	var dto *ControllerDTO
	err := u.run.UoW.WithinTx(ctx, func(r uow.Repos) error {
		c, err := controllerOf(ctx, r)
		if err != nil {
			return err
		}
		dto = &ControllerDTO{Controller: c}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

// AdjustROI changes the annual ROI of an active agreement.
func (u *Usecase) AdjustROI(ctx context.Context, caller string, agreementID, newROIBps uint64) (*ParameterDTO, error) {
	return u.setParameter(ctx, caller, agreementID, event.TypeROIAdjusted, ParamROI, func(a *agreement.YieldAgreement) (string, string, error) {
		if err := inRange(newROIBps, agreement.MinAdjustedROIBps, agreement.MaxROIBps); err != nil {
			return "", "", err
		}
		old := a.AnnualROIBps
		a.AnnualROIBps = newROIBps
		return event.Amount(old), event.Amount(newROIBps), nil
	})
}

func (u *Usecase) SetGracePeriod(ctx context.Context, caller string, agreementID, days uint64) (*ParameterDTO, error) {
	return u.setParameter(ctx, caller, agreementID, event.TypeGracePeriodUpdated, ParamGracePeriod, func(a *agreement.YieldAgreement) (string, string, error) {
		if err := inRange(days, agreement.MinGracePeriodDays, agreement.MaxGracePeriodDays); err != nil {
			return "", "", err
		}
		old := a.GracePeriodDays
		a.GracePeriodDays = days
		return event.Amount(old), event.Amount(days), nil
	})
}

func (u *Usecase) SetPenaltyRate(ctx context.Context, caller string, agreementID, rateBps uint64) (*ParameterDTO, error) {
	return u.setParameter(ctx, caller, agreementID, event.TypePenaltyRateUpdated, ParamPenaltyRate, func(a *agreement.YieldAgreement) (string, string, error) {
		if err := inRange(rateBps, agreement.MinPenaltyRateBps, agreement.MaxPenaltyRateBps); err != nil {
			return "", "", err
		}
		old := a.DefaultPenaltyRateBps
		a.DefaultPenaltyRateBps = rateBps
		return event.Amount(old), event.Amount(rateBps), nil
	})
}

func (u *Usecase) SetDefaultThreshold(ctx context.Context, caller string, agreementID, threshold uint64) (*ParameterDTO, error) {
	return u.setParameter(ctx, caller, agreementID, event.TypeDefaultThresholdUpdated, ParamDefaultThreshold, func(a *agreement.YieldAgreement) (string, string, error) {
		if err := inRange(threshold, agreement.MinDefaultThreshold, agreement.MaxDefaultThreshold); err != nil {
			return "", "", err
		}
		old := a.DefaultThreshold
		a.DefaultThreshold = threshold
		return event.Amount(old), event.Amount(threshold), nil
	})
}

func (u *Usecase) SetAllowPartial(ctx context.Context, caller string, agreementID uint64, allow bool) (*ParameterDTO, error) {
	return u.setParameter(ctx, caller, agreementID, event.TypePartialRepaymentsToggled, ParamAllowPartial, func(a *agreement.YieldAgreement) (string, string, error) {
		old := a.AllowPartialRepayments
		a.AllowPartialRepayments = allow
		return event.Bool(old), event.Bool(allow), nil
	})
}

func (u *Usecase) SetAllowEarly(ctx context.Context, caller string, agreementID uint64, allow bool) (*ParameterDTO, error) {
	return u.setParameter(ctx, caller, agreementID, event.TypeEarlyRepaymentToggled, ParamAllowEarly, func(a *agreement.YieldAgreement) (string, string, error) {
		old := a.AllowEarlyRepayment
		a.AllowEarlyRepayment = allow
		return event.Bool(old), event.Bool(allow), nil
	})
}

// AllocateReserve adds amount to the reserve and deposits it in the vault.
// The reserve may never exceed MaxReserveBps of the capital.
func (u *Usecase) AllocateReserve(ctx context.Context, caller string, agreementID, amount uint64) (*ReserveDTO, error) {
	var dto *ReserveDTO
	err := u.run.Agreement(ctx, agreementID, false, func(r uow.Repos, a *agreement.YieldAgreement, rec *event.Recorder, _ int64) error {
		if err := u.authorize(ctx, r, caller); err != nil {
			return err
		}
		if amount == 0 {
			return fmt.Errorf("%w: reserve amount must be positive", agreement.ErrInvalidAmount)
		}
		limit, err := a.MaxReserve()
		if err != nil {
			return err
		}
		next, err := obligation.Add(a.ReserveBalance, amount)
		if err != nil || next > limit {
			return fmt.Errorf("%w: %d + %d exceeds %d", agreement.ErrReserveExceedsLimit, a.ReserveBalance, amount, limit)
		}

		a.ReserveBalance = next
		if err := r.Agreements.Save(ctx, a); err != nil {
			return err
		}
		vault := funds.VaultAccount(a.ID)
		if err := r.Funds.Credit(ctx, vault, amount); err != nil {
			return err
		}
		if err := rec.Emit(ctx, a.ID, event.TypeReserveAllocated, map[string]string{
			"amount":          event.Amount(amount),
			"reserve_balance": event.Amount(next),
		}); err != nil {
			return err
		}
		dto, err = u.reserveDTO(ctx, r, a, amount, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	u.run.Logger.InfoContext(ctx, "reserve allocated", "agreement_id", dto.AgreementID, "amount", amount, "reserve_balance", dto.ReserveBalance)
	return dto, nil
}

// WithdrawReserve pays amount from the vault to the controller. The reserve
// balance is decremented and saved before any funds move.
func (u *Usecase) WithdrawReserve(ctx context.Context, caller string, agreementID, amount uint64) (*ReserveDTO, error) {
	var dto *ReserveDTO
	err := u.run.Agreement(ctx, agreementID, true, func(r uow.Repos, a *agreement.YieldAgreement, rec *event.Recorder, _ int64) error {
		if err := u.authorize(ctx, r, caller); err != nil {
			return err
		}
		if amount == 0 {
			return fmt.Errorf("%w: withdrawal must be positive", agreement.ErrInvalidAmount)
		}
		if amount > a.ReserveBalance {
			return fmt.Errorf("%w: requested %d, reserve holds %d", agreement.ErrInsufficientReserve, amount, a.ReserveBalance)
		}
		vault := funds.VaultAccount(a.ID)
		available, err := r.Funds.Balance(ctx, vault)
		if err != nil {
			return err
		}
		if amount > available {
			return fmt.Errorf("%w: requested %d, vault holds %d", agreement.ErrInsufficientReserve, amount, available)
		}

		a.ReserveBalance -= amount
		if err := r.Agreements.Save(ctx, a); err != nil {
			return err
		}
		if err := r.Funds.Debit(ctx, vault, amount); err != nil {
			return err
		}
		recipient := id.Normalize(caller)
		if err := r.Funds.Credit(ctx, recipient, amount); err != nil {
			return err
		}
		if err := rec.Emit(ctx, a.ID, event.TypeReserveWithdrawn, map[string]string{
			"amount":          event.Amount(amount),
			"reserve_balance": event.Amount(a.ReserveBalance),
			"recipient":       recipient,
		}); err != nil {
			return err
		}
		limit, err := a.MaxReserve()
		if err != nil {
			return err
		}
		dto, err = u.reserveDTO(ctx, r, a, amount, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	u.run.Logger.InfoContext(ctx, "reserve withdrawn", "agreement_id", dto.AgreementID, "amount", amount, "reserve_balance", dto.ReserveBalance)
	return dto, nil
}

func (u *Usecase) setParameter(ctx context.Context, caller string, agreementID uint64, typ, param string, apply func(a *agreement.YieldAgreement) (oldVal, newVal string, err error)) (*ParameterDTO, error) {
	var dto *ParameterDTO
	err := u.run.Agreement(ctx, agreementID, false, func(r uow.Repos, a *agreement.YieldAgreement, rec *event.Recorder, _ int64) error {
		if err := u.authorize(ctx, r, caller); err != nil {
			return err
		}
		if err := a.RequireActive(); err != nil {
			return err
		}
		oldVal, newVal, err := apply(a)
		if err != nil {
			return err
		}
		if err := r.Agreements.Save(ctx, a); err != nil {
			return err
		}
		if err := rec.Emit(ctx, a.ID, typ, map[string]string{"old": oldVal, "new": newVal}); err != nil {
			return err
		}
		dto = &ParameterDTO{AgreementID: a.ID, Parameter: param, Old: oldVal, New: newVal}
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.run.Logger.InfoContext(ctx, "agreement parameter updated",
		"agreement_id", dto.AgreementID, "parameter", param, "old", dto.Old, "new", dto.New)
	return dto, nil
}

// authorize admits only the configured controller.
func (u *Usecase) authorize(ctx context.Context, r uow.Repos, caller string) error {
	controller, err := controllerOf(ctx, r)
	if err != nil {
		return err
	}
	if !strings.EqualFold(caller, controller) {
		return agreement.ErrUnauthorized
	}
	return nil
}

func (u *Usecase) reserveDTO(ctx context.Context, r uow.Repos, a *agreement.YieldAgreement, amount, limit uint64) (*ReserveDTO, error) {
	vault, err := r.Funds.Balance(ctx, funds.VaultAccount(a.ID))
	if err != nil {
		return nil, err
	}
	return &ReserveDTO{
		AgreementID:    a.ID,
		Amount:         amount,
		ReserveBalance: a.ReserveBalance,
		MaxReserve:     limit,
		VaultBalance:   vault,
	}, nil
}

func controllerOf(ctx context.Context, r uow.Repos) (string, error) {
	c, err := r.Settings.Get(ctx, settings.KeyGovernanceController)
	if errors.Is(err, settings.ErrNotFound) {
		return "", settings.ErrControllerNotSet
	}
	return c, err
}

func inRange(v, lo, hi uint64) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %d not in [%d, %d]", agreement.ErrInvalidParameter, v, lo, hi)
	}
	return nil
}
