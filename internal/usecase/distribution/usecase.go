package distribution

import (
	"context"
	"fmt"
	"strings"

	"yield-agreement-backend/internal/domain/agreement"
	"yield-agreement-backend/internal/domain/apperr"
	"yield-agreement-backend/internal/domain/compliance"
	"yield-agreement-backend/internal/domain/event"
	"yield-agreement-backend/internal/domain/uow"
	"yield-agreement-backend/internal/usecase/runner"
)

var ErrNothingToClaim = apperr.New(apperr.KindInvalidState, "nothing to claim")

type UnclaimedDTO struct {
	AgreementID uint64 `json:"agreement_id"`
	Holder      string `json:"holder"`
	Amount      uint64 `json:"amount"`
}

// Usecase serves the holder-facing pull side of distribution.
type Usecase struct{ run *runner.Runner }

func NewUsecase(r *runner.Runner) *Usecase { return &Usecase{run: r} }

// Unclaimed returns what holder may still pull from the agreement.
func (u *Usecase) Unclaimed(ctx context.Context, agreementID uint64, holder string) (*UnclaimedDTO, error) {
	holder = strings.ToLower(holder)
	var dto *UnclaimedDTO
	err := u.run.UoW.WithinTx(ctx, func(r uow.Repos) error {
		a, err := r.Agreements.GetByID(ctx, agreementID)
		if err != nil {
			return err
		}
		if err := a.RequireExists(); err != nil {
			return err
		}
		amount, err := r.Unclaimed.Get(ctx, agreementID, holder)
		if err != nil {
			return err
		}
		dto = &UnclaimedDTO{AgreementID: agreementID, Holder: holder, Amount: amount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

// Claim moves the caller's unclaimed balance to its funds account. Only the
// holder may claim, and the transfer must succeed for the claim to stick.
func (u *Usecase) Claim(ctx context.Context, caller string, agreementID uint64, holder string) (*UnclaimedDTO, error) {
	holder = strings.ToLower(holder)
	if !strings.EqualFold(caller, holder) {
		return nil, agreement.ErrUnauthorized
	}

	var dto *UnclaimedDTO
	err := u.run.Agreement(ctx, agreementID, true, func(r uow.Repos, a *agreement.YieldAgreement, rec *event.Recorder, _ int64) error {
		if err := compliance.Require(ctx, r.KYC, holder); err != nil {
			return err
		}
		amount, err := r.Unclaimed.Take(ctx, a.ID, holder)
		if err != nil {
			return err
		}
		if amount == 0 {
			return ErrNothingToClaim
		}
		if err := r.Funds.Credit(ctx, holder, amount); err != nil {
			return fmt.Errorf("claim transfer: %w", err)
		}
		if err := rec.Emit(ctx, a.ID, event.TypeUnclaimedClaimed, map[string]string{
			"holder": holder,
			"amount": event.Amount(amount),
		}); err != nil {
			return err
		}
		dto = &UnclaimedDTO{AgreementID: a.ID, Holder: holder, Amount: amount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.run.Logger.InfoContext(ctx, "unclaimed balance claimed", "agreement_id", agreementID, "holder", holder, "amount", dto.Amount)
	return dto, nil
}
