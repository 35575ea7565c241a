// Package distribution splits payments across an agreement's holders and lets
// holders pull the shares that could not be delivered.
package distribution

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"yield-agreement-backend/internal/domain/event"
	"yield-agreement-backend/internal/domain/funds"
	"yield-agreement-backend/internal/domain/obligation"
	"yield-agreement-backend/internal/domain/uow"
	"yield-agreement-backend/internal/infrastructure/metrics"
)

// Report summarises one distribution. Delivered + Unclaimed + Dust == Amount.
type Report struct {
	Amount    uint64   `json:"amount"`
	Supply    uint64   `json:"supply"`
	Delivered uint64   `json:"delivered"`
	Unclaimed uint64   `json:"unclaimed"`
	Dust      uint64   `json:"dust"`
	Failed    []string `json:"failed,omitempty"`
}

type Engine struct {
	metrics *metrics.AgreementMetrics
	log     *slog.Logger
}

func NewEngine(m *metrics.AgreementMetrics, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{metrics: m, log: log}
}

// Distribute pays amount pro rata to every holder with a positive balance. A
// holder that rejects the transfer has its share credited to its unclaimed
// balance and the rest of the holders are still paid. The integer-division
// remainder is reported as dust and stays undistributed. With no supply the
// whole amount is dust.
func (e *Engine) Distribute(ctx context.Context, r uow.Repos, rec *event.Recorder, agreementID, amount uint64) (Report, error) {
	rep := Report{Amount: amount}
	if amount == 0 {
		return rep, nil
	}

	holders, err := r.Shares.Holders(ctx, agreementID)
	if err != nil {
		return rep, err
	}
	supply, err := r.Shares.TotalSupply(ctx, agreementID)
	if err != nil {
		return rep, err
	}
	rep.Supply = supply
	if supply == 0 {
		rep.Dust = amount
		e.metrics.ObserveRoundingDust(strconv.FormatUint(agreementID, 10), rep.Dust)
		return rep, nil
	}

	for _, h := range holders {
		share, err := obligation.ProRataShare(amount, h.Amount, supply)
		if err != nil {
			return rep, err
		}
		if share == 0 {
			continue
		}

		err = r.Funds.Credit(ctx, h.Holder, share)
		switch {
		case err == nil:
			rep.Delivered += share
		case errors.Is(err, funds.ErrTransferRejected):
			if err := e.compensate(ctx, r, rec, agreementID, h.Holder, share); err != nil {
				return rep, err
			}
			rep.Unclaimed += share
			rep.Failed = append(rep.Failed, h.Holder)
		default:
			return rep, err
		}
	}

	rep.Dust = amount - rep.Delivered - rep.Unclaimed
	e.metrics.ObserveRoundingDust(strconv.FormatUint(agreementID, 10), rep.Dust)
	return rep, nil
}

func (e *Engine) compensate(ctx context.Context, r uow.Repos, rec *event.Recorder, agreementID uint64, holder string, share uint64) error {
	if err := r.Unclaimed.Credit(ctx, agreementID, holder, share); err != nil {
		return err
	}
	e.metrics.ObserveTransferFailure("distribution")
	e.log.WarnContext(ctx, "distribution transfer failed, share kept as unclaimed",
		"agreement_id", agreementID, "holder", holder, "amount", share)
	return rec.Emit(ctx, agreementID, event.TypeDistributionFailed, map[string]string{
		"holder": holder,
		"amount": event.Amount(share),
	})
}
