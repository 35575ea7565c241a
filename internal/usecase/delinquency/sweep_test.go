package delinquency

import (
	"context"
	"errors"
	"testing"
	"time"

	"yield-agreement-backend/internal/domain/access"
	"yield-agreement-backend/internal/domain/agreement"
	"yield-agreement-backend/internal/domain/event"
	"yield-agreement-backend/internal/domain/uow"
	"yield-agreement-backend/internal/testutil/agreementmock"
	"yield-agreement-backend/internal/testutil/uowmock"
	"yield-agreement-backend/internal/usecase/runner"

	"github.com/stretchr/testify/require"
)

type memEvents struct{ recs []event.Record }

func (m *memEvents) Append(_ context.Context, r *event.Record) error {
	m.recs = append(m.recs, *r)
	return nil
}

func (m *memEvents) ListByAgreement(_ context.Context, id uint64) ([]event.Record, error) {
	var out []event.Record
	for _, r := range m.recs {
		if r.AgreementID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memEvents) ListUnpublished(_ context.Context, before int64, limit int) ([]event.Record, error) {
	var out []event.Record
	for _, r := range m.recs {
		if r.PublishedAt == 0 && r.OccurredAt <= before && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memEvents) MarkPublished(_ context.Context, ids []string, at int64) error {
	for i := range m.recs {
		for _, id := range ids {
			if m.recs[i].EventID == id && m.recs[i].PublishedAt == 0 {
				m.recs[i].PublishedAt = at
			}
		}
	}
	return nil
}

func TestSweepGracePeriods_ContinuesPastFailures(t *testing.T) {
	now := time.Unix(2_000_000, 0)
	expired := agreement.YieldAgreement{
		ID: 1, UpfrontCapital: 1_000, RepaymentTermMonths: 12, IsActive: true,
		GracePeriodExpiryTimestamp: now.Unix() - 1,
	}
	broken := agreement.YieldAgreement{ID: 2, UpfrontCapital: 1_000, IsActive: true, GracePeriodExpiryTimestamp: now.Unix() - 1}

	var saved []uint64
	events := &memEvents{}
	repos := uow.Repos{
		Agreements: &agreementmock.Repo{
			ListInGracePeriodFn: func(context.Context) ([]agreement.YieldAgreement, error) {
				return []agreement.YieldAgreement{broken, expired}, nil
			},
			SaveFn: func(_ context.Context, a *agreement.YieldAgreement) error {
				saved = append(saved, a.ID)
				return nil
			},
		},
		Events: events,
	}
	boom := errors.New("row lock timeout")
	tx := uowmock.New().
		WithWithinTx(func(_ context.Context, fn func(uow.Repos) error) error { return fn(repos) }).
		WithWithinAgreementTx(func(_ context.Context, id uint64, fn func(uow.Repos, *agreement.YieldAgreement) error) error {
			if id == broken.ID {
				return boom
			}
			a := expired
			return fn(repos, &a)
		})

	run := runner.New(tx, runner.WithClock(func() time.Time { return now }))
	uc := NewUsecase(run, access.NewPolicy(nil, nil))

	flipped, err := uc.SweepGracePeriods(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, flipped)
	require.Equal(t, []uint64{expired.ID}, saved)
	require.Len(t, events.recs, 1)
	require.Equal(t, event.TypeAgreementDefaulted, events.recs[0].Type)
}

func TestSweepGracePeriods_ListFailure(t *testing.T) {
	boom := errors.New("db down")
	repos := uow.Repos{Agreements: &agreementmock.Repo{
		ListInGracePeriodFn: func(context.Context) ([]agreement.YieldAgreement, error) { return nil, boom },
	}}
	uc := NewUsecase(runner.New(uowmock.Fixed(repos, nil)), access.NewPolicy(nil, nil))

	flipped, err := uc.SweepGracePeriods(context.Background())
	require.ErrorIs(t, err, boom)
	require.Zero(t, flipped)
}

func TestHandleMissedPayment_UnknownAgreementViaMock(t *testing.T) {
	tx := uowmock.New().WithWithinAgreementTx(func(context.Context, uint64, func(uow.Repos, *agreement.YieldAgreement) error) error {
		return agreement.ErrNotFound
	})
	uc := NewUsecase(runner.New(tx), access.NewPolicy(nil, []string{keeper}))

	_, err := uc.HandleMissedPayment(context.Background(), keeper, 42)
	require.ErrorIs(t, err, agreement.ErrNotFound)
}
