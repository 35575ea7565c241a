package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"yield-agreement-backend/internal/domain/event"
	"yield-agreement-backend/internal/domain/uow"
	"yield-agreement-backend/internal/testutil/testdb"
	"yield-agreement-backend/internal/testutil/uowmock"
	"yield-agreement-backend/internal/usecase/runner"

	"github.com/stretchr/testify/require"
)

type flakyPublisher struct {
	fail bool
	got  []event.Record
}

func (p *flakyPublisher) Publish(_ context.Context, records []event.Record) error {
	if p.fail {
		return errors.New("redis: connection refused")
	}
	p.got = append(p.got, records...)
	return nil
}

var start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func stored(t *testing.T, tx uow.UnitOfWork, agreementID uint64) []event.Record {
	t.Helper()
	var out []event.Record
	require.NoError(t, tx.WithinTx(context.Background(), func(r uow.Repos) error {
		var err error
		out, err = r.Events.ListByAgreement(context.Background(), agreementID)
		return err
	}))
	return out
}

func emit(t *testing.T, run *runner.Runner, agreementID uint64, types ...string) {
	t.Helper()
	require.NoError(t, run.Tx(context.Background(), false, func(_ uow.Repos, rec *event.Recorder, _ int64) error {
		for _, typ := range types {
			if err := rec.Emit(context.Background(), agreementID, typ, nil); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestRelay_RepublishesAfterFailedPublish(t *testing.T) {
	_, tx := testdb.Open(t)
	clock := start
	pub := &flakyPublisher{fail: true}
	run := runner.New(tx, runner.WithPublisher(pub), runner.WithClock(func() time.Time { return clock }))

	emit(t, run, 7, event.TypeRepaymentMade, event.TypeAgreementCompleted)
	for _, rec := range stored(t, tx, 7) {
		require.Zero(t, rec.PublishedAt, "failed publish must leave %s unpublished", rec.Type)
	}

	relay := NewRelay(run, 10, time.Minute)

	// too fresh: left to the publish after commit
	n, err := relay.RelayPending(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)

	clock = start.Add(2 * time.Minute)
	pub.fail = false
	n, err = relay.RelayPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []string{event.TypeRepaymentMade, event.TypeAgreementCompleted}, []string{pub.got[0].Type, pub.got[1].Type})
	for _, rec := range stored(t, tx, 7) {
		require.Equal(t, clock.Unix(), rec.PublishedAt)
	}

	n, err = relay.RelayPending(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Len(t, pub.got, 2)
}

func TestRelay_PublishFailureKeepsRecords(t *testing.T) {
	_, tx := testdb.Open(t)
	pub := &flakyPublisher{fail: true}
	run := runner.New(tx, runner.WithPublisher(pub), runner.WithClock(func() time.Time { return start }))
	emit(t, run, 3, event.TypePaymentMissed)

	n, err := NewRelay(run, 10, 0).RelayPending(context.Background())
	require.Error(t, err)
	require.Zero(t, n)
	require.Zero(t, stored(t, tx, 3)[0].PublishedAt)
}

func TestRelay_BatchLimit(t *testing.T) {
	_, tx := testdb.Open(t)
	pub := &flakyPublisher{fail: true}
	run := runner.New(tx, runner.WithPublisher(pub), runner.WithClock(func() time.Time { return start }))
	emit(t, run, 1, event.TypePaymentMissed, event.TypePaymentMissed, event.TypeAgreementDefaulted)
	pub.fail = false

	relay := NewRelay(run, 2, 0)
	n, err := relay.RelayPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	n, err = relay.RelayPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, event.TypeAgreementDefaulted, pub.got[2].Type)
}

func TestRelay_ListFailure(t *testing.T) {
	boom := errors.New("db down")
	tx := uowmock.New().WithWithinTx(func(context.Context, func(uow.Repos) error) error { return boom })
	pub := &flakyPublisher{}

	n, err := NewRelay(runner.New(tx, runner.WithPublisher(pub)), 0, 0).RelayPending(context.Background())
	require.ErrorIs(t, err, boom)
	require.Zero(t, n)
	require.Empty(t, pub.got)
}
