// Package runner executes one use case operation: re-entrancy guard, locked
// transaction, event outbox, and publish after commit.
package runner

import (
	"context"
	"log/slog"
	"time"

	"yield-agreement-backend/internal/domain/agreement"
	"yield-agreement-backend/internal/domain/event"
	"yield-agreement-backend/internal/domain/guard"
	"yield-agreement-backend/internal/domain/uow"
	"yield-agreement-backend/internal/infrastructure/metrics"
)

type Runner struct {
	UoW       uow.UnitOfWork
	Guard     guard.Guard
	Publisher event.Publisher
	Metrics   *metrics.AgreementMetrics
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Option customises a Runner built by New.
type Option func(*Runner)

func WithGuard(g guard.Guard) Option {
	return func(r *Runner) { r.Guard = g }
}

func WithPublisher(p event.Publisher) Option {
	return func(r *Runner) { r.Publisher = p }
}

func WithMetrics(m *metrics.AgreementMetrics) Option {
	return func(r *Runner) { r.Metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.Logger = l }
}

func WithClock(c func() time.Time) Option {
	return func(r *Runner) { r.Clock = c }
}

// New fills unset collaborators with a process-local guard, a no-op publisher,
// the default logger and the wall clock.
func New(tx uow.UnitOfWork, opts ...Option) *Runner {
	r := &Runner{UoW: tx}
	for _, opt := range opts {
		opt(r)
	}
	if r.Guard == nil {
		r.Guard = guard.NewLocal()
	}
	if r.Publisher == nil {
		r.Publisher = event.NoopPublisher{}
	}
	if r.Logger == nil {
		r.Logger = slog.Default()
	}
	if r.Clock == nil {
		r.Clock = func() time.Time { return time.Now().UTC() }
	}
	return r
}

// Now is the current time in unix seconds.
func (r *Runner) Now() int64 { return r.Clock().Unix() }

// AgreementFunc mutates one locked agreement. now is fixed for the whole call.
type AgreementFunc func(repos uow.Repos, a *agreement.YieldAgreement, rec *event.Recorder, now int64) error

// TxFunc runs inside a plain transaction.
type TxFunc func(repos uow.Repos, rec *event.Recorder, now int64) error

// Agreement runs fn against the locked agreement row. Guarded operations hold
// the re-entrancy guard until the transaction has finished.
func (r *Runner) Agreement(ctx context.Context, agreementID uint64, guarded bool, fn AgreementFunc) error {
	if agreementID == 0 {
		return agreement.ErrNotFound
	}
	return r.run(ctx, guarded, func(now int64) ([]event.Record, error) {
		var rec *event.Recorder
		err := r.UoW.WithinAgreementTx(ctx, agreementID, func(repos uow.Repos, a *agreement.YieldAgreement) error {
			if err := a.RequireExists(); err != nil {
				return err
			}
			rec = event.NewRecorder(repos.Events, now)
			return fn(repos, a, rec, now)
		})
		if err != nil || rec == nil {
			return nil, err
		}
		return rec.Records(), nil
	})
}

// Tx runs fn inside a plain transaction.
func (r *Runner) Tx(ctx context.Context, guarded bool, fn TxFunc) error {
	return r.run(ctx, guarded, func(now int64) ([]event.Record, error) {
		var rec *event.Recorder
		err := r.UoW.WithinTx(ctx, func(repos uow.Repos) error {
			rec = event.NewRecorder(repos.Events, now)
			return fn(repos, rec, now)
		})
		if err != nil || rec == nil {
			return nil, err
		}
		return rec.Records(), nil
	})
}

func (r *Runner) run(ctx context.Context, guarded bool, body func(now int64) ([]event.Record, error)) error {
	if guarded {
		release, err := r.Guard.Enter(ctx)
		if err != nil {
			r.Metrics.ObserveGuardRejection()
			return err
		}
		defer release()
	}

	records, err := body(r.Now())
	if err != nil {
		return err
	}
	if event.Flush(ctx, r.Publisher, r.Logger, records) {
		if err := r.MarkPublished(ctx, records); err != nil {
			r.Logger.WarnContext(ctx, "mark events published", "count", len(records), "err", err)
		}
	}
	return nil
}

// MarkPublished stamps records as delivered so the relay skips them.
func (r *Runner) MarkPublished(ctx context.Context, records []event.Record) error {
	ids := event.EventIDs(records)
	return r.UoW.WithinTx(ctx, func(repos uow.Repos) error {
		return repos.Events.MarkPublished(ctx, ids, r.Now())
	})
}
