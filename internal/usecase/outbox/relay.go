// Package outbox re-publishes committed events whose publish after commit
// did not go through.
package outbox

import (
	"context"
	"fmt"
	"time"

	"yield-agreement-backend/internal/domain/event"
	"yield-agreement-backend/internal/domain/uow"
	"yield-agreement-backend/internal/usecase/runner"
)

const (
	DefaultBatch = 500
	// DefaultMinAge leaves fresh records to the publish that follows their commit.
	DefaultMinAge = time.Minute
)

type Relay struct {
	run    *runner.Runner
	batch  int
	minAge time.Duration
}

func NewRelay(run *runner.Runner, batch int, minAge time.Duration) *Relay {
	if batch <= 0 {
		batch = DefaultBatch
	}
	if minAge < 0 {
		minAge = 0
	}
	return &Relay{run: run, batch: batch, minAge: minAge}
}

// RelayPending publishes one batch of unpublished records, oldest first, and
// marks them published. Delivery is at least once: the indexer dedupes on
// event_id.
func (r *Relay) RelayPending(ctx context.Context) (int, error) {
	before := r.run.Clock().Add(-r.minAge).Unix()

	var pending []event.Record
	err := r.run.UoW.WithinTx(ctx, func(repos uow.Repos) error {
		var err error
		pending, err = repos.Events.ListUnpublished(ctx, before, r.batch)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list unpublished events: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	if err := r.run.Publisher.Publish(ctx, pending); err != nil {
		return 0, fmt.Errorf("relay %d events: %w", len(pending), err)
	}
	if err := r.run.MarkPublished(ctx, pending); err != nil {
		return len(pending), fmt.Errorf("mark %d relayed events: %w", len(pending), err)
	}
	r.run.Logger.InfoContext(ctx, "relayed events", "count", len(pending), "oldest", pending[0].EventID)
	return len(pending), nil
}
