package event

import (
	"context"
	"log/slog"

	"yield-agreement-backend/pkg/id"
)

// Recorder stages records inside a transaction and publishes them once the
// transaction has committed.
type Recorder struct {
	store   Store
	now     int64
	pending []Record
}

func NewRecorder(store Store, now int64) *Recorder {
	return &Recorder{store: store, now: now}
}

// Emit appends a record to the outbox.
func (r *Recorder) Emit(ctx context.Context, agreementID uint64, typ string, attrs map[string]string) error {
	rec := Record{
		EventID:     id.NewID32(),
		AgreementID: agreementID,
		Type:        typ,
		Attributes:  attrs,
		OccurredAt:  r.now,
	}
	if err := r.store.Append(ctx, &rec); err != nil {
		return err
	}
	r.pending = append(r.pending, rec)
	return nil
}

// Records returns what has been emitted so far.
func (r *Recorder) Records() []Record { return r.pending }

// Types lists the emitted event types in order.
func (r *Recorder) Types() []string {
	out := make([]string, 0, len(r.pending))
	for _, rec := range r.pending {
		out = append(out, rec.Type)
	}
	return out
}

// Flush hands committed records to the publisher and reports whether they
// were accepted. The outbox already holds them, so a publish failure is
// logged and left to the relay.
func Flush(ctx context.Context, p Publisher, log *slog.Logger, records []Record) bool {
	if p == nil || len(records) == 0 {
		return false
	}
	if err := p.Publish(ctx, records); err != nil {
		log.WarnContext(ctx, "event publish failed", "count", len(records), "err", err)
		return false
	}
	return true
}
