package mysql

import (
	"context"

	"yield-agreement-backend/internal/domain/event"

	"gorm.io/gorm"
)

type EventStore struct{ db *gorm.DB }

func NewEventStore(db *gorm.DB) *EventStore { return &EventStore{db: db} }

func (s *EventStore) Append(ctx context.Context, r *event.Record) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *EventStore) ListByAgreement(ctx context.Context, agreementID uint64) ([]event.Record, error) {
	var out []event.Record
	err := s.db.WithContext(ctx).
		Where("agreement_id = ?", agreementID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (s *EventStore) ListUnpublished(ctx context.Context, before int64, limit int) ([]event.Record, error) {
	var out []event.Record
	err := s.db.WithContext(ctx).
		Where("published_at = 0 AND occurred_at <= ?", before).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkPublished stamps records that are still unpublished; already stamped
// ones keep their first publish time.
func (s *EventStore) MarkPublished(ctx context.Context, eventIDs []string, at int64) error {
	if len(eventIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&event.Record{}).
		Where("event_id IN ? AND published_at = 0", eventIDs).
		Update("published_at", at).Error
}
