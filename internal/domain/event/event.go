// Package event describes the domain events recorded for the external indexer.
package event

import (
	"context"
	"strconv"
)

const (
	TypeAgreementCreated         = "agreement.created"
	TypeRepaymentMade            = "agreement.repayment_made"
	TypePartialRepaymentMade     = "agreement.partial_repayment_made"
	TypeEarlyRepaymentMade       = "agreement.early_repayment_made"
	TypeAgreementCompleted       = "agreement.completed"
	TypePaymentMissed            = "agreement.payment_missed"
	TypeAgreementDefaulted       = "agreement.defaulted"
	TypeROIAdjusted              = "agreement.roi_adjusted"
	TypeReserveAllocated         = "agreement.reserve_allocated"
	TypeReserveWithdrawn         = "agreement.reserve_withdrawn"
	TypeGracePeriodUpdated       = "agreement.grace_period_updated"
	TypePenaltyRateUpdated       = "agreement.penalty_rate_updated"
	TypeDefaultThresholdUpdated  = "agreement.default_threshold_updated"
	TypePartialRepaymentsToggled = "agreement.partial_repayments_toggled"
	TypeEarlyRepaymentToggled    = "agreement.early_repayment_toggled"
	TypeControllerSet            = "governance.controller_set"
	TypeDistributionFailed       = "distribution.transfer_failed"
	TypeUnclaimedClaimed         = "distribution.unclaimed_claimed"
)

// Record is one emitted event. Attributes carry the payload fields as strings.
// PublishedAt stays 0 until the record has reached the publisher.
type Record struct {
	ID          uint64            `gorm:"primaryKey;column:id;autoIncrement" json:"-"`
	EventID     string            `gorm:"column:event_id;size:32;uniqueIndex" json:"event_id"`
	AgreementID uint64            `gorm:"column:agreement_id;index" json:"agreement_id"`
	Type        string            `gorm:"column:type;size:64;not null" json:"type"`
	Attributes  map[string]string `gorm:"column:attributes;serializer:json;type:text" json:"attributes"`
	OccurredAt  int64             `gorm:"column:occurred_at;not null" json:"occurred_at"`
	PublishedAt int64             `gorm:"column:published_at;not null;default:0;index" json:"published_at,omitempty"`
}

func (Record) TableName() string { return "agreement_events" }

// Store is the transactional outbox.
type Store interface {
	Append(ctx context.Context, r *Record) error
	ListByAgreement(ctx context.Context, agreementID uint64) ([]Record, error)
	// ListUnpublished returns up to limit unpublished records that occurred
	// at or before the given time, oldest first.
	ListUnpublished(ctx context.Context, before int64, limit int) ([]Record, error)
	MarkPublished(ctx context.Context, eventIDs []string, at int64) error
}

// Publisher relays committed records downstream.
type Publisher interface {
	Publish(ctx context.Context, records []Record) error
}

// NoopPublisher discards everything.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, []Record) error { return nil }

// EventIDs lists the event ids of records in order.
func EventIDs(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.EventID)
	}
	return out
}

// Amount formats an amount attribute.
func Amount(v uint64) string { return strconv.FormatUint(v, 10) }

// Int formats a signed attribute such as a timestamp.
func Int(v int64) string { return strconv.FormatInt(v, 10) }

// Bool formats a flag attribute.
func Bool(v bool) string { return strconv.FormatBool(v) }
