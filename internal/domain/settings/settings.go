// Package settings stores service-wide values that are set once.
package settings

import (
	"context"
	"time"

	"yield-agreement-backend/internal/domain/apperr"
)

const KeyGovernanceController = "governance_controller"

var (
	ErrControllerNotSet     = apperr.New(apperr.KindInvalidState, "governance controller not set")
	ErrControllerAlreadySet = apperr.New(apperr.KindConflict, "governance controller already set")
	ErrNotFound             = apperr.New(apperr.KindNotFound, "setting not found")
	ErrExists               = apperr.New(apperr.KindConflict, "setting already exists")
)

type Setting struct {
	Key       string    `gorm:"column:setting_key;primaryKey;size:64" json:"key"`
	Value     string    `gorm:"column:value;type:text;not null" json:"value"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Setting) TableName() string { return "settings" }

type Repository interface {
	// Get returns ErrNotFound for a missing key.
	Get(ctx context.Context, key string) (string, error)
	// Create fails with ErrExists if the key is already set.
	Create(ctx context.Context, key, value string) error
}
