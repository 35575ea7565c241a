package mysql

import (
	"context"
	"errors"

	"yield-agreement-backend/internal/domain/settings"

	"gorm.io/gorm"
)

type SettingsRepository struct{ db *gorm.DB }

func NewSettingsRepository(db *gorm.DB) *SettingsRepository { return &SettingsRepository{db: db} }

func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var out settings.Setting
	err := r.db.WithContext(ctx).Where("setting_key = ?", key).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", settings.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return out.Value, nil
}

func (r *SettingsRepository) Create(ctx context.Context, key, value string) error {
	if _, err := r.Get(ctx, key); err == nil {
		return settings.ErrExists
	} else if !errors.Is(err, settings.ErrNotFound) {
		return err
	}
	return r.db.WithContext(ctx).Create(&settings.Setting{Key: key, Value: value}).Error
}
