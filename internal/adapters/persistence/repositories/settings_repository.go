package repositories

import (
	"context"

	"easymoney-loans/internal/adapters/persistence/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository handles the flat key/value settings store
type SettingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get gets a setting by key
func (r *SettingsRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting
	err := r.db.WithContext(ctx).Where("`key` = ?", key).First(&setting).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &setting, err
}

// Upsert creates or updates a setting
func (r *SettingsRepository) Upsert(ctx context.Context, key, value string) error {
	setting := &models.Setting{Key: key, Value: value}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(setting).Error
}

// List lists all settings except the master password hash
func (r *SettingsRepository) List(ctx context.Context) ([]*models.Setting, error) {
	var settings []*models.Setting
	err := r.db.WithContext(ctx).
		Where("`key` <> ?", models.SettingMasterPasswordHash).
		Find(&settings).Error
	return settings, err
}
