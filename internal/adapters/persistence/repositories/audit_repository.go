package repositories

import (
	"context"

	"easymoney-loans/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// AuditRepository handles audit ledger data access. Entries are only
// ever inserted; there is no update or delete path.
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an entry to the ledger
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// GetLatest returns the chronologically most recent entry, or nil on an
// empty ledger (genesis case)
func (r *AuditRepository) GetLatest(ctx context.Context) (*models.AuditLog, error) {
	var entry models.AuditLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &entry, err
}

// ListChronological returns all entries oldest first (chain verification)
func (r *AuditRepository) ListChronological(ctx context.Context) ([]*models.AuditLog, error) {
	var entries []*models.AuditLog
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&entries).Error
	return entries, err
}

// ListFilter describes optional audit list filters
type ListFilter struct {
	EntityType string
	EntityID   string
	ActorID    string
	Limit      int
}

// List returns entries newest first, filtered
func (r *AuditRepository) List(ctx context.Context, filter ListFilter) ([]*models.AuditLog, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditLog{})
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.ActorID != "" {
		query = query.Where("actor_user_id = ?", filter.ActorID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var entries []*models.AuditLog
	err := query.Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
