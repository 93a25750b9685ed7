package repositories

import (
	"context"
	"time"

	"easymoney-loans/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// CustomerRepository handles customer data access
type CustomerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Create creates a new customer
func (r *CustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

// GetByID gets a customer by ID (archived included)
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&customer).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &customer, err
}

// ExistsActiveByIdentity checks the (client_name, id_number) uniqueness
// invariant against non-archived customers
func (r *CustomerRepository) ExistsActiveByIdentity(ctx context.Context, clientName, idNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("client_name = ? AND id_number = ? AND archived_at IS NULL", clientName, idNumber).
		Count(&count).Error
	return count > 0, err
}

// ListActive lists non-archived customers with pagination
func (r *CustomerRepository) ListActive(ctx context.Context, offset, limit int) ([]*models.Customer, int64, error) {
	var customers []*models.Customer
	var total int64

	base := r.db.WithContext(ctx).Model(&models.Customer{}).Where("archived_at IS NULL")
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Where("archived_at IS NULL").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&customers).Error

	return customers, total, err
}

// CountActive counts non-archived customers
func (r *CustomerRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("archived_at IS NULL").
		Count(&count).Error
	return count, err
}

// Archive soft-deletes a customer
func (r *CustomerRepository) Archive(ctx context.Context, id string, at time.Time, by string) error {
	return r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"archived_at": at, "archived_by": by}).Error
}

// ListAll lists every customer, archived included (backup/export)
func (r *CustomerRepository) ListAll(ctx context.Context) ([]*models.Customer, error) {
	var customers []*models.Customer
	err := r.db.WithContext(ctx).Order("created_at").Find(&customers).Error
	return customers, err
}

// ReplaceAll wipes the table and inserts the given rows (restore path)
func (r *CustomerRepository) ReplaceAll(ctx context.Context, customers []*models.Customer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Customer{}).Error; err != nil {
			return err
		}
		if len(customers) == 0 {
			return nil
		}
		return tx.CreateInBatches(customers, 500).Error
	})
}
