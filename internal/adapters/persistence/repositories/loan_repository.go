package repositories

import (
	"context"
	"time"

	"easymoney-loans/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// LoanRepository handles loan data access
type LoanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

// Create creates a new loan
func (r *LoanRepository) Create(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Create(loan).Error
}

// GetByID gets a loan by ID (archived included)
func (r *LoanRepository) GetByID(ctx context.Context, id string) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&loan).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &loan, err
}

// ListActive lists non-archived loans, optionally filtered by status
func (r *LoanRepository) ListActive(ctx context.Context, status string, offset, limit int) ([]*models.Loan, int64, error) {
	var loans []*models.Loan
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Loan{}).Where("archived_at IS NULL")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&loans).Error

	return loans, total, err
}

// CountActiveByCustomers counts non-archived loans per customer across the
// customer's whole history, in one grouped query
func (r *LoanRepository) CountActiveByCustomers(ctx context.Context, customerIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(customerIDs))
	if len(customerIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		CustomerID string
		Total      int64
	}
	err := r.db.WithContext(ctx).Model(&models.Loan{}).
		Select("customer_id", "COUNT(*) AS total").
		Where("customer_id IN ? AND archived_at IS NULL", customerIDs).
		Group("customer_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.CustomerID] = row.Total
	}
	return counts, nil
}

// Update saves a loan
func (r *LoanRepository) Update(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Save(loan).Error
}

// Archive soft-deletes a loan
func (r *LoanRepository) Archive(ctx context.Context, id string, at time.Time, by string) error {
	return r.db.WithContext(ctx).Model(&models.Loan{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"archived_at": at, "archived_by": by}).Error
}

// CountActive counts non-archived loans, optionally by status
func (r *LoanRepository) CountActive(ctx context.Context, status string) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Loan{}).Where("archived_at IS NULL")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Count(&count).Error
	return count, err
}

// SumOutstandingOpen sums the outstanding balance of open, non-archived loans
func (r *LoanRepository) SumOutstandingOpen(ctx context.Context) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).Model(&models.Loan{}).
		Select("COALESCE(SUM(outstanding_balance), 0)").
		Where("status = ? AND archived_at IS NULL", "open").
		Scan(&total).Error
	return total, err
}

// ListAll lists every loan, archived included (backup/export/dashboard)
func (r *LoanRepository) ListAll(ctx context.Context) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := r.db.WithContext(ctx).Order("created_at").Find(&loans).Error
	return loans, err
}

// ListAllActive lists every non-archived loan without pagination
func (r *LoanRepository) ListAllActive(ctx context.Context) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := r.db.WithContext(ctx).
		Where("archived_at IS NULL").
		Order("created_at").
		Find(&loans).Error
	return loans, err
}

// ReplaceAll wipes the table and inserts the given rows (restore path)
func (r *LoanRepository) ReplaceAll(ctx context.Context, loans []*models.Loan) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Loan{}).Error; err != nil {
			return err
		}
		if len(loans) == 0 {
			return nil
		}
		return tx.CreateInBatches(loans, 500).Error
	})
}
