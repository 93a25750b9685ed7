package repositories

import (
	"context"
	"time"

	"easymoney-loans/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// PaymentRepository handles payment data access
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreateBatch inserts the full installment schedule for a loan
func (r *PaymentRepository) CreateBatch(ctx context.Context, payments []*models.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(payments).Error
}

// GetByLoanAndInstallment gets one payment by its (loan, installment) key
func (r *PaymentRepository) GetByLoanAndInstallment(ctx context.Context, loanID string, installmentNumber int) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("loan_id = ? AND installment_number = ?", loanID, installmentNumber).
		First(&payment).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &payment, err
}

// MarkPaid sets the terminal paid state on a payment
func (r *PaymentRepository) MarkPaid(ctx context.Context, id string, at time.Time, by string) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_paid": true,
			"paid_at": at,
			"paid_by": by,
		}).Error
}

// ListByLoan lists a loan's payments in installment order
func (r *PaymentRepository) ListByLoan(ctx context.Context, loanID string) ([]*models.Payment, error) {
	var payments []*models.Payment
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("installment_number").
		Find(&payments).Error
	return payments, err
}

// ListByLoans loads payments for a set of loans keyed by loan ID
func (r *PaymentRepository) ListByLoans(ctx context.Context, loanIDs []string) (map[string][]*models.Payment, error) {
	grouped := make(map[string][]*models.Payment, len(loanIDs))
	if len(loanIDs) == 0 {
		return grouped, nil
	}

	var payments []*models.Payment
	err := r.db.WithContext(ctx).
		Where("loan_id IN ?", loanIDs).
		Order("installment_number").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}

	for _, p := range payments {
		grouped[p.LoanID] = append(grouped[p.LoanID], p)
	}
	return grouped, nil
}

// SumPaidByLoan sums the amount due of already-paid installments
func (r *PaymentRepository) SumPaidByLoan(ctx context.Context, loanID string) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Select("COALESCE(SUM(amount_due), 0)").
		Where("loan_id = ? AND is_paid = ?", loanID, true).
		Scan(&total).Error
	return total, err
}

// ListAll lists every payment (backup/export)
func (r *PaymentRepository) ListAll(ctx context.Context) ([]*models.Payment, error) {
	var payments []*models.Payment
	err := r.db.WithContext(ctx).Order("created_at").Find(&payments).Error
	return payments, err
}

// ReplaceAll wipes the table and inserts the given rows (restore path)
func (r *PaymentRepository) ReplaceAll(ctx context.Context, payments []*models.Payment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		if len(payments) == 0 {
			return nil
		}
		return tx.CreateInBatches(payments, 500).Error
	})
}
