package services

import (
	"context"
	"testing"

	"easymoney-loans/internal/adapters/persistence/models"
	"easymoney-loans/internal/adapters/persistence/repositories"
	"easymoney-loans/internal/core/domain"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires the full service graph against an in-memory sqlite
// database so scenarios run end to end without mocks
type testEnv struct {
	db *gorm.DB

	userRepo     *repositories.UserRepository
	customerRepo *repositories.CustomerRepository
	loanRepo     *repositories.LoanRepository
	paymentRepo  *repositories.PaymentRepository
	auditRepo    *repositories.AuditRepository

	auditService    *AuditService
	customerService *CustomerService
	loanService     *LoanService
	paymentService  *PaymentService
	archiveService  *ArchiveService
	userService     *UserService
	fraudService    *FraudService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("error opening test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("error getting sql.DB: %v", err)
	}
	// A second connection to :memory: would get its own empty database
	sqlDB.SetMaxOpenConns(1)

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("error migrating test database: %v", err)
	}

	env := &testEnv{
		db:           db,
		userRepo:     repositories.NewUserRepository(db),
		customerRepo: repositories.NewCustomerRepository(db),
		loanRepo:     repositories.NewLoanRepository(db),
		paymentRepo:  repositories.NewPaymentRepository(db),
		auditRepo:    repositories.NewAuditRepository(db),
	}
	calc := NewCalcService()
	env.fraudService = NewFraudService()
	env.auditService = NewAuditService(env.auditRepo)
	env.customerService = NewCustomerService(env.customerRepo, env.userRepo, env.auditService)
	env.loanService = NewLoanService(env.loanRepo, env.paymentRepo, env.customerRepo, env.userRepo, calc, env.fraudService, env.auditService)
	env.paymentService = NewPaymentService(env.paymentRepo, env.loanRepo, env.auditService)
	env.archiveService = NewArchiveService(env.customerRepo, env.loanRepo, env.auditService)
	env.userService = NewUserService(env.userRepo, env.auditService)
	return env
}

func (e *testEnv) seedUser(t *testing.T, fullName string, role domain.Role) domain.Actor {
	t.Helper()
	user := &models.User{
		ID:       uuid.New().String(),
		Username: uuid.New().String()[:8],
		FullName: fullName,
		Role:     string(role),
		Branch:   "Head Office",
		IsActive: true,
	}
	if err := e.userRepo.Create(context.Background(), user); err != nil {
		t.Fatalf("error seeding user: %v", err)
	}
	return domain.Actor{
		ID:       user.ID,
		Name:     user.FullName,
		Username: user.Username,
		Role:     role,
		Branch:   user.Branch,
	}
}

func (e *testEnv) seedCustomer(t *testing.T, actor domain.Actor, idNumber string) *models.CustomerResponse {
	t.Helper()
	customer, _, err := e.customerService.Create(context.Background(), CreateCustomerInput{
		ClientName: "Thandi Nkosi",
		IDNumber:   idNumber,
		MandateID:  "MND-" + idNumber[:6],
	}, actor)
	if err != nil {
		t.Fatalf("error seeding customer: %v", err)
	}
	return customer
}

func (e *testEnv) auditCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	if err := e.db.Model(&models.AuditLog{}).Count(&count).Error; err != nil {
		t.Fatalf("error counting audit entries: %v", err)
	}
	return count
}
