package models

import (
	"encoding/json"
	"time"

	"easymoney-loans/internal/pkg/idnumber"

	"gorm.io/gorm"
)

// ============================================================
// Users & Sessions
// ============================================================

// User represents users table. AD-provisioned users carry an empty
// password hash and authenticate against the directory only.
type User struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:50;not null" json:"username"`
	PasswordHash string     `gorm:"size:255" json:"-"`
	FullName     string     `gorm:"size:100;not null" json:"full_name"`
	Role         string     `gorm:"size:20;default:'employee'" json:"role"`
	Branch       string     `gorm:"size:100" json:"branch"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	AuthMethod   string     `gorm:"size:20;default:'local'" json:"auth_method"`
	ADGroups     string     `gorm:"type:text" json:"-"` // JSON-encoded group DNs
	LastADSyncAt *time.Time `json:"last_ad_sync_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

// UserResponse DTO
type UserResponse struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	FullName   string    `json:"full_name"`
	Role       string    `json:"role"`
	Branch     string    `json:"branch"`
	IsActive   bool      `json:"is_active"`
	AuthMethod string    `json:"auth_method"`
	CreatedAt  time.Time `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:         u.ID,
		Username:   u.Username,
		FullName:   u.FullName,
		Role:       u.Role,
		Branch:     u.Branch,
		IsActive:   u.IsActive,
		AuthMethod: u.AuthMethod,
		CreatedAt:  u.CreatedAt,
	}
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    string     `gorm:"size:36;index;not null" json:"user_id"`
	TokenHash string     `gorm:"size:255;not null;index" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// ============================================================
// Customers
// ============================================================

// Customer represents customers table. Archival is a soft-delete:
// archived rows never leave the table.
type Customer struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	ClientName string     `gorm:"size:150;not null;index:idx_customer_identity" json:"client_name"`
	IDNumber   string     `gorm:"size:13;not null;index:idx_customer_identity" json:"id_number"`
	MandateID  string     `gorm:"size:50;not null" json:"mandate_id"`
	CellPhone  *string    `gorm:"size:20" json:"cell_phone,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	CreatedBy  string     `gorm:"size:36;not null" json:"created_by"`
	UpdatedAt  *time.Time `json:"updated_at"`
	UpdatedBy  *string    `gorm:"size:36" json:"updated_by"`
	ArchivedAt *time.Time `gorm:"index" json:"archived_at"`
	ArchivedBy *string    `gorm:"size:36" json:"archived_by"`
}

func (Customer) TableName() string {
	return "customers"
}

func (c *Customer) IsArchived() bool {
	return c.ArchivedAt != nil
}

// CustomerResponse DTO with enrichment and ID masking applied by the service
type CustomerResponse struct {
	ID             string     `json:"id"`
	ClientName     string     `json:"client_name"`
	IDNumber       string     `json:"id_number"`
	IDNumberMasked string     `json:"id_number_masked"`
	MandateID      string     `json:"mandate_id"`
	CellPhone      *string    `json:"cell_phone,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CreatedBy      string     `json:"created_by"`
	CreatedByName  string     `json:"created_by_name"`
	UpdatedAt      *time.Time `json:"updated_at"`
	UpdatedBy      *string    `json:"updated_by"`
	ArchivedAt     *time.Time `json:"archived_at"`
	ArchivedBy     *string    `json:"archived_by"`
}

// ToResponse converts a customer to its DTO. When revealFullID is false
// the plain id_number field carries the masked form as well.
func (c *Customer) ToResponse(revealFullID bool) CustomerResponse {
	masked := idnumber.Mask(c.IDNumber)
	resp := CustomerResponse{
		ID:             c.ID,
		ClientName:     c.ClientName,
		IDNumber:       masked,
		IDNumberMasked: masked,
		MandateID:      c.MandateID,
		CellPhone:      c.CellPhone,
		CreatedAt:      c.CreatedAt,
		CreatedBy:      c.CreatedBy,
		UpdatedAt:      c.UpdatedAt,
		UpdatedBy:      c.UpdatedBy,
		ArchivedAt:     c.ArchivedAt,
		ArchivedBy:     c.ArchivedBy,
	}
	if revealFullID {
		resp.IDNumber = c.IDNumber
	}
	return resp
}

// ============================================================
// Loans & Payments
// ============================================================

// Loan represents loans table. Core term fields are locked at creation;
// changes go through the override workflow only.
type Loan struct {
	ID                 string     `gorm:"primaryKey;size:36" json:"id"`
	CustomerID         string     `gorm:"size:36;not null;index" json:"customer_id"`
	LoanDate           time.Time  `gorm:"not null" json:"loan_date"`
	PrincipalAmount    float64    `gorm:"type:decimal(12,2);not null" json:"principal_amount"`
	InterestRate       float64    `gorm:"type:decimal(5,2);not null" json:"interest_rate"`
	ServiceFee         float64    `gorm:"type:decimal(8,2);not null" json:"service_fee"`
	TotalRepayable     float64    `gorm:"type:decimal(12,2);not null" json:"total_repayable"`
	RepaymentPlanCode  int        `gorm:"not null" json:"repayment_plan_code"`
	InstallmentAmount  float64    `gorm:"type:decimal(12,2);not null" json:"installment_amount"`
	OutstandingBalance float64    `gorm:"type:decimal(12,2);not null" json:"outstanding_balance"`
	Status             string     `gorm:"size:20;not null;default:'open';index" json:"status"`
	FieldsLocked       bool       `gorm:"default:true" json:"fields_locked"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	CreatedBy          string     `gorm:"size:36;not null" json:"created_by"`
	UpdatedAt          *time.Time `json:"updated_at"`
	UpdatedBy          *string    `gorm:"size:36" json:"updated_by"`
	ArchivedAt         *time.Time `gorm:"index" json:"archived_at"`
	ArchivedBy         *string    `gorm:"size:36" json:"archived_by"`
}

func (Loan) TableName() string {
	return "loans"
}

func (l *Loan) IsArchived() bool {
	return l.ArchivedAt != nil
}

// Payment represents payments table. is_paid is terminal: no API path
// ever sets it back to false.
type Payment struct {
	ID                string     `gorm:"primaryKey;size:36" json:"id"`
	LoanID            string     `gorm:"size:36;not null;uniqueIndex:idx_loan_installment" json:"loan_id"`
	InstallmentNumber int        `gorm:"not null;uniqueIndex:idx_loan_installment" json:"installment_number"`
	AmountDue         float64    `gorm:"type:decimal(12,2);not null" json:"amount_due"`
	DueDate           time.Time  `gorm:"not null" json:"due_date"`
	IsPaid            bool       `gorm:"default:false" json:"is_paid"`
	PaidAt            *time.Time `json:"paid_at"`
	PaidBy            *string    `gorm:"size:36" json:"paid_by"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// PaymentResponse DTO
type PaymentResponse struct {
	ID                string     `json:"id"`
	LoanID            string     `json:"loan_id"`
	InstallmentNumber int        `json:"installment_number"`
	AmountDue         float64    `json:"amount_due"`
	DueDate           time.Time  `json:"due_date"`
	IsPaid            bool       `json:"is_paid"`
	PaidAt            *time.Time `json:"paid_at"`
	PaidBy            *string    `json:"paid_by"`
	PaidByName        string     `json:"paid_by_name,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// ToResponse converts a payment to its DTO; paid_by_name enrichment is
// applied by the service
func (p *Payment) ToResponse() PaymentResponse {
	return PaymentResponse{
		ID:                p.ID,
		LoanID:            p.LoanID,
		InstallmentNumber: p.InstallmentNumber,
		AmountDue:         p.AmountDue,
		DueDate:           p.DueDate,
		IsPaid:            p.IsPaid,
		PaidAt:            p.PaidAt,
		PaidBy:            p.PaidBy,
		CreatedAt:         p.CreatedAt,
	}
}

// LoanResponse DTO with customer enrichment, payments and derived fraud flags
type LoanResponse struct {
	ID                     string            `json:"id"`
	CustomerID             string            `json:"customer_id"`
	CustomerName           string            `json:"customer_name"`
	CustomerIDNumber       string            `json:"customer_id_number"`
	CustomerIDNumberMasked string            `json:"customer_id_number_masked"`
	MandateID              string            `json:"mandate_id"`
	LoanDate               time.Time         `json:"loan_date"`
	PrincipalAmount        float64           `json:"principal_amount"`
	InterestRate           float64           `json:"interest_rate"`
	ServiceFee             float64           `json:"service_fee"`
	TotalRepayable         float64           `json:"total_repayable"`
	RepaymentPlanCode      int               `json:"repayment_plan_code"`
	InstallmentAmount      float64           `json:"installment_amount"`
	OutstandingBalance     float64           `json:"outstanding_balance"`
	Status                 string            `json:"status"`
	FieldsLocked           bool              `json:"fields_locked"`
	CreatedAt              time.Time         `json:"created_at"`
	CreatedBy              string            `json:"created_by"`
	CreatedByName          string            `json:"created_by_name"`
	UpdatedAt              *time.Time        `json:"updated_at"`
	UpdatedBy              *string           `json:"updated_by"`
	ArchivedAt             *time.Time        `json:"archived_at"`
	ArchivedBy             *string           `json:"archived_by"`
	Payments               []PaymentResponse `json:"payments"`
	FraudFlags             []string          `json:"fraud_flags"`
}

// ============================================================
// Audit Ledger
// ============================================================

// AuditLog represents audit_logs table. Entries are immutable once
// written and form a hash chain ordered by created_at. CreatedAt is
// stored as fixed-width RFC3339 text (nanosecond fraction zero-padded)
// so the hashed form survives the database round-trip unchanged and
// lexicographic order over the column equals time order.
type AuditLog struct {
	ID            string  `gorm:"primaryKey;size:36" json:"id"`
	EntityType    string  `gorm:"size:30;not null;index" json:"entity_type"`
	EntityID      string  `gorm:"size:64;not null;index" json:"entity_id"`
	Action        string  `gorm:"size:50;not null" json:"action"`
	BeforeJSON    *string `gorm:"type:text" json:"-"`
	AfterJSON     *string `gorm:"type:text" json:"-"`
	ActorUserID   string  `gorm:"size:36;not null;index" json:"actor_user_id"`
	ActorName     string  `gorm:"size:100;not null" json:"actor_name"`
	Reason        *string `gorm:"type:text" json:"reason"`
	CreatedAt     string  `gorm:"size:40;not null;index" json:"created_at"`
	IntegrityHash string  `gorm:"size:64;not null" json:"integrity_hash"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// AuditLogResponse DTO with before/after decoded for clients
type AuditLogResponse struct {
	ID            string                 `json:"id"`
	EntityType    string                 `json:"entity_type"`
	EntityID      string                 `json:"entity_id"`
	Action        string                 `json:"action"`
	BeforeJSON    map[string]interface{} `json:"before_json"`
	AfterJSON     map[string]interface{} `json:"after_json"`
	ActorUserID   string                 `json:"actor_user_id"`
	ActorName     string                 `json:"actor_name"`
	Reason        *string                `json:"reason"`
	CreatedAt     string                 `json:"created_at"`
	IntegrityHash string                 `json:"integrity_hash"`
}

// ToResponse converts an audit entry to its DTO, decoding the stored
// before/after snapshots
func (a *AuditLog) ToResponse() AuditLogResponse {
	resp := AuditLogResponse{
		ID:            a.ID,
		EntityType:    a.EntityType,
		EntityID:      a.EntityID,
		Action:        a.Action,
		ActorUserID:   a.ActorUserID,
		ActorName:     a.ActorName,
		Reason:        a.Reason,
		CreatedAt:     a.CreatedAt,
		IntegrityHash: a.IntegrityHash,
	}
	if a.BeforeJSON != nil {
		_ = json.Unmarshal([]byte(*a.BeforeJSON), &resp.BeforeJSON)
	}
	if a.AfterJSON != nil {
		_ = json.Unmarshal([]byte(*a.AfterJSON), &resp.AfterJSON)
	}
	return resp
}

// ============================================================
// Settings
// ============================================================

// Setting represents settings table, a flat key/value store.
// Values are JSON-encoded so structured config (AD, backup) fits too.
type Setting struct {
	Key       string    `gorm:"primaryKey;size:100" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Well-known setting keys
const (
	SettingMasterPasswordHash = "master_password_hash"
	SettingExportFolderPath   = "export_folder_path"
	SettingBranchName         = "branch_name"
	SettingADConfig           = "ad_config"
	SettingBackupConfig       = "backup_config"
	SettingLastBackup         = "last_backup"
)

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate runs auto migration for all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Customer{},
		&Loan{},
		&Payment{},
		&AuditLog{},
		&Setting{},
	)
}
