package domain

// Role represents a user role in the system
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// IsValid reports whether the role is one the system knows
func (r Role) IsValid() bool {
	return r == RoleEmployee || r == RoleManager || r == RoleAdmin
}

// CanViewFullID reports whether the role may see unmasked ID numbers
func (r Role) CanViewFullID() bool {
	return r == RoleManager || r == RoleAdmin
}

// AuthMethod represents how a user authenticates
type AuthMethod string

const (
	AuthLocal     AuthMethod = "local"
	AuthDirectory AuthMethod = "active_directory"
)

// LoanStatus represents the loan state machine (open → paid, one way)
type LoanStatus string

const (
	LoanOpen LoanStatus = "open"
	LoanPaid LoanStatus = "paid"
)

// Repayment plan codes (number of scheduled installments)
const (
	PlanMonthly     = 1
	PlanFortnightly = 2
	PlanWeekly      = 4
)

// PlanName returns a display name for a repayment plan code
func PlanName(code int) string {
	switch code {
	case PlanMonthly:
		return "Monthly"
	case PlanFortnightly:
		return "Fortnightly"
	case PlanWeekly:
		return "Weekly"
	default:
		return "Unknown"
	}
}

// Actor is the resolved authenticated identity every mutating
// operation runs on behalf of
type Actor struct {
	ID       string
	Name     string
	Username string
	Role     Role
	Branch   string
}

// Fraud flags derived at read time, never persisted
const (
	FlagQuickClose        = "QUICK_CLOSE"
	FlagDuplicateCustomer = "DUPLICATE_CUSTOMER"
)

// MinReasonLength is the minimum length for override/archive reasons
const MinReasonLength = 10

// Loan policy constants
const (
	InterestRate = 0.40
	ServiceFee   = 12.0
	MinPrincipal = 400.0
	MaxPrincipal = 8000.0
)
