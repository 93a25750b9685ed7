package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"easymoney-loans/internal/adapters/persistence/models"
	"easymoney-loans/internal/adapters/persistence/repositories"
	"easymoney-loans/internal/core/domain"

	"github.com/xuri/excelize/v2"
)

// Export errors
var (
	ErrInvalidExportType    = errors.New("export type must be customers, loans, payments or all")
	ErrExportFolderNotSet   = errors.New("export folder path not configured")
	ErrExportFolderMissing  = errors.New("export folder does not exist")
	ErrExportGenerateFailed = errors.New("failed to generate export workbook")
)

// ExportInput selects what to export and where
type ExportInput struct {
	ExportType string `json:"export_type"`
	SaveToPath bool   `json:"save_to_path"`
}

// ExportResult is one generated workbook, inline or saved to disk
type ExportResult struct {
	Filename    string `json:"filename"`
	Data        string `json:"data,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	SavedToPath string `json:"saved_to_path,omitempty"`
	Message     string `json:"message,omitempty"`
}

// textFmt is the builtin "@" number format; ID numbers rendered as
// numbers collapse into scientific notation in Excel
const textFmt = 49

// ExportService renders customer, loan and payment snapshots into xlsx
// workbooks. Manager or admin only.
type ExportService struct {
	customerRepo *repositories.CustomerRepository
	loanRepo     *repositories.LoanRepository
	paymentRepo  *repositories.PaymentRepository
	userRepo     *repositories.UserRepository
	settingsRepo *repositories.SettingsRepository
	auditService *AuditService
}

// NewExportService creates a new export service
func NewExportService(
	customerRepo *repositories.CustomerRepository,
	loanRepo *repositories.LoanRepository,
	paymentRepo *repositories.PaymentRepository,
	userRepo *repositories.UserRepository,
	settingsRepo *repositories.SettingsRepository,
	auditService *AuditService,
) *ExportService {
	return &ExportService{
		customerRepo: customerRepo,
		loanRepo:     loanRepo,
		paymentRepo:  paymentRepo,
		userRepo:     userRepo,
		settingsRepo: settingsRepo,
		auditService: auditService,
	}
}

// Export builds the requested workbook and either saves it to the
// configured folder or returns it base64-encoded
func (s *ExportService) Export(ctx context.Context, input ExportInput, actor domain.Actor) (*ExportResult, string, error) {
	if actor.Role != domain.RoleManager && actor.Role != domain.RoleAdmin {
		return nil, "", ErrInsufficientRole
	}
	switch input.ExportType {
	case "customers", "loans", "payments", "all":
	default:
		return nil, "", ErrInvalidExportType
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"10B981"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Style: 1},
			{Type: "right", Style: 1},
			{Type: "top", Style: 1},
			{Type: "bottom", Style: 1},
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrExportGenerateFailed, err)
	}
	textStyle, err := f.NewStyle(&excelize.Style{NumFmt: textFmt})
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrExportGenerateFailed, err)
	}

	names, err := s.allUserNames(ctx)
	if err != nil {
		return nil, "", err
	}

	first := true
	if input.ExportType == "customers" || input.ExportType == "all" {
		if err := s.writeCustomerSheet(ctx, f, headerStyle, textStyle, names, first); err != nil {
			return nil, "", err
		}
		first = false
	}
	if input.ExportType == "loans" || input.ExportType == "all" {
		if err := s.writeLoanSheet(ctx, f, headerStyle, textStyle, names, first); err != nil {
			return nil, "", err
		}
		first = false
	}
	if input.ExportType == "payments" || input.ExportType == "all" {
		if err := s.writePaymentSheet(ctx, f, headerStyle, names, first); err != nil {
			return nil, "", err
		}
	}

	branch := strings.ReplaceAll(actor.Branch, " ", "_")
	if branch == "" {
		branch = "Unknown"
	}
	filename := fmt.Sprintf("Loans_%s_%s.xlsx", time.Now().Format("2006-01-02"), branch)

	result := &ExportResult{Filename: filename}
	if input.SaveToPath {
		folder, err := s.exportFolder(ctx)
		if err != nil {
			return nil, "", err
		}
		fullPath := filepath.Join(folder, filename)
		if err := f.SaveAs(fullPath); err != nil {
			return nil, "", fmt.Errorf("failed to save export: %w", err)
		}
		result.SavedToPath = fullPath
		result.Message = fmt.Sprintf("Export saved to %s", fullPath)
	} else {
		var buf bytes.Buffer
		if err := f.Write(&buf); err != nil {
			return nil, "", fmt.Errorf("failed to render export: %w", err)
		}
		result.Data = base64.StdEncoding.EncodeToString(buf.Bytes())
		result.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}

	after := map[string]any{"export_type": input.ExportType}
	if result.SavedToPath != "" {
		after["saved_to"] = result.SavedToPath
	}
	warning := ""
	if _, err := s.auditService.Append(ctx, AuditEntry{
		EntityType: "export",
		EntityID:   "system",
		Action:     "export_data",
		After:      after,
		Actor:      actor,
	}); err != nil {
		warning = "audit log entry could not be recorded"
	}
	return result, warning, nil
}

func (s *ExportService) writeCustomerSheet(ctx context.Context, f *excelize.File, headerStyle, textStyle int, names map[string]string, first bool) error {
	sheet, err := s.addSheet(f, "Customers", first)
	if err != nil {
		return err
	}
	headers := []string{"ID", "Client Name", "ID Number", "Mandate ID", "Created At", "Created By"}
	if err := writeHeaderRow(f, sheet, headers, headerStyle); err != nil {
		return err
	}

	customers, err := s.customerRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load customers: %w", err)
	}
	row := 2
	for _, c := range customers {
		if c.IsArchived() {
			continue
		}
		cells := []any{c.ID, c.ClientName, c.IDNumber, c.MandateID, c.CreatedAt.Format(time.RFC3339), nameOr(names, c.CreatedBy)}
		if err := writeDataRow(f, sheet, row, cells); err != nil {
			return err
		}
		idCell, _ := excelize.CoordinatesToCellName(3, row)
		_ = f.SetCellStyle(sheet, idCell, idCell, textStyle)
		row++
	}
	return f.SetColWidth(sheet, "A", "F", 20)
}

func (s *ExportService) writeLoanSheet(ctx context.Context, f *excelize.File, headerStyle, textStyle int, names map[string]string, first bool) error {
	sheet, err := s.addSheet(f, "Loans", first)
	if err != nil {
		return err
	}
	headers := []string{"Loan ID", "Customer Name", "Customer ID", "Principal", "Total Repayable",
		"Outstanding", "Status", "Plan", "Created At", "Created By"}
	if err := writeHeaderRow(f, sheet, headers, headerStyle); err != nil {
		return err
	}

	loans, err := s.loanRepo.ListAllActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load loans: %w", err)
	}
	customers, err := s.customerRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load customers: %w", err)
	}
	customersByID := make(map[string]*models.Customer, len(customers))
	for _, c := range customers {
		customersByID[c.ID] = c
	}

	row := 2
	for _, loan := range loans {
		customerName, customerID := "Unknown", "Unknown"
		if c := customersByID[loan.CustomerID]; c != nil {
			customerName, customerID = c.ClientName, c.IDNumber
		}
		cells := []any{
			loan.ID,
			customerName,
			customerID,
			fmt.Sprintf("R%.2f", loan.PrincipalAmount),
			fmt.Sprintf("R%.2f", loan.TotalRepayable),
			fmt.Sprintf("R%.2f", loan.OutstandingBalance),
			strings.ToUpper(loan.Status),
			domain.PlanName(loan.RepaymentPlanCode),
			loan.CreatedAt.Format(time.RFC3339),
			nameOr(names, loan.CreatedBy),
		}
		if err := writeDataRow(f, sheet, row, cells); err != nil {
			return err
		}
		idCell, _ := excelize.CoordinatesToCellName(3, row)
		_ = f.SetCellStyle(sheet, idCell, idCell, textStyle)
		row++
	}
	return f.SetColWidth(sheet, "A", "J", 18)
}

func (s *ExportService) writePaymentSheet(ctx context.Context, f *excelize.File, headerStyle int, names map[string]string, first bool) error {
	sheet, err := s.addSheet(f, "Payments", first)
	if err != nil {
		return err
	}
	headers := []string{"Payment ID", "Loan ID", "Installment #", "Amount Due", "Due Date",
		"Is Paid", "Paid At", "Paid By"}
	if err := writeHeaderRow(f, sheet, headers, headerStyle); err != nil {
		return err
	}

	payments, err := s.paymentRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load payments: %w", err)
	}
	row := 2
	for _, p := range payments {
		isPaid := "No"
		if p.IsPaid {
			isPaid = "Yes"
		}
		paidAt, paidBy := "", ""
		if p.PaidAt != nil {
			paidAt = p.PaidAt.Format(time.RFC3339)
		}
		if p.PaidBy != nil {
			paidBy = nameOr(names, *p.PaidBy)
		}
		cells := []any{
			p.ID,
			p.LoanID,
			p.InstallmentNumber,
			fmt.Sprintf("R%.2f", p.AmountDue),
			p.DueDate.Format("2006-01-02"),
			isPaid,
			paidAt,
			paidBy,
		}
		if err := writeDataRow(f, sheet, row, cells); err != nil {
			return err
		}
		row++
	}
	return f.SetColWidth(sheet, "A", "H", 18)
}

// addSheet renames the default sheet for the first section and appends
// new sheets for the rest
func (s *ExportService) addSheet(f *excelize.File, name string, first bool) (string, error) {
	if first {
		if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
			return "", fmt.Errorf("%w: %v", ErrExportGenerateFailed, err)
		}
		return name, nil
	}
	if _, err := f.NewSheet(name); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExportGenerateFailed, err)
	}
	return name, nil
}

func (s *ExportService) exportFolder(ctx context.Context) (string, error) {
	setting, err := s.settingsRepo.Get(ctx, models.SettingExportFolderPath)
	if err != nil {
		return "", fmt.Errorf("failed to get export folder: %w", err)
	}
	if setting == nil || setting.Value == "" {
		return "", ErrExportFolderNotSet
	}
	folder := strings.Trim(setting.Value, `"`)
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrExportFolderMissing, folder)
	}
	return folder, nil
}

func (s *ExportService) allUserNames(ctx context.Context) (map[string]string, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.FullName
	}
	return names, nil
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrExportGenerateFailed, err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("%w: %v", ErrExportGenerateFailed, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("%w: %v", ErrExportGenerateFailed, err)
		}
	}
	return nil
}

func writeDataRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExportGenerateFailed, err)
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("%w: %v", ErrExportGenerateFailed, err)
	}
	return nil
}

func nameOr(names map[string]string, id string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return "Unknown"
}
