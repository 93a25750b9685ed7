package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"easymoney-loans/internal/adapters/persistence/models"
	"easymoney-loans/internal/adapters/persistence/repositories"
	"easymoney-loans/internal/core/domain"
)

// Backup errors
var (
	ErrBackupPathNotSet    = errors.New("no backup path configured")
	ErrBackupPathInvalid   = errors.New("cannot access backup folder")
	ErrBackupFileNotFound  = errors.New("backup file not found")
	ErrBackupFileMalformed = errors.New("invalid backup file")
)

// BackupSettings is the stored backup configuration
type BackupSettings struct {
	FolderPath string `json:"folder_path"`
	AutoBackup bool   `json:"auto_backup"`
}

// BackupInfo describes the most recent backup
type BackupInfo struct {
	Filename  string         `json:"filename"`
	Filepath  string         `json:"filepath"`
	CreatedAt string         `json:"created_at"`
	CreatedBy string         `json:"created_by"`
	Size      string         `json:"size"`
	Records   map[string]int `json:"records"`
}

// BackupResult reports one completed backup
type BackupResult struct {
	Filename     string         `json:"filename"`
	Filepath     string         `json:"filepath"`
	BackupSize   string         `json:"backup_size"`
	RecordsCount map[string]int `json:"records_count"`
}

// backupFile is the on-disk JSON layout. Password hashes and the master
// password never leave the database.
type backupFile struct {
	BackupInfo struct {
		CreatedAt   string `json:"created_at"`
		CreatedBy   string `json:"created_by"`
		CreatedByID string `json:"created_by_id"`
		AppVersion  string `json:"app_version"`
	} `json:"backup_info"`
	Users     []*models.UserResponse `json:"users"`
	Customers []*models.Customer     `json:"customers"`
	Loans     []*models.Loan         `json:"loans"`
	Payments  []*models.Payment      `json:"payments"`
	AuditLogs []*models.AuditLog     `json:"audit_logs"`
	Settings  []*models.Setting      `json:"settings"`
}

// BackupService dumps the whole database to JSON and restores the
// operational tables from such dumps. Admin only.
type BackupService struct {
	userRepo     *repositories.UserRepository
	customerRepo *repositories.CustomerRepository
	loanRepo     *repositories.LoanRepository
	paymentRepo  *repositories.PaymentRepository
	auditRepo    *repositories.AuditRepository
	settingsRepo *repositories.SettingsRepository
	auditService *AuditService
}

// NewBackupService creates a new backup service
func NewBackupService(
	userRepo *repositories.UserRepository,
	customerRepo *repositories.CustomerRepository,
	loanRepo *repositories.LoanRepository,
	paymentRepo *repositories.PaymentRepository,
	auditRepo *repositories.AuditRepository,
	settingsRepo *repositories.SettingsRepository,
	auditService *AuditService,
) *BackupService {
	return &BackupService{
		userRepo:     userRepo,
		customerRepo: customerRepo,
		loanRepo:     loanRepo,
		paymentRepo:  paymentRepo,
		auditRepo:    auditRepo,
		settingsRepo: settingsRepo,
		auditService: auditService,
	}
}

// Status returns the backup configuration and last backup info
func (s *BackupService) Status(ctx context.Context, actor domain.Actor) (map[string]any, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrInsufficientRole
	}
	cfg, err := s.config(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"backup_folder_path":  cfg.FolderPath,
		"auto_backup_enabled": cfg.AutoBackup,
		"last_backup":         nil,
	}
	setting, err := s.settingsRepo.Get(ctx, models.SettingLastBackup)
	if err != nil {
		return nil, fmt.Errorf("failed to get last backup: %w", err)
	}
	if setting != nil {
		var info BackupInfo
		if err := json.Unmarshal([]byte(setting.Value), &info); err == nil {
			out["last_backup"] = info
		}
	}
	return out, nil
}

// UpdateConfig stores the backup folder and auto-backup flag
func (s *BackupService) UpdateConfig(ctx context.Context, cfg BackupSettings, actor domain.Actor) (string, error) {
	if actor.Role != domain.RoleAdmin {
		return "", ErrInsufficientRole
	}
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode backup config: %w", err)
	}
	if err := s.settingsRepo.Upsert(ctx, models.SettingBackupConfig, string(encoded)); err != nil {
		return "", fmt.Errorf("failed to save backup config: %w", err)
	}

	warning := ""
	if _, err := s.auditService.Append(ctx, AuditEntry{
		EntityType: "settings",
		EntityID:   models.SettingBackupConfig,
		Action:     "update",
		After:      map[string]any{"folder_path": cfg.FolderPath, "auto_backup": cfg.AutoBackup},
		Actor:      actor,
	}); err != nil {
		warning = "audit log entry could not be recorded"
	}
	return warning, nil
}

// Create writes a full JSON dump to the given path, or to the
// configured folder when the path is empty
func (s *BackupService) Create(ctx context.Context, backupPath string, actor domain.Actor) (*BackupResult, string, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, "", ErrInsufficientRole
	}
	if backupPath == "" {
		cfg, err := s.config(ctx)
		if err != nil {
			return nil, "", err
		}
		backupPath = cfg.FolderPath
	}
	if backupPath == "" {
		return nil, "", ErrBackupPathNotSet
	}
	if err := os.MkdirAll(backupPath, 0o755); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBackupPathInvalid, err)
	}

	dump, counts, err := s.collect(ctx, actor)
	if err != nil {
		return nil, "", err
	}

	branch, err := s.branchName(ctx)
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("EasyMoney_Backup_%s_%s.json", branch, time.Now().Format("20060102_150405"))
	fullPath := filepath.Join(backupPath, filename)

	encoded, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode backup: %w", err)
	}
	if err := os.WriteFile(fullPath, encoded, 0o644); err != nil {
		return nil, "", fmt.Errorf("failed to write backup file: %w", err)
	}

	size := humanSize(int64(len(encoded)))
	info := BackupInfo{
		Filename:  filename,
		Filepath:  fullPath,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		CreatedBy: actor.Name,
		Size:      size,
		Records:   counts,
	}
	if infoJSON, err := json.Marshal(info); err == nil {
		if err := s.settingsRepo.Upsert(ctx, models.SettingLastBackup, string(infoJSON)); err != nil {
			return nil, "", fmt.Errorf("failed to record last backup: %w", err)
		}
	}

	warning := ""
	if _, err := s.auditService.Append(ctx, AuditEntry{
		EntityType: "backup",
		EntityID:   "database",
		Action:     "create",
		After:      map[string]any{"filename": filename, "records": counts},
		Actor:      actor,
	}); err != nil {
		warning = "audit log entry could not be recorded"
	}

	return &BackupResult{
		Filename:     filename,
		Filepath:     fullPath,
		BackupSize:   size,
		RecordsCount: counts,
	}, warning, nil
}

// Restore replaces customers, loans and payments from a backup file.
// Users, settings and the audit ledger stay untouched: restoring must
// never rewrite history or credentials.
func (s *BackupService) Restore(ctx context.Context, path string, actor domain.Actor) (map[string]int, string, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, "", ErrInsufficientRole
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", ErrBackupFileNotFound
	}
	var dump backupFile
	if err := json.Unmarshal(raw, &dump); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBackupFileMalformed, err)
	}
	if dump.BackupInfo.CreatedAt == "" || dump.Customers == nil || dump.Loans == nil || dump.Payments == nil {
		return nil, "", fmt.Errorf("%w: missing required sections", ErrBackupFileMalformed)
	}

	if _, err := s.auditService.Append(ctx, AuditEntry{
		EntityType: "backup",
		EntityID:   "database",
		Action:     "restore_started",
		After:      map[string]any{"source_file": path, "backup_date": dump.BackupInfo.CreatedAt},
		Actor:      actor,
	}); err != nil {
		return nil, "", fmt.Errorf("failed to audit restore start: %w", err)
	}

	if err := s.customerRepo.ReplaceAll(ctx, dump.Customers); err != nil {
		return nil, "", fmt.Errorf("failed to restore customers: %w", err)
	}
	if err := s.loanRepo.ReplaceAll(ctx, dump.Loans); err != nil {
		return nil, "", fmt.Errorf("failed to restore loans: %w", err)
	}
	if err := s.paymentRepo.ReplaceAll(ctx, dump.Payments); err != nil {
		return nil, "", fmt.Errorf("failed to restore payments: %w", err)
	}

	counts := map[string]int{
		"customers": len(dump.Customers),
		"loans":     len(dump.Loans),
		"payments":  len(dump.Payments),
	}
	warning := ""
	if _, err := s.auditService.Append(ctx, AuditEntry{
		EntityType: "backup",
		EntityID:   "database",
		Action:     "restore_completed",
		After:      map[string]any{"source_file": path, "records": counts},
		Actor:      actor,
	}); err != nil {
		warning = "audit log entry could not be recorded"
	}
	return counts, warning, nil
}

// AutoBackupEnabled reports whether the scheduler should run
func (s *BackupService) AutoBackupEnabled(ctx context.Context) bool {
	cfg, err := s.config(ctx)
	if err != nil {
		return false
	}
	return cfg.AutoBackup && cfg.FolderPath != ""
}

func (s *BackupService) collect(ctx context.Context, actor domain.Actor) (*backupFile, map[string]int, error) {
	dump := &backupFile{}
	dump.BackupInfo.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	dump.BackupInfo.CreatedBy = actor.Name
	dump.BackupInfo.CreatedByID = actor.ID
	dump.BackupInfo.AppVersion = "1.0.0"

	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load users: %w", err)
	}
	dump.Users = make([]*models.UserResponse, 0, len(users))
	for _, u := range users {
		dump.Users = append(dump.Users, u.ToResponse())
	}

	if dump.Customers, err = s.customerRepo.ListAll(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to load customers: %w", err)
	}
	if dump.Loans, err = s.loanRepo.ListAll(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to load loans: %w", err)
	}
	if dump.Payments, err = s.paymentRepo.ListAll(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to load payments: %w", err)
	}
	if dump.AuditLogs, err = s.auditRepo.ListChronological(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to load audit logs: %w", err)
	}
	if dump.Settings, err = s.settingsRepo.List(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}

	counts := map[string]int{
		"users":      len(dump.Users),
		"customers":  len(dump.Customers),
		"loans":      len(dump.Loans),
		"payments":   len(dump.Payments),
		"audit_logs": len(dump.AuditLogs),
	}
	return dump, counts, nil
}

func (s *BackupService) config(ctx context.Context) (BackupSettings, error) {
	var cfg BackupSettings
	setting, err := s.settingsRepo.Get(ctx, models.SettingBackupConfig)
	if err != nil {
		return cfg, fmt.Errorf("failed to get backup config: %w", err)
	}
	if setting == nil {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(setting.Value), &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode backup config: %w", err)
	}
	return cfg, nil
}

func (s *BackupService) branchName(ctx context.Context) (string, error) {
	name := "Main"
	setting, err := s.settingsRepo.Get(ctx, models.SettingBranchName)
	if err != nil {
		return "", fmt.Errorf("failed to get branch name: %w", err)
	}
	if setting != nil {
		var v string
		if err := json.Unmarshal([]byte(setting.Value), &v); err == nil && v != "" {
			name = v
		}
	}
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ReplaceAll(name, "/", "_"), nil
}

func humanSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d bytes", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
