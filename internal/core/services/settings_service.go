package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"easymoney-loans/internal/adapters/persistence/models"
	"easymoney-loans/internal/adapters/persistence/repositories"
	"easymoney-loans/internal/core/domain"
	"easymoney-loans/internal/pkg/password"

	"github.com/google/uuid"
)

// Settings errors
var (
	ErrMasterPasswordSet     = errors.New("master password already set")
	ErrMasterPasswordNotSet  = errors.New("master password not set")
	ErrInvalidMasterPassword = errors.New("invalid master password")
)

// SettingsService manages the key/value settings store, the one-time
// master password bootstrap and the directory configuration
type SettingsService struct {
	settingsRepo *repositories.SettingsRepository
	userRepo     *repositories.UserRepository
	auditService *AuditService
	directory    *DirectoryService
}

// NewSettingsService creates a new settings service
func NewSettingsService(settingsRepo *repositories.SettingsRepository, userRepo *repositories.UserRepository, auditService *AuditService, directory *DirectoryService) *SettingsService {
	return &SettingsService{
		settingsRepo: settingsRepo,
		userRepo:     userRepo,
		auditService: auditService,
		directory:    directory,
	}
}

// All returns every setting except the master password hash, decoded
// into a flat map
func (s *SettingsService) All(ctx context.Context) (map[string]any, error) {
	settings, err := s.settingsRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	out := make(map[string]any, len(settings))
	for _, setting := range settings {
		var v any
		if err := json.Unmarshal([]byte(setting.Value), &v); err != nil {
			v = setting.Value
		}
		out[setting.Key] = v
	}
	return out, nil
}

// Update upserts the supplied settings and audits the change. Admin
// only; the master password hash key is not reachable through here.
func (s *SettingsService) Update(ctx context.Context, updates map[string]any, actor domain.Actor) (string, error) {
	if actor.Role != domain.RoleAdmin {
		return "", ErrInsufficientRole
	}
	for key, value := range updates {
		if key == models.SettingMasterPasswordHash {
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("failed to encode setting %s: %w", key, err)
		}
		if err := s.settingsRepo.Upsert(ctx, key, string(encoded)); err != nil {
			return "", fmt.Errorf("failed to save setting %s: %w", key, err)
		}
	}

	warning := ""
	if _, err := s.auditService.Append(ctx, AuditEntry{
		EntityType: "settings",
		EntityID:   "system",
		Action:     "update",
		After:      updates,
		Actor:      actor,
	}); err != nil {
		warning = "audit log entry could not be recorded"
	}
	return warning, nil
}

// GetADConfig returns the stored directory configuration, zero-valued
// when never configured
func (s *SettingsService) GetADConfig(ctx context.Context) (ADConfig, error) {
	var cfg ADConfig
	setting, err := s.settingsRepo.Get(ctx, models.SettingADConfig)
	if err != nil {
		return cfg, fmt.Errorf("failed to get directory config: %w", err)
	}
	if setting == nil {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(setting.Value), &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode directory config: %w", err)
	}
	return cfg, nil
}

// UpdateADConfig stores the directory configuration. Admin only.
func (s *SettingsService) UpdateADConfig(ctx context.Context, cfg ADConfig, actor domain.Actor) (string, error) {
	if actor.Role != domain.RoleAdmin {
		return "", ErrInsufficientRole
	}
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = string(domain.RoleEmployee)
	}
	if cfg.DefaultBranch == "" {
		cfg.DefaultBranch = "Head Office"
	}
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode directory config: %w", err)
	}
	if err := s.settingsRepo.Upsert(ctx, models.SettingADConfig, string(encoded)); err != nil {
		return "", fmt.Errorf("failed to save directory config: %w", err)
	}

	warning := ""
	if _, err := s.auditService.Append(ctx, AuditEntry{
		EntityType: "settings",
		EntityID:   models.SettingADConfig,
		Action:     "update",
		After: map[string]any{
			"enabled":    cfg.Enabled,
			"server_url": cfg.ServerURL,
			"domain":     cfg.Domain,
		},
		Actor: actor,
	}); err != nil {
		warning = "audit log entry could not be recorded"
	}
	return warning, nil
}

// TestADConnection checks the configured directory server is reachable.
// Admin only.
func (s *SettingsService) TestADConnection(ctx context.Context, actor domain.Actor) error {
	if actor.Role != domain.RoleAdmin {
		return ErrInsufficientRole
	}
	cfg, err := s.GetADConfig(ctx)
	if err != nil {
		return err
	}
	return s.directory.TestConnection(cfg)
}

// MasterPasswordSet reports whether the one-time bootstrap has run
func (s *SettingsService) MasterPasswordSet(ctx context.Context) (bool, error) {
	setting, err := s.settingsRepo.Get(ctx, models.SettingMasterPasswordHash)
	if err != nil {
		return false, fmt.Errorf("failed to check master password: %w", err)
	}
	return setting != nil, nil
}

// SetupMasterPassword stores the master password hash and seeds the
// default admin account. Runs exactly once per installation.
func (s *SettingsService) SetupMasterPassword(ctx context.Context, masterPassword string) (*models.UserResponse, error) {
	set, err := s.MasterPasswordSet(ctx)
	if err != nil {
		return nil, err
	}
	if set {
		return nil, ErrMasterPasswordSet
	}
	if !password.ValidatePassword(masterPassword) {
		return nil, fmt.Errorf("%w: master password must be at least 8 characters", domain.ErrInvalidArgument)
	}

	hash, err := password.Hash(masterPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash master password: %w", err)
	}
	if err := s.settingsRepo.Upsert(ctx, models.SettingMasterPasswordHash, hash); err != nil {
		return nil, fmt.Errorf("failed to save master password: %w", err)
	}

	adminHash, err := password.Hash("admin123")
	if err != nil {
		return nil, fmt.Errorf("failed to hash default admin password: %w", err)
	}
	admin := &models.User{
		ID:           uuid.New().String(),
		Username:     "admin",
		PasswordHash: adminHash,
		FullName:     "System Administrator",
		Role:         string(domain.RoleAdmin),
		Branch:       "Head Office",
		IsActive:     true,
		AuthMethod:   string(domain.AuthLocal),
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		return nil, fmt.Errorf("failed to create default admin: %w", err)
	}
	return admin.ToResponse(), nil
}

// VerifyMasterPassword checks the supplied password against the stored
// hash
func (s *SettingsService) VerifyMasterPassword(ctx context.Context, masterPassword string) error {
	setting, err := s.settingsRepo.Get(ctx, models.SettingMasterPasswordHash)
	if err != nil {
		return fmt.Errorf("failed to get master password: %w", err)
	}
	if setting == nil {
		return ErrMasterPasswordNotSet
	}
	if !password.Verify(masterPassword, setting.Value) {
		return ErrInvalidMasterPassword
	}
	return nil
}
